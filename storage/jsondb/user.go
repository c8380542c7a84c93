package jsondb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bitdevs/estudos/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// CollectionOf returns the collection holding the accounts of role.
func CollectionOf(role user.Role) (Collection, error) {
	switch role {
	case user.RoleStudent:
		return Alunos, nil
	case user.RoleTeacher:
		return Professores, nil
	case user.RoleStaff:
		return Administrativos, nil
	}
	return "", errors.Wrapf(ErrUnknownCollection, "role %q", role)
}

func (repo *userRepository) CreateUser(ctx context.Context, role user.Role, usr user.User) (user.User, error) {
	c, err := CollectionOf(role)
	if err != nil {
		return user.User{}, err
	}
	if usr.Grades == nil {
		usr.Grades = make(user.Gradebook)
	}

	var users []user.User
	err = repo.db.Update(ctx, c, &users, func() (bool, error) {
		for _, u := range users {
			if u.Username == usr.Username {
				return false, user.ErrUsernameExists
			}
		}
		users = append(users, usr)
		return true, nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, role user.Role) ([]user.User, error) {
	c, err := CollectionOf(role)
	if err != nil {
		return nil, err
	}
	var users []user.User
	if err := repo.db.View(ctx, c, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, role user.Role, username string) (user.User, error) {
	users, err := repo.QueryUsers(ctx, role)
	if err != nil {
		return user.User{}, err
	}
	for _, usr := range users {
		if usr.Username == username {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, role user.Role, username string, fn func(*user.User) error) (user.User, error) {
	c, err := CollectionOf(role)
	if err != nil {
		return user.User{}, err
	}

	var (
		users   []user.User
		updated user.User
	)
	err = repo.db.Update(ctx, c, &users, func() (bool, error) {
		for i := range users {
			if users[i].Username != username {
				continue
			}
			if err := fn(&users[i]); err != nil {
				return false, err
			}
			updated = users[i]
			return true, nil
		}
		return false, user.ErrNotFound
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

func (repo *userRepository) UpdateUsers(ctx context.Context, role user.Role, fn func(*user.User) (bool, error)) (int, error) {
	c, err := CollectionOf(role)
	if err != nil {
		return 0, err
	}

	var (
		users []user.User
		count int
	)
	err = repo.db.Update(ctx, c, &users, func() (bool, error) {
		for i := range users {
			changed, err := fn(&users[i])
			if err != nil {
				return false, err
			}
			if changed {
				count++
			}
		}
		return count > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

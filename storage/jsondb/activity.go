package jsondb

import (
	"context"

	"github.com/bitdevs/estudos/core/activity"
)

type activityRepository struct {
	db *DB
}

var _ activity.Repository = (*activityRepository)(nil)

func NewActivityRepository(db *DB) activity.Repository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) QueryActivities(ctx context.Context) ([]activity.Activity, error) {
	var acts []activity.Activity
	if err := repo.db.View(ctx, Atividades, &acts); err != nil {
		return nil, err
	}
	return acts, nil
}

func (repo *activityRepository) GetActivity(ctx context.Context, id int) (activity.Activity, error) {
	acts, err := repo.QueryActivities(ctx)
	if err != nil {
		return activity.Activity{}, err
	}
	for _, act := range acts {
		if act.ID == id {
			return act, nil
		}
	}
	return activity.Activity{}, activity.ErrNotFound
}

func (repo *activityRepository) CreateActivity(ctx context.Context, act activity.Activity) (activity.Activity, error) {
	var acts []activity.Activity
	err := repo.db.Update(ctx, Atividades, &acts, func() (bool, error) {
		var maxID int
		for _, a := range acts {
			if a.ID > maxID {
				maxID = a.ID
			}
		}
		id, err := repo.db.NextID(Atividades, maxID)
		if err != nil {
			return false, err
		}
		act.ID = id
		acts = append(acts, act)
		return true, nil
	})
	if err != nil {
		return activity.Activity{}, err
	}
	return act, nil
}

func (repo *activityRepository) UpdateActivity(ctx context.Context, id int, fn func(*activity.Activity) error) (activity.Activity, error) {
	var (
		acts    []activity.Activity
		updated activity.Activity
	)
	err := repo.db.Update(ctx, Atividades, &acts, func() (bool, error) {
		for i := range acts {
			if acts[i].ID != id {
				continue
			}
			if err := fn(&acts[i]); err != nil {
				return false, err
			}
			updated = acts[i]
			return true, nil
		}
		return false, activity.ErrNotFound
	})
	if err != nil {
		return activity.Activity{}, err
	}
	return updated, nil
}

package user

import (
	"context"
	"crypto/subtle"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bitdevs/estudos/core"
	"github.com/bitdevs/estudos/core/fieldcrypt"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrUsernameExists     = errors.New("a user with this username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidScore       = errors.New("grade must be between 0 and 10")
)

const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin"
	DefaultAdminName     = "Administrador"

	MinScore = 0
	MaxScore = 10
)

type (
	// Repository persists User records, one collection per Role.
	Repository interface {
		// CreateUser appends usr unless the username is taken in the collection of role (ErrUsernameExists).
		CreateUser(ctx context.Context, role Role, usr User) (User, error)
		QueryUsers(ctx context.Context, role Role) ([]User, error)
		// GetUser returns the first record with username.
		GetUser(ctx context.Context, role Role, username string) (User, error)
		// UpdateUser applies fn to the first record with username and saves the collection.
		UpdateUser(ctx context.Context, role Role, username string, fn func(*User) error) (User, error)
		// UpdateUsers applies fn to every record of role and saves the collection if any record changed.
		UpdateUsers(ctx context.Context, role Role, fn func(*User) (changed bool, err error)) (int, error)
	}

	Cipher interface {
		Encrypt(plaintext string) (string, error)
		Decrypt(token string) (string, error)
		Migrate(token string) (string, error)
	}

	Service struct {
		repo     Repository
		cipher   Cipher
		log      core.Logger
		validate *validator.Validate
		prefs    Preferences
	}

	// GradeSheet assigns scores for one subject and semester to the students of a class.
	GradeSheet struct {
		Turma    string                  `json:"turma" validate:"required,notblank"`
		Subject  string                  `json:"subject" validate:"required,notblank"`
		Semester Semester                `json:"semester" validate:"required,oneof=1 2"`
		Scores   map[string]null.Float64 `json:"scores" validate:"required"`
	}
)

func NewService(repo Repository, cipher Cipher, logger core.Logger, validate *validator.Validate, prefs Preferences) *Service {
	return &Service{
		repo:     repo,
		cipher:   cipher,
		log:      logger,
		validate: validate,
		prefs:    prefs,
	}
}

// EnsureDefaultAdmin creates the admin account of the Administrativo collection if no record has its username.
func (svc *Service) EnsureDefaultAdmin(ctx context.Context) (created bool, err error) {
	if _, err := svc.repo.GetUser(ctx, RoleStaff, DefaultAdminUsername); err == nil {
		return false, nil
	} else if errors.Cause(err) != ErrNotFound {
		return false, err
	}

	usr := User{Username: DefaultAdminUsername, Grades: make(Gradebook)}
	if usr.Password, err = svc.encryptNull(DefaultAdminPassword); err != nil {
		return false, err
	}
	if usr.Name, err = svc.encryptNull(DefaultAdminName); err != nil {
		return false, err
	}
	if _, err = svc.repo.CreateUser(ctx, RoleStaff, usr); err != nil {
		if errors.Cause(err) == ErrUsernameExists {
			return false, nil
		}
		return false, err
	}
	svc.log.Info("default admin account created")
	return true, nil
}

// Authenticate returns the session of the first record of role matching username and password.
func (svc *Service) Authenticate(ctx context.Context, role Role, username, password string) (Session, error) {
	if !role.Valid() {
		return Session{}, ErrInvalidCredentials
	}
	users, err := svc.repo.QueryUsers(ctx, role)
	if err != nil {
		return Session{}, err
	}

	memo := fieldcrypt.NewMemo(svc.cipher)
	for i := range users {
		usr := &users[i]
		if usr.Username != username {
			continue
		}
		stored, err := memo.Decrypt(usr.Password.String)
		if err != nil {
			svc.log.Warn("password of user cannot be decrypted", err, map[string]interface{}{"username": usr.Username, "role": role})
			continue
		}
		if usr.Password.Valid && subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1 {
			return svc.view(role, usr, memo), nil
		}
	}
	return Session{}, ErrInvalidCredentials
}

// Register validates nu, encrypts its personal fields and appends it to its role's collection.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	nu.clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}

	usr := User{Username: nu.Username, Grades: make(Gradebook)}
	plain := map[string]string{
		"password": nu.Password,
		"name":     nu.Name,
		"age":      nu.Age,
		"email":    nu.Email,
		"cpf":      nu.CPF,
		"curso":    nu.Curso,
		"turma":    nu.Turma,
		"semestre": nu.Semestre,
		"periodo":  nu.Periodo,
	}
	for name, fld := range usr.personalFields() {
		tok, err := svc.cipher.Encrypt(plain[name])
		if err != nil {
			return User{}, errors.Wrapf(err, "encrypting %s", name)
		}
		*fld = null.StringFrom(tok)
	}

	created, err := svc.repo.CreateUser(ctx, nu.Role, usr)
	if err != nil {
		if errors.Cause(err) == ErrUsernameExists {
			return User{}, core.NewFieldError(ErrUsernameExists, "username")
		}
		return User{}, err
	}
	return created, nil
}

func (svc *Service) Get(ctx context.Context, role Role, username string) (User, error) {
	return svc.repo.GetUser(ctx, role, core.CleanString(username))
}

func (svc *Service) Query(ctx context.Context, role Role) ([]User, error) {
	return svc.repo.QueryUsers(ctx, role)
}

// View decrypts usr into a Session. Fields that fail to decrypt keep their token and are listed in Session.Undecryptable.
func (svc *Service) View(role Role, usr User) Session {
	return svc.view(role, &usr, fieldcrypt.NewMemo(svc.cipher))
}

func (svc *Service) view(role Role, usr *User, dec fieldcrypt.Decrypter) Session {
	sess := Session{
		Role:        role,
		Username:    usr.Username,
		Grades:      usr.Grades.Clone(),
		Attendance:  append([]AttendanceEntry(nil), usr.Attendance...),
		Preferences: svc.prefs,
	}
	targets := map[string]*string{
		"name":     &sess.Name,
		"age":      &sess.Age,
		"email":    &sess.Email,
		"cpf":      &sess.CPF,
		"curso":    &sess.Curso,
		"turma":    &sess.Turma,
		"semestre": &sess.Semestre,
		"periodo":  &sess.Periodo,
	}
	fields := usr.personalFields()
	for name, dst := range targets {
		fld := fields[name]
		if !fld.Valid {
			continue
		}
		val, err := dec.Decrypt(fld.String)
		if err != nil {
			sess.Undecryptable = append(sess.Undecryptable, name)
		}
		*dst = val
	}
	if len(sess.Undecryptable) > 0 {
		sort.Strings(sess.Undecryptable)
		svc.log.Warn("user fields cannot be decrypted", map[string]interface{}{
			"username": usr.Username,
			"role":     role,
			"fields":   sess.Undecryptable,
		})
	}
	return sess
}

// Roster returns the sessions of the students whose decrypted turma equals turma.
func (svc *Service) Roster(ctx context.Context, turma string) ([]Session, error) {
	users, err := svc.repo.QueryUsers(ctx, RoleStudent)
	if err != nil {
		return nil, err
	}
	memo := fieldcrypt.NewMemo(svc.cipher)
	var roster []Session
	for i := range users {
		if !users[i].Turma.Valid {
			continue
		}
		if val, err := memo.Decrypt(users[i].Turma.String); err == nil && val == turma {
			roster = append(roster, svc.view(RoleStudent, &users[i], memo))
		}
	}
	return roster, nil
}

// InTurma returns a predicate matching the student records of turma.
func (svc *Service) InTurma(turma string) func(*User) bool {
	memo := fieldcrypt.NewMemo(svc.cipher)
	return func(usr *User) bool {
		if !usr.Turma.Valid {
			return false
		}
		val, err := memo.Decrypt(usr.Turma.String)
		return err == nil && val == turma
	}
}

// AssignGrades sets the score of sheet.Subject for sheet.Semester on every listed student of sheet.Turma.
// Null scores are skipped. All scores are checked before anything is written.
// It returns the number of students updated.
func (svc *Service) AssignGrades(ctx context.Context, sheet GradeSheet) (int, error) {
	sheet.Turma = core.CleanString(sheet.Turma)
	sheet.Subject = core.CleanString(sheet.Subject)
	if err := svc.validate.Struct(sheet); err != nil {
		return 0, err
	}
	for student, score := range sheet.Scores {
		if score.Valid && (score.Float64 < MinScore || score.Float64 > MaxScore) {
			return 0, core.NewFieldError(errors.Wrapf(ErrInvalidScore, "%s", student), "scores")
		}
	}

	inTurma := svc.InTurma(sheet.Turma)
	return svc.repo.UpdateUsers(ctx, RoleStudent, func(usr *User) (bool, error) {
		score := sheet.Scores[usr.Username]
		if !score.Valid || !inTurma(usr) {
			return false, nil
		}
		usr.Grades.Set(sheet.Subject, sheet.Semester, score.Float64)
		return true, nil
	})
}

func (svc *Service) ResetPassword(ctx context.Context, role Role, username, password string) error {
	password = core.CleanString(password)
	if password == "" {
		return core.NewFieldError(errors.New("password cannot be blank"), "password")
	}
	tok, err := svc.cipher.Encrypt(password)
	if err != nil {
		return err
	}
	_, err = svc.repo.UpdateUser(ctx, role, core.CleanString(username), func(usr *User) error {
		usr.Password = null.StringFrom(tok)
		return nil
	})
	return err
}

// MigrateFields rewraps every personal field of the role's records into the strong scheme.
// Fields that cannot be decrypted are left untouched. It returns the number of records changed.
func (svc *Service) MigrateFields(ctx context.Context, role Role) (int, error) {
	return svc.repo.UpdateUsers(ctx, role, func(usr *User) (bool, error) {
		var changed bool
		for name, fld := range usr.personalFields() {
			if !fld.Valid || fieldcrypt.SchemeOf(fld.String) == fieldcrypt.Strong {
				continue
			}
			tok, err := svc.cipher.Migrate(fld.String)
			if err != nil {
				svc.log.Warn("field not migrated", err, map[string]interface{}{"username": usr.Username, "field": name})
				continue
			}
			if tok != fld.String {
				*fld = null.StringFrom(tok)
				changed = true
			}
		}
		return changed, nil
	})
}

func (svc *Service) encryptNull(plaintext string) (null.String, error) {
	tok, err := svc.cipher.Encrypt(plaintext)
	if err != nil {
		return null.String{}, err
	}
	return null.StringFrom(tok), nil
}

// RecordGrade sets the score of subject for sem on the student's gradebook, tracking the subject if needed.
func (svc *Service) RecordGrade(ctx context.Context, student, subject string, sem Semester, score float64) error {
	_, err := svc.repo.UpdateUser(ctx, RoleStudent, student, func(usr *User) error {
		usr.Grades.Set(subject, sem, score)
		return nil
	})
	return err
}

// MarkAbsent appends an absence on date to every listed student of turma. It returns the number of students updated.
func (svc *Service) MarkAbsent(ctx context.Context, turma string, students []string, date, markedBy string) (int, error) {
	selected := make(map[string]bool, len(students))
	for _, uname := range students {
		selected[uname] = true
	}
	inTurma := svc.InTurma(turma)
	return svc.repo.UpdateUsers(ctx, RoleStudent, func(usr *User) (bool, error) {
		if !selected[usr.Username] || !inTurma(usr) {
			return false, nil
		}
		usr.Attendance = append(usr.Attendance, AttendanceEntry{Date: date, Status: StatusAbsent, MarkedBy: markedBy})
		return true, nil
	})
}

package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/bitdevs/estudos/core"
	"github.com/bitdevs/estudos/core/activity"
	"github.com/bitdevs/estudos/core/fieldcrypt"
	"github.com/bitdevs/estudos/core/secret"
	"github.com/bitdevs/estudos/core/user"
	"github.com/bitdevs/estudos/storage/attachments"
	"github.com/bitdevs/estudos/storage/jsondb"
)

// Env is a complete application stack rooted at a temporary data directory.
type Env struct {
	Conf       *core.Config
	Keys       *secret.Manager
	Cipher     *fieldcrypt.Cipher
	DB         *jsondb.DB
	Files      *attachments.Local
	Log        *Logger
	Validate   *validator.Validate
	Translator ut.Translator

	Users       user.Repository
	Activities  activity.Repository
	UserSvc     *user.Service
	ActivitySvc *activity.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	conf := core.TestConfig(t.TempDir())
	env := &Env{Conf: conf, Log: new(Logger)}
	env.Validate, env.Translator = core.NewValidator()

	env.Keys = secret.NewManager(conf.KeyFile)
	if err := env.Keys.EnsureKey(); err != nil {
		t.Fatalf("NewEnv() failed: %v", err)
	}
	env.Cipher = fieldcrypt.New(env.Keys, fieldcrypt.WithStrongScheme(conf.StrongCipher))

	var err error
	if env.DB, err = jsondb.Open(conf.DataDir, env.Log); err != nil {
		t.Fatalf("NewEnv() failed: %v", err)
	}
	if env.Files, err = attachments.NewLocal(conf.Attachments.Dir); err != nil {
		t.Fatalf("NewEnv() failed: %v", err)
	}
	env.Users = jsondb.NewUserRepository(env.DB)
	env.Activities = jsondb.NewActivityRepository(env.DB)
	env.UserSvc = user.NewService(env.Users, env.Cipher, env.Log, env.Validate, user.PreferencesFrom(conf.Accessibility))
	env.ActivitySvc = activity.NewService(
		env.Activities,
		env.UserSvc,
		env.Files,
		activity.NewClassifier(conf.NativeSem),
		env.Log,
		env.Validate,
	)
	return env
}

// CreateUser registers an account of role with the given turma; the password equals the username.
func (env *Env) CreateUser(t *testing.T, role user.Role, username, name, turma string) user.User {
	t.Helper()
	usr, err := env.UserSvc.Register(context.Background(), user.NewUser{
		Role:     role,
		Username: username,
		Password: username,
		Name:     name,
		Turma:    turma,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Login authenticates username with the password set by CreateUser.
func (env *Env) Login(t *testing.T, role user.Role, username string) user.Session {
	t.Helper()
	sess, err := env.UserSvc.Authenticate(context.Background(), role, username, username)
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	return sess
}

func (env *Env) CreateActivity(t *testing.T, title, deadline, turma string) activity.Activity {
	t.Helper()
	act, err := env.ActivitySvc.Create(context.Background(), activity.NewActivity{
		Title:    title,
		Deadline: deadline,
		Turma:    turma,
	})
	if err != nil {
		t.Fatalf("CreateActivity() failed: %v", err)
	}
	return act
}

type Entry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger is a core.Logger recording every entry.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Entries returns the recorded entries of level, or all of them when level is empty.
func (l *Logger) Entries(level string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

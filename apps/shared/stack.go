// Package shared assembles the application services from a configuration.
package shared

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/bitdevs/estudos/core"
	"github.com/bitdevs/estudos/core/activity"
	"github.com/bitdevs/estudos/core/fieldcrypt"
	"github.com/bitdevs/estudos/core/secret"
	"github.com/bitdevs/estudos/core/user"
	"github.com/bitdevs/estudos/storage/attachments"
	"github.com/bitdevs/estudos/storage/jsondb"
)

// Stack holds the services shared by the API and the admin CLI.
type Stack struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	Keys        *secret.Manager
	Cipher      *fieldcrypt.Cipher
	DB          *jsondb.DB
	Files       attachments.Driver
	Classifier  activity.Classifier
	UserSvc     *user.Service
	ActivitySvc *activity.Service
}

// NewStack creates the key if missing, opens the data directory and the attachments driver,
// and wires the services. A corrupt key is returned as a fatal error.
func NewStack(conf *core.Config, logger core.Logger) (*Stack, error) {
	s := &Stack{Conf: conf, Logger: logger}
	s.Validate, s.Translator = core.NewValidator()

	s.Keys = secret.NewManager(conf.KeyFile)
	if err := s.Keys.EnsureKey(); err != nil {
		return nil, errors.Wrap(err, "ensuring secret key")
	}
	if _, err := s.Keys.Key(); err != nil {
		return nil, errors.Wrap(err, "loading secret key")
	}
	s.Cipher = fieldcrypt.New(s.Keys, fieldcrypt.WithStrongScheme(conf.StrongCipher))

	var err error
	if s.DB, err = jsondb.Open(conf.DataDir, logger); err != nil {
		return nil, errors.Wrap(err, "opening data directory")
	}
	if s.Files, err = attachments.New(conf.Attachments); err != nil {
		return nil, errors.Wrap(err, "setting up attachments")
	}
	s.Classifier = activity.NewClassifier(conf.NativeSem)

	s.UserSvc = user.NewService(
		jsondb.NewUserRepository(s.DB),
		s.Cipher,
		logger,
		s.Validate,
		user.PreferencesFrom(conf.Accessibility),
	)
	s.ActivitySvc = activity.NewService(
		jsondb.NewActivityRepository(s.DB),
		s.UserSvc,
		s.Files,
		s.Classifier,
		logger,
		s.Validate,
	)
	return s, nil
}

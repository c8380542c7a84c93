// Package echoapi serves the application over HTTP with echo.
package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/bitdevs/estudos/core"
	"github.com/bitdevs/estudos/core/activity"
	"github.com/bitdevs/estudos/core/user"
	"github.com/bitdevs/estudos/storage/attachments"
)

type (
	Deps struct {
		Conf        *core.Config
		Logger      core.Logger
		UserSvc     *user.Service
		ActivitySvc *activity.Service
		Files       attachments.Driver
		Validate    *validator.Validate
		Translator  ut.Translator
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
	}

	server struct {
		deps   *Deps
		tokens *TokenIssuer
		app    *echo.Echo
		errs   chan error
	}
)

var _ Server = (*server)(nil)

func NewServer(deps *Deps) Server {
	s := &server{
		deps:   deps,
		tokens: NewTokenIssuer(deps.Conf),
		app:    echo.New(),
		errs:   make(chan error, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.BodyLimit("20M"))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.tokens.jwtConfig())

	registerUserAPI(v1, jwt, s.deps.UserSvc, s.tokens, s.deps.Validate, s.deps.Translator)
	registerActivityAPI(v1, jwt, s.deps.ActivitySvc, s.deps.UserSvc, s.deps.Files)
	registerClassAPI(v1, jwt, s.deps.ActivitySvc, s.deps.UserSvc)
}

// Start listens on the configured address; the listener error is sent on Errors.
func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errs <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errs
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

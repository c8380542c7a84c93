package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bitdevs/estudos/core"
	"github.com/bitdevs/estudos/core/user"
)

type userApi struct {
	svc        *user.Service
	tokens     *TokenIssuer
	validate   *validator.Validate
	translator ut.Translator
}

func registerUserAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *user.Service,
	tokens *TokenIssuer,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := userApi{
		svc:        svc,
		tokens:     tokens,
		validate:   validate,
		translator: translator,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.POST("/register", api.create, adminMiddleware())
	ag.GET("", api.query, staffMiddleware())
	ag.PUT("/:role/:username/password", api.resetPassword, adminMiddleware())
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Authenticate(ctx.Request().Context(), data.Role, data.Username, data.Password)
	if err != nil {
		if errors.Cause(err) == user.ErrInvalidCredentials {
			return errAuthenticationFailed
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.tokens.GenerateToken(api.tokens.Claims(sess))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Session: &sess})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.tokens.refresh(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	sess, err := getContextSession(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, api.svc.View(data.Role, usr))
}

// query lists the accounts of the role query param, students by default.
func (api *userApi) query(ctx echo.Context) error {
	role := user.RoleStudent
	if r := ctx.QueryParam("role"); r != "" {
		role = user.Role(r)
	}
	if !role.Valid() {
		return core.NewFieldError(errors.Errorf("unknown role %q", role), "role")
	}

	users, err := api.svc.Query(ctx.Request().Context(), role)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	sessions := make([]user.Session, 0, len(users))
	for _, usr := range users {
		sessions = append(sessions, api.svc.View(role, usr))
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	role := user.Role(ctx.Param("role"))
	if !role.Valid() {
		return errHttpNotFound
	}
	var data PasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordRequest")
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), role, ctx.Param("username"), data.Password); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

type (
	LoginRequest struct {
		Role     user.Role `json:"role" validate:"required,oneof=Aluno Professor Administrativo"`
		Username string    `json:"username" validate:"required"`
		Password string    `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token   string        `json:"token"`
		Session *user.Session `json:"session,omitempty"`
	}

	PasswordRequest struct {
		Password string `json:"password"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username)
	lr.Password = core.CleanString(lr.Password)
	return validate.Struct(lr)
}

package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/bitdevs/estudos/core"
	"github.com/bitdevs/estudos/core/user"
)

const (
	tokenContextKey   = "userToken"
	sessionContextKey = "session"
	tokenAudience     = "Estudos"
)

// nowFunc is mockable in tests.
var nowFunc = time.Now

// Claims represents the authorization claims transmitted via a JWT.
// Accounts are identified by their collection and username.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Role         user.Role `json:"role"`
	Username     string    `json:"username"`
}

// TokenIssuer signs and refreshes the tokens of authenticated sessions.
type TokenIssuer struct {
	key           []byte
	issuer        string
	expiry        time.Duration
	refreshExpiry time.Duration
}

func NewTokenIssuer(conf *core.Config) *TokenIssuer {
	return &TokenIssuer{
		key:           []byte(conf.SecretKey),
		issuer:        conf.AppName,
		expiry:        conf.Server.JWTExpirationDelta,
		refreshExpiry: conf.Server.JWTRefreshExpirationDelta,
	}
}

// jwtConfig is the JWT auth middleware config.
func (ti *TokenIssuer) jwtConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    ti.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// Claims returns fresh claims for sess. origIat carries the first issue time across refreshes.
func (ti *TokenIssuer) Claims(sess user.Session, origIat ...int64) *Claims {
	now := nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    ti.issuer,
			Subject:   sess.Username,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(ti.expiry).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Role:         sess.Role,
		Username:     sess.Username,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (ti *TokenIssuer) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// refresh issues a new token for the context session as long as the refresh window of the original token is open.
func (ti *TokenIssuer) refresh(ctx echo.Context, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	sess, err := getContextSession(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context session")
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.refreshExpiry)
	if nowFunc().After(expTime) {
		return "", errRefreshExpired
	}
	return ti.GenerateToken(ti.Claims(sess, claims.OrigIssuedAt))
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextSession loads the account named by the token claims once per request.
// A token whose account was removed is rejected.
func getContextSession(ctx echo.Context, svc *user.Service) (user.Session, error) {
	if sess, ok := ctx.Get(sessionContextKey).(user.Session); ok {
		return sess, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.Session{}, err
	}

	usr, err := svc.Get(ctx.Request().Context(), claims.Role, claims.Username)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.Session{}, errUnauthorized
		}
		return user.Session{}, errors.Wrap(err, "finding session user")
	}
	sess := svc.View(claims.Role, usr)
	ctx.Set(sessionContextKey, sess)
	return sess, nil
}

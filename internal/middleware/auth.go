package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/models"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/store"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/token"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"

	tokenKey     = "access_token"
	principalKey = "principal"
)

// Principal is the identity resolved for the current request.
type Principal struct {
	ID   uint
	Role string
}

type UserFinder interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

// Authenticate verifies the access token from the accessToken cookie or, when
// no cookie is present, the Authorization: Bearer header, then resolves the
// user and stores a Principal in the request locals.
func Authenticate(codec *token.Codec, users UserFinder) fiber.Handler {
	return jwtware.New(jwtware.Config{
		KeyFunc:     codec.KeyFunc(token.Access),
		Claims:      &token.Claims{},
		TokenLookup: "cookie:" + AccessCookie + ",header:" + fiber.HeaderAuthorization,
		AuthScheme:  "Bearer",
		ContextKey:  tokenKey,
		SuccessHandler: func(c *fiber.Ctx) error {
			return resolvePrincipal(c, users)
		},
		ErrorHandler: rejectToken,
	})
}

func resolvePrincipal(c *fiber.Ctx, users UserFinder) error {
	tok, ok := c.Locals(tokenKey).(*jwt.Token)
	if !ok {
		return deny(c, fiber.StatusForbidden, "token_invalid", "Invalid token")
	}
	claims, ok := tok.Claims.(*token.Claims)
	if !ok {
		return deny(c, fiber.StatusForbidden, "token_invalid", "Invalid token")
	}

	user, err := users.FindByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return deny(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		slog.Error("failed to resolve principal", "action", "authenticate", "user_id", claims.UserID, "error", err)
		return deny(c, fiber.StatusInternalServerError, "internal", "Internal server error")
	}

	c.Locals(principalKey, Principal{ID: user.ID, Role: user.Role})
	return c.Next()
}

func rejectToken(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return deny(c, fiber.StatusUnauthorized, "token_missing", "No token provided")
	}

	err = token.Classify(err)
	slog.Warn("access token rejected", "action", "authenticate", "path", c.Path(), "error", err)
	if errors.Is(err, token.ErrExpired) {
		return deny(c, fiber.StatusUnauthorized, "token_expired", "Access token expired")
	}
	return deny(c, fiber.StatusForbidden, "token_invalid", "Invalid token")
}

// RequireRole admits only principals whose role equals role exactly.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := GetPrincipal(c)
		if !ok {
			return deny(c, fiber.StatusUnauthorized, "unauthorized", "Unauthorized")
		}
		if p.Role != role {
			return deny(c, fiber.StatusForbidden, "forbidden", "You do not have permission to access this resource")
		}
		return c.Next()
	}
}

// GetPrincipal returns the Principal stored by Authenticate.
func GetPrincipal(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	return p, ok
}

func deny(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	})
}

package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/config"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{authService: authService, cfg: cfg}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	user, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		return writeError(c, "register", err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	session, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		return writeError(c, "login", err)
	}

	h.setCookie(c, middleware.AccessCookie, session.AccessToken, h.authService.AccessTTL())
	h.setCookie(c, middleware.RefreshCookie, session.RefreshToken, h.authService.RefreshTTL())

	return c.JSON(dto.LoginResponse{
		Message:     "Logged in successfully",
		AccessToken: session.AccessToken,
		User:        session.User,
	})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	refreshToken := h.refreshTokenFrom(c)

	access, err := h.authService.Refresh(c.UserContext(), refreshToken)
	if err != nil {
		return writeError(c, "refresh", err)
	}

	h.setCookie(c, middleware.AccessCookie, access, h.authService.AccessTTL())
	return c.JSON(dto.RefreshResponse{AccessToken: access})
}

// Logout clears both cookies whatever the ledger says.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	refreshToken := c.Cookies(middleware.RefreshCookie)
	if refreshToken == "" && len(c.Body()) > 0 {
		var req dto.LogoutRequest
		_ = c.BodyParser(&req)
		refreshToken = req.RefreshToken
	}

	h.clearCookie(c, middleware.AccessCookie)
	h.clearCookie(c, middleware.RefreshCookie)

	if err := h.authService.Logout(c.UserContext(), refreshToken); err != nil {
		return writeError(c, "logout", err)
	}

	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return writeError(c, "me", services.ErrNoPrincipal)
	}

	user, err := h.authService.Profile(c.UserContext(), p.ID)
	if err != nil {
		return writeError(c, "me", err)
	}
	return c.JSON(user)
}

// refreshTokenFrom prefers the cookie and falls back to a JSON body.
func (h *AuthHandler) refreshTokenFrom(c *fiber.Ctx) string {
	if v := c.Cookies(middleware.RefreshCookie); v != "" {
		return v
	}
	var req dto.RefreshRequest
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&req)
	}
	return req.RefreshToken
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, name, value string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *AuthHandler) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

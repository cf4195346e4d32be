package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/casaplus/listing-service/internal/api/dto"
	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/service"
	apperrors "github.com/casaplus/listing-service/pkg/util"
)

// UsersHandler exposes account endpoints.
type UsersHandler struct {
	auth       *service.AuthService
	cookieName string
}

// NewUsersHandler constructs handler. When cookieName is set, login and
// register also hand the token out as an HTTP-only cookie.
func NewUsersHandler(authService *service.AuthService, cookieName string) *UsersHandler {
	return &UsersHandler{auth: authService, cookieName: cookieName}
}

// Register handles POST /api/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, err := h.auth.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	h.setTokenCookie(c, token)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authResponse(user, token)})
}

// Login handles POST /api/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	h.setTokenCookie(c, token)
	return c.JSON(fiber.Map{"data": authResponse(user, token)})
}

// Logout handles POST /api/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.UserContext()); err != nil {
		return err
	}
	if h.cookieName != "" && c.Cookies(h.cookieName) != "" {
		c.ClearCookie(h.cookieName)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "logged out"}})
}

// Profile handles GET /api/profile.
func (h *UsersHandler) Profile(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	user, properties, err := h.auth.Profile(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ProfileResponse{
		User:       userResponse(user),
		Properties: propertyResponses(properties),
	}})
}

func (h *UsersHandler) setTokenCookie(c *fiber.Ctx, token *domain.Token) {
	if h.cookieName == "" {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    token.Value,
		Expires:  token.ExpiresAt,
		MaxAge:   int(time.Until(token.ExpiresAt).Seconds()),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func authResponse(user *domain.User, token *domain.Token) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		User:      userResponse(user),
	}
}

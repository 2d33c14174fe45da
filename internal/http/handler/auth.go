package handler

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"taxportal/internal/model"
	"taxportal/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User        *model.User `json:"user"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Register creates a customer account.
//
//	@Summary	Register a customer
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		service.RegisterInput	true	"account"
//	@Success	201		{object}	model.User
//	@Failure	400		{object}	errorPayload
//	@Failure	409		{object}	errorPayload
//	@Router		/auth/register [post]
func Register(svc service.AuthService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.RegisterInput
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
		u, err := svc.Register(c.UserContext(), in)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(u)
	}
}

// Login verifies credentials and sets the session cookie.
//
//	@Summary	Log in
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		loginRequest	true	"credentials"
//	@Success	200		{object}	loginResponse
//	@Failure	401		{object}	errorPayload
//	@Failure	423		{object}	errorPayload
//	@Failure	429		{object}	errorPayload
//	@Router		/auth/login [post]
func Login(svc service.AuthService, cookie CookieConfig, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		res, err := svc.Login(c.UserContext(), req.Email, req.Password, c.IP())
		if err != nil {
			return serviceError(c, log, err)
		}
		c.Cookie(&fiber.Cookie{
			Name:     cookie.Name,
			Value:    res.Token,
			Path:     "/",
			Expires:  res.ExpiresAt,
			HTTPOnly: true,
			Secure:   cookie.Secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		return c.JSON(loginResponse{User: res.User, AccessToken: res.Token, ExpiresAt: res.ExpiresAt})
	}
}

// Logout expires the session cookie. Bearer tokens stay valid until they expire.
func Logout(cookie CookieConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Cookie(&fiber.Cookie{
			Name:     cookie.Name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HTTPOnly: true,
			Secure:   cookie.Secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Me returns the logged-in account.
func Me(svc service.AuthService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := svc.Me(c.UserContext(), actorFromCtx(c).UserID)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(u)
	}
}

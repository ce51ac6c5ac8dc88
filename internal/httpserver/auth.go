package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/message_board/internal/logging"
	authmw "github.com/Skotchmaster/message_board/internal/middleware/auth"
	"github.com/Skotchmaster/message_board/internal/service"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		code, msg := statusOf(err)
		return errorJSON(c, code, msg)
	}

	return c.JSON(http.StatusOK, AuthResponse{
		Success:   true,
		Message:   "registration successful",
		Token:     res.Token,
		ExpiresAt: &res.ExpiresAt,
		User:      res.User,
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		code, msg := statusOf(err)
		return errorJSON(c, code, msg)
	}

	return c.JSON(http.StatusOK, AuthResponse{
		Success:   true,
		Message:   "login successful",
		Token:     res.Token,
		ExpiresAt: &res.ExpiresAt,
		User:      res.User,
	})
}

// Me returns the caller's own record; clients use it to confirm a restored
// token is still accepted.
func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()

	id, ok := authmw.IdentityFrom(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}

	user, err := h.Svc.Me(ctx, id.UserID)
	if err != nil {
		code, msg := statusOf(err)
		if code == http.StatusNotFound {
			// token for a user that no longer exists
			return errorJSON(c, http.StatusUnauthorized, "unauthorized")
		}
		return errorJSON(c, code, msg)
	}
	return c.JSON(http.StatusOK, user)
}

// GetUser is public, so it never returns the email.
func (h *AuthHTTP) GetUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	user, err := h.Svc.Me(c.Request().Context(), id)
	if err != nil {
		code, msg := statusOf(err)
		return errorJSON(c, code, msg)
	}
	return c.JSON(http.StatusOK, publicUser(user))
}

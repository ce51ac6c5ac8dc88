package auth

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/message_board/internal/logging"
	"github.com/Skotchmaster/message_board/internal/tokens"
)

const CtxIdentity = "user"

type TokenValidator interface {
	Validate(token string) (*tokens.Identity, error)
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RequireBearer rejects requests without a valid "Authorization: Bearer"
// token with 401 and stores the token's identity in the context otherwise.
func RequireBearer(v TokenValidator) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  CtxIdentity,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return v.Validate(auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logging.FromContext(c.Request().Context()).
				Warn("auth_rejected", "status", http.StatusUnauthorized, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, errorBody{
				Success: false,
				Message: "unauthorized",
			})
		},
	})
}

func IdentityFrom(c echo.Context) (*tokens.Identity, bool) {
	id, ok := c.Get(CtxIdentity).(*tokens.Identity)
	if !ok || id == nil {
		return nil, false
	}
	return id, true
}

package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/Skotchmaster/message_board/internal/db"
	authmw "github.com/Skotchmaster/message_board/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/message_board/internal/middleware/logging"
)

type Deps struct {
	DB           *gorm.DB
	Logger       *slog.Logger
	Validator    authmw.TokenValidator
	AuthHandler  *AuthHTTP
	BoardHandler *BoardHTTP
	CORSOrigins  []string
}

// New builds an echo instance with the common middleware stack and all
// routes registered.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), middleware.Secure())
	if d.Logger != nil {
		e.Use(loggingmw.RequestLogger(d.Logger))
	}
	if len(d.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: d.CORSOrigins,
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		}))
	}

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB != nil {
			if err := db.Ping(c.Request().Context(), d.DB); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", d.AuthHandler.Register)
	authGroup.POST("/login", d.AuthHandler.Login)

	api.GET("/threads", d.BoardHandler.ListThreads)
	api.GET("/threads/:id", d.BoardHandler.GetThread)
	api.GET("/threads/:id/messages", d.BoardHandler.ListMessages)

	api.GET("/users/:id", d.AuthHandler.GetUser)

	requireAuth := authmw.RequireBearer(d.Validator)
	api.GET("/users/me", d.AuthHandler.Me, requireAuth)
	api.POST("/threads", d.BoardHandler.CreateThread, requireAuth)
	api.POST("/threads/:id/messages", d.BoardHandler.CreateMessage, requireAuth)
	api.PATCH("/messages/:id", d.BoardHandler.UpdateMessage, requireAuth)
	api.DELETE("/messages/:id", d.BoardHandler.DeleteMessage, requireAuth)
}

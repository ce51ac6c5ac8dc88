package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/message_board/internal/config"
	"github.com/Skotchmaster/message_board/internal/db"
	"github.com/Skotchmaster/message_board/internal/events"
	"github.com/Skotchmaster/message_board/internal/hash"
	"github.com/Skotchmaster/message_board/internal/httpserver"
	"github.com/Skotchmaster/message_board/internal/repo"
	"github.com/Skotchmaster/message_board/internal/service"
	"github.com/Skotchmaster/message_board/internal/tokens"
)

type App struct {
	Echo      *echo.Echo
	DB        *gorm.DB
	Publisher events.Publisher
	Validator *tokens.Validator
}

type Option func(*options)

type options struct {
	bcryptCost int
	publisher  events.Publisher
	tokenCfg   func(*tokens.Config)
}

// WithBcryptCost lowers the hashing cost, used by tests.
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithTokenConfig(fn func(*tokens.Config)) Option {
	return func(o *options) { o.tokenCfg = fn }
}

// Build validates cfg and wires storage, token handling, services and the
// HTTP router. Any missing secret or unreachable database fails here.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	tokenCfg := tokens.Config{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL(),
	}
	if o.tokenCfg != nil {
		o.tokenCfg(&tokenCfg)
	}
	issuer, err := tokens.NewIssuer(tokenCfg)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	validator, err := tokens.NewValidator(tokenCfg)
	if err != nil {
		return nil, fmt.Errorf("token validator: %w", err)
	}

	gdb, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	publisher := o.publisher
	if publisher == nil {
		publisher, err = newPublisher(cfg, logger)
		if err != nil {
			_ = db.Close(gdb)
			return nil, err
		}
	}

	rp := repo.New(gdb)
	authSvc := &service.AuthService{
		Repo:      rp,
		Hasher:    hash.NewChain(o.bcryptCost),
		Issuer:    issuer,
		Publisher: publisher,
	}
	boardSvc := &service.BoardService{
		Repo:      rp,
		Publisher: publisher,
	}

	e := httpserver.New(&httpserver.Deps{
		DB:           gdb,
		Logger:       logger,
		Validator:    validator,
		AuthHandler:  &httpserver.AuthHTTP{Svc: authSvc},
		BoardHandler: &httpserver.BoardHTTP{Svc: boardSvc},
		CORSOrigins:  cfg.CORSOrigins,
	})

	return &App{Echo: e, DB: gdb, Publisher: publisher, Validator: validator}, nil
}

func newPublisher(cfg config.Config, logger *slog.Logger) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		if logger != nil {
			logger.Info("kafka brokers not configured, events disabled")
		}
		return events.Nop{}, nil
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	return p, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher close: %w", err))
		}
	}
	if a.DB != nil {
		if err := db.Close(a.DB); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}

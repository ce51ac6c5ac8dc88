package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Skotchmaster/message_board/internal/events"
	"github.com/Skotchmaster/message_board/internal/hash"
	"github.com/Skotchmaster/message_board/internal/logging"
	"github.com/Skotchmaster/message_board/internal/models"
	"github.com/Skotchmaster/message_board/internal/repo"
	"github.com/Skotchmaster/message_board/internal/tokens"
)

const maxPasswordBytes = 72

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UpdatePasswordDigest(ctx context.Context, id uint, digest string) error
}

type TokenIssuer interface {
	Issue(userID uint, username, email string) (tokens.Issued, error)
}

type AuthService struct {
	Repo      UserRepo
	Hasher    hash.Chain
	Issuer    TokenIssuer
	Publisher events.Publisher
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	username = strings.TrimSpace(username)
	// emails compare case-insensitively; store one canonical form
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateRegistration(username, email, password); err != nil {
		l.Warn("register_failed", "status", 400, "reason", "validation", "error", err)
		return nil, err
	}

	if taken, err := s.Repo.UsernameTaken(ctx, username); err != nil {
		l.Error("register_error", "status", 500, "reason", "db_error", "error", err)
		return nil, ErrInternal
	} else if taken {
		l.Warn("register_failed", "status", 400, "reason", "username_taken")
		return nil, ErrDuplicateUsername
	}
	if taken, err := s.Repo.EmailTaken(ctx, email); err != nil {
		l.Error("register_error", "status", 500, "reason", "db_error", "error", err)
		return nil, ErrInternal
	} else if taken {
		l.Warn("register_failed", "status", 400, "reason", "email_taken")
		return nil, ErrDuplicateEmail
	}

	digest, err := s.Hasher.Hash(password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, ErrInternal
	}

	user := &models.User{
		Username:       username,
		Email:          email,
		PasswordDigest: digest,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicateUsername):
			l.Warn("register_failed", "status", 400, "reason", "username_taken_on_insert")
			return nil, ErrDuplicateUsername
		case errors.Is(err, repo.ErrDuplicateEmail):
			l.Warn("register_failed", "status", 400, "reason", "email_taken_on_insert")
			return nil, ErrDuplicateEmail
		}
		l.Error("register_error", "status", 500, "reason", "db_error", "error", err)
		return nil, ErrInternal
	}

	res, err := s.issue(user)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot create token", "error", err)
		return nil, ErrInternal
	}

	s.publish(ctx, events.Event{Type: events.UserRegistered, UserID: user.ID, Username: user.Username})
	l.Info("register_success", "status", 200, "user_id", user.ID)
	return res, nil
}

// Login answers ErrInvalidCredentials for both an unknown username and a
// wrong password so the response cannot be used to enumerate accounts.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		l.Warn("login_failed", "status", 400, "reason", "empty credentials")
		return nil, ErrInvalidCredentials
	}

	user, err := s.Repo.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("login_failed", "status", 400, "reason", "invalid username or password")
			return nil, ErrInvalidCredentials
		}
		l.Error("login_error", "status", 500, "reason", "db_error", "error", err)
		return nil, ErrInternal
	}

	if !s.Hasher.Verify(password, user.PasswordDigest) {
		l.Warn("login_failed", "status", 400, "reason", "invalid username or password")
		return nil, ErrInvalidCredentials
	}

	if s.Hasher.NeedsUpgrade(user.PasswordDigest) {
		s.upgradeDigest(ctx, user, password)
	}

	res, err := s.issue(user)
	if err != nil {
		l.Error("login_error", "status", 500, "reason", "cannot create token", "error", err)
		return nil, ErrInternal
	}

	s.publish(ctx, events.Event{Type: events.UserLoggedIn, UserID: user.ID, Username: user.Username})
	l.Info("login_successful", "user_id", user.ID)
	return res, nil
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		logging.FromContext(ctx).Error("get_user_error", "status", 500, "error", err)
		return nil, ErrInternal
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	issued, err := s.Issuer.Issue(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: issued.Token, ExpiresAt: issued.ExpiresAt, User: user}, nil
}

func (s *AuthService) upgradeDigest(ctx context.Context, user *models.User, password string) {
	l := logging.FromContext(ctx).With("svc", "auth.upgrade_digest", "user_id", user.ID)
	digest, err := s.Hasher.Hash(password)
	if err != nil {
		l.Warn("digest_upgrade_failed", "error", err)
		return
	}
	if err := s.Repo.UpdatePasswordDigest(ctx, user.ID, digest); err != nil {
		l.Warn("digest_upgrade_failed", "error", err)
		return
	}
	user.PasswordDigest = digest
	l.Info("digest_upgraded")
}

func (s *AuthService) publish(ctx context.Context, e events.Event) {
	if s.Publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Publisher.Publish(pctx, e); err != nil {
		logging.FromContext(ctx).Error("publish_error", "type", e.Type, "error", err)
	}
}

func validateRegistration(username, email, password string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrValidation)
	case len(username) > 64:
		return fmt.Errorf("%w: username is too long", ErrValidation)
	case email == "":
		return fmt.Errorf("%w: email is required", ErrValidation)
	case password == "":
		return fmt.Errorf("%w: password is required", ErrValidation)
	case len(password) > maxPasswordBytes:
		return fmt.Errorf("%w: password is longer than %d bytes", ErrValidation, maxPasswordBytes)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	return nil
}

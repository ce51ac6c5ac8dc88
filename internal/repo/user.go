package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Skotchmaster/message_board/internal/models"
)

const pqUniqueViolation = "23505"

// CreateUser relies on the unique indexes on username and email; a
// violation is reported as ErrDuplicateUsername or ErrDuplicateEmail even
// when a concurrent registration won the race after the caller's own check.
func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	err := r.DB.WithContext(ctx).Create(u).Error
	if err == nil {
		return nil
	}
	column, ok := uniqueViolation(err)
	if !ok {
		return err
	}

	// username is reported first when both collide
	if taken, qErr := r.UsernameTaken(ctx, u.Username); qErr == nil && taken {
		return ErrDuplicateUsername
	}
	if taken, qErr := r.EmailTaken(ctx, u.Email); qErr == nil && taken {
		return ErrDuplicateEmail
	}
	switch column {
	case "username":
		return ErrDuplicateUsername
	case "email":
		return ErrDuplicateEmail
	}
	return err
}

func (r *GormRepo) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *GormRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

func (r *GormRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "LOWER(email) = ?", strings.ToLower(email))
}

func (r *GormRepo) UpdatePasswordDigest(ctx context.Context, id uint, digest string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("password_digest", digest)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

func (r *GormRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where(query, arg).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// uniqueViolation recognises unique-constraint errors from lib/pq and sqlite
// and returns the offending column when the driver names it.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != pqUniqueViolation {
			return "", false
		}
		return columnOf(pqErr.Constraint + " " + pqErr.Detail), true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate key") {
		return columnOf(msg), true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	return "", false
}

func columnOf(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "username"):
		return "username"
	case strings.Contains(s, "email"):
		return "email"
	}
	return ""
}

package models

import (
	"time"
)

type User struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"               json:"id"`
	Username       string    `gorm:"uniqueIndex:uq_users_username;not null" json:"username"`
	Email          string    `gorm:"uniqueIndex:uq_users_email;not null"    json:"email"`
	PasswordDigest string    `gorm:"not null"                               json:"-"`
	CreatedAt      time.Time `gorm:"not null"                               json:"created_at"`
}

type Thread struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"not null"                 json:"title"`
	AuthorID  uint      `gorm:"index;not null"           json:"author_id"`
	CreatedAt time.Time `gorm:"not null"                 json:"created_at"`
}

type Message struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ThreadID  uint      `gorm:"index;not null"           json:"thread_id"`
	AuthorID  uint      `gorm:"index;not null"           json:"author_id"`
	Content   string    `gorm:"type:text;not null"       json:"content"`
	CreatedAt time.Time `gorm:"not null"                 json:"created_at"`
	UpdatedAt time.Time `                                json:"updated_at"`
}

// All lists every table the server migrates, in dependency order.
func All() []any {
	return []any{&User{}, &Thread{}, &Message{}}
}

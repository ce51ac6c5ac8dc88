package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/message_board/internal/events"
	"github.com/Skotchmaster/message_board/internal/logging"
	"github.com/Skotchmaster/message_board/internal/models"
	"github.com/Skotchmaster/message_board/internal/repo"
)

const (
	maxTitleLen   = 200
	maxContentLen = 10000
)

type BoardRepo interface {
	CreateThread(ctx context.Context, t *models.Thread) error
	ListThreads(ctx context.Context) ([]models.Thread, error)
	GetThread(ctx context.Context, id uint) (*models.Thread, error)
	CreateMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, threadID uint) ([]models.Message, error)
	GetMessage(ctx context.Context, id uint) (*models.Message, error)
	SaveMessage(ctx context.Context, m *models.Message) error
	DeleteMessage(ctx context.Context, id uint) error
}

// BoardService owns threads and messages. Author ids always come from the
// caller's verified identity, never from request bodies.
type BoardService struct {
	Repo      BoardRepo
	Publisher events.Publisher
}

func (s *BoardService) CreateThread(ctx context.Context, authorID uint, title string) (*models.Thread, error) {
	l := logging.FromContext(ctx).With("svc", "board.create_thread")

	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", ErrValidation, maxTitleLen)
	}

	thread := &models.Thread{Title: title, AuthorID: authorID}
	if err := s.Repo.CreateThread(ctx, thread); err != nil {
		l.Error("create_thread_error", "status", 500, "error", err)
		return nil, ErrInternal
	}

	s.publish(ctx, events.Event{Type: events.ThreadCreated, UserID: authorID, ThreadID: thread.ID, EntityID: thread.ID})
	return thread, nil
}

func (s *BoardService) ListThreads(ctx context.Context) ([]models.Thread, error) {
	threads, err := s.Repo.ListThreads(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("list_threads_error", "status", 500, "error", err)
		return nil, ErrInternal
	}
	return threads, nil
}

func (s *BoardService) GetThread(ctx context.Context, id uint) (*models.Thread, error) {
	thread, err := s.Repo.GetThread(ctx, id)
	if err != nil {
		return nil, s.mapErr(ctx, "get_thread_error", err)
	}
	return thread, nil
}

func (s *BoardService) ListMessages(ctx context.Context, threadID uint) ([]models.Message, error) {
	if _, err := s.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	msgs, err := s.Repo.ListMessages(ctx, threadID)
	if err != nil {
		return nil, s.mapErr(ctx, "list_messages_error", err)
	}
	return msgs, nil
}

func (s *BoardService) CreateMessage(ctx context.Context, authorID, threadID uint, content string) (*models.Message, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if _, err := s.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	msg := &models.Message{ThreadID: threadID, AuthorID: authorID, Content: content}
	if err := s.Repo.CreateMessage(ctx, msg); err != nil {
		return nil, s.mapErr(ctx, "create_message_error", err)
	}

	s.publish(ctx, events.Event{Type: events.MessageCreated, UserID: authorID, ThreadID: threadID, EntityID: msg.ID})
	return msg, nil
}

func (s *BoardService) UpdateMessage(ctx context.Context, callerID, id uint, content string) (*models.Message, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}
	msg, err := s.owned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	msg.Content = content
	if err := s.Repo.SaveMessage(ctx, msg); err != nil {
		return nil, s.mapErr(ctx, "update_message_error", err)
	}

	s.publish(ctx, events.Event{Type: events.MessageUpdated, UserID: callerID, ThreadID: msg.ThreadID, EntityID: msg.ID})
	return msg, nil
}

func (s *BoardService) DeleteMessage(ctx context.Context, callerID, id uint) error {
	msg, err := s.owned(ctx, callerID, id)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteMessage(ctx, id); err != nil {
		return s.mapErr(ctx, "delete_message_error", err)
	}

	s.publish(ctx, events.Event{Type: events.MessageDeleted, UserID: callerID, ThreadID: msg.ThreadID, EntityID: id})
	return nil
}

func (s *BoardService) owned(ctx context.Context, callerID, id uint) (*models.Message, error) {
	msg, err := s.Repo.GetMessage(ctx, id)
	if err != nil {
		return nil, s.mapErr(ctx, "get_message_error", err)
	}
	if msg.AuthorID != callerID {
		logging.FromContext(ctx).Warn("message_forbidden", "status", 403, "message_id", id, "caller_id", callerID)
		return nil, ErrForbidden
	}
	return msg, nil
}

func (s *BoardService) mapErr(ctx context.Context, event string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	logging.FromContext(ctx).Error(event, "status", 500, "error", err)
	return ErrInternal
}

func (s *BoardService) publish(ctx context.Context, e events.Event) {
	if s.Publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Publisher.Publish(pctx, e); err != nil {
		logging.FromContext(ctx).Error("publish_error", "type", e.Type, "error", err)
	}
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if len(content) > maxContentLen {
		return fmt.Errorf("%w: content is longer than %d bytes", ErrValidation, maxContentLen)
	}
	return nil
}

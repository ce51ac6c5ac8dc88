package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/message_board/internal/config"
	"github.com/Skotchmaster/message_board/internal/db"
	"github.com/Skotchmaster/message_board/internal/events"
	"github.com/Skotchmaster/message_board/internal/repo"
)

func newBoardService(t *testing.T) (*BoardService, *events.Recorder) {
	t.Helper()

	gdb, err := db.Open(context.Background(), config.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	rec := &events.Recorder{}
	return &BoardService{Repo: repo.New(gdb), Publisher: rec}, rec
}

func TestBoardService_ThreadsAndMessages(t *testing.T) {
	svc, rec := newBoardService(t)
	ctx := context.Background()

	thread, err := svc.CreateThread(ctx, 1, "  general  ")
	require.NoError(t, err)
	assert.Equal(t, "general", thread.Title)
	assert.Equal(t, uint(1), thread.AuthorID)

	threads, err := svc.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 1)

	msg, err := svc.CreateMessage(ctx, 2, thread.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, uint(2), msg.AuthorID)
	assert.Equal(t, thread.ID, msg.ThreadID)

	msgs, err := svc.ListMessages(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)

	assert.Equal(t, []string{events.ThreadCreated, events.MessageCreated}, rec.Types())
}

func TestBoardService_Validation(t *testing.T) {
	svc, _ := newBoardService(t)
	ctx := context.Background()

	_, err := svc.CreateThread(ctx, 1, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	thread, err := svc.CreateThread(ctx, 1, "general")
	require.NoError(t, err)

	_, err = svc.CreateMessage(ctx, 1, thread.ID, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateMessage(ctx, 1, 999, "hello")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ListMessages(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetThread(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoardService_OnlyAuthorMayMutate(t *testing.T) {
	svc, rec := newBoardService(t)
	ctx := context.Background()

	thread, err := svc.CreateThread(ctx, 1, "general")
	require.NoError(t, err)
	msg, err := svc.CreateMessage(ctx, 1, thread.ID, "original")
	require.NoError(t, err)

	_, err = svc.UpdateMessage(ctx, 2, msg.ID, "hijacked")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.DeleteMessage(ctx, 2, msg.ID), ErrForbidden)

	updated, err := svc.UpdateMessage(ctx, 1, msg.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	require.NoError(t, svc.DeleteMessage(ctx, 1, msg.ID))
	assert.ErrorIs(t, svc.DeleteMessage(ctx, 1, msg.ID), ErrNotFound)

	_, err = svc.UpdateMessage(ctx, 1, msg.ID, "gone")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{
		events.ThreadCreated,
		events.MessageCreated,
		events.MessageUpdated,
		events.MessageDeleted,
	}, rec.Types())
}

package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/message_board/internal/logging"
	authmw "github.com/Skotchmaster/message_board/internal/middleware/auth"
	"github.com/Skotchmaster/message_board/internal/service"
)

type BoardHTTP struct {
	Svc *service.BoardService
}

// Bodies deliberately carry no author field; the author is the bearer.
type threadRequest struct {
	Title string `json:"title"`
}

type messageRequest struct {
	Content string `json:"content"`
}

func (h *BoardHTTP) ListThreads(c echo.Context) error {
	threads, err := h.Svc.ListThreads(c.Request().Context())
	if err != nil {
		code, msg := statusOf(err)
		return errorJSON(c, code, msg)
	}
	return c.JSON(http.StatusOK, threads)
}

func (h *BoardHTTP) GetThread(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	thread, err := h.Svc.GetThread(c.Request().Context(), id)
	if err != nil {
		code, msg := statusOf(err)
		return errorJSON(c, code, msg)
	}
	return c.JSON(http.StatusOK, thread)
}

func (h *BoardHTTP) CreateThread(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create_thread")

	caller, ok := authmw.IdentityFrom(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}

	var req threadRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_thread_error", "status", 400, "error", err)
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}

	thread, err := h.Svc.CreateThread(ctx, caller.UserID, req.Title)
	if err != nil {
		code, msg := statusOf(err)
		return errorJSON(c, code, msg)
	}
	l.Info("thread_created", "thread_id", thread.ID, "user_id", caller.UserID)
	return c.JSON(http.StatusCreated, thread)
}

func (h *BoardHTTP) ListMessages(c echo.Context) error {
	threadID, err := parseID(c, "id")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	msgs, err := h.Svc.ListMessages(c.Request().Context(), threadID)
	if err != nil {
		code, msg := statusOf(err)
		return errorJSON(c, code, msg)
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *BoardHTTP) CreateMessage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create_message")

	caller, ok := authmw.IdentityFrom(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	threadID, err := parseID(c, "id")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	var req messageRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_message_error", "status", 400, "error", err)
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}

	msg, err := h.Svc.CreateMessage(ctx, caller.UserID, threadID, req.Content)
	if err != nil {
		code, text := statusOf(err)
		return errorJSON(c, code, text)
	}
	l.Info("message_created", "message_id", msg.ID, "user_id", caller.UserID)
	return c.JSON(http.StatusCreated, msg)
}

func (h *BoardHTTP) UpdateMessage(c echo.Context) error {
	ctx := c.Request().Context()

	caller, ok := authmw.IdentityFrom(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}

	msg, err := h.Svc.UpdateMessage(ctx, caller.UserID, id, req.Content)
	if err != nil {
		code, text := statusOf(err)
		return errorJSON(c, code, text)
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *BoardHTTP) DeleteMessage(c echo.Context) error {
	caller, ok := authmw.IdentityFrom(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	if err := h.Svc.DeleteMessage(c.Request().Context(), caller.UserID, id); err != nil {
		code, text := statusOf(err)
		return errorJSON(c, code, text)
	}
	return c.NoContent(http.StatusNoContent)
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"aria-chat/internal/app"
	"aria-chat/internal/pkg/logger"
	"aria-chat/internal/transport/http/response"
)

type ChatHandler struct {
	views *app.ViewRegistry[*app.ChatController]
}

type CreateSessionRequest struct {
	Title string `json:"title" binding:"max=256"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"max=32000"`
}

func NewChatHandler(views *app.ViewRegistry[*app.ChatController]) *ChatHandler {
	return &ChatHandler{views: views}
}

func (h *ChatHandler) OpenView(c *gin.Context) {
	viewID, ctrl := h.views.Open()
	ctrl.ListSessions(c.Request.Context())
	logger.Ctx(c.Request.Context()).Debug().Str(logger.FieldViewID, viewID).Msg("chat view opened")
	response.OK(c, ctrl.Snapshot())
}

func (h *ChatHandler) Snapshot(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}
	response.OK(c, ctrl.Snapshot())
}

func (h *ChatHandler) CloseView(c *gin.Context) {
	if err := h.views.Close(c.Param("view")); err != nil {
		response.Error(c, http.StatusNotFound, response.CodeViewNotFound, err.Error())
		return
	}
	response.OK(c, gin.H{"closed_view_id": c.Param("view")})
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}
	response.OK(c, ctrl.ListSessions(c.Request.Context()))
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}

	if _, err := ctrl.CreateSession(c.Request.Context(), req.Title); err != nil {
		response.ErrorWithData(c, http.StatusInternalServerError, response.CodeInternalServer, "create session failed", ctrl.Snapshot())
		return
	}
	response.OK(c, ctrl.Snapshot())
}

func (h *ChatHandler) SelectSession(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}

	if err := ctrl.SelectSession(c.Request.Context(), c.Param("id")); err != nil {
		response.ErrorWithData(c, http.StatusInternalServerError, response.CodeInternalServer, "load messages failed", ctrl.Snapshot())
		return
	}
	response.OK(c, ctrl.Snapshot())
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}

	if err := ctrl.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		response.ErrorWithData(c, http.StatusInternalServerError, response.CodeInternalServer, "delete session failed", ctrl.Snapshot())
		return
	}
	response.OK(c, ctrl.Snapshot())
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if _, err := ctrl.SendMessage(c.Request.Context(), req.Content); err != nil {
		switch {
		case errors.Is(err, app.ErrMessageEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeMessageEmpty, err.Error())
		default:
			response.ErrorWithData(c, http.StatusInternalServerError, response.CodeInternalServer, "send message failed", ctrl.Snapshot())
		}
		return
	}
	response.OK(c, ctrl.Snapshot())
}

func (h *ChatHandler) Notifications(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}
	drainNotifications(c, ctrl)
}

func (h *ChatHandler) view(c *gin.Context) (*app.ChatController, bool) {
	ctrl, err := h.views.Get(c.Param("view"))
	if err != nil {
		response.Error(c, http.StatusNotFound, response.CodeViewNotFound, err.Error())
		return nil, false
	}
	return ctrl, true
}

package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"aria-chat/internal/app"
	"aria-chat/internal/notify"
	"aria-chat/internal/pkg/logger"
	"aria-chat/internal/transport/http/middleware"
	"aria-chat/internal/transport/http/response"
)

const uploadField = "files"

type DocumentHandler struct {
	views *app.ViewRegistry[*app.DocumentController]
}

type uploadResponse struct {
	Result app.UploadResult      `json:"result"`
	View   app.DocumentSnapshot `json:"view"`
}

func NewDocumentHandler(views *app.ViewRegistry[*app.DocumentController]) *DocumentHandler {
	return &DocumentHandler{views: views}
}

func (h *DocumentHandler) OpenView(c *gin.Context) {
	viewID, ctrl := h.views.Open()
	_, _ = ctrl.ListDocuments(c.Request.Context())
	evt := logger.Ctx(c.Request.Context()).Info().Str(logger.FieldViewID, viewID)
	if profile, ok := middleware.ProfileFromContext(c); ok {
		evt = evt.Str("subject", profile.Subject)
	}
	evt.Msg("admin view opened")
	response.OK(c, ctrl.Snapshot())
}

// Snapshot returns the view; a q parameter replaces the search query.
func (h *DocumentHandler) Snapshot(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}
	if q, present := c.GetQuery("q"); present {
		ctrl.SetQuery(q)
	}
	response.OK(c, ctrl.Snapshot())
}

func (h *DocumentHandler) CloseView(c *gin.Context) {
	if err := h.views.Close(c.Param("view")); err != nil {
		response.Error(c, http.StatusNotFound, response.CodeViewNotFound, err.Error())
		return
	}
	response.OK(c, gin.H{"closed_view_id": c.Param("view")})
}

func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}
	if _, err := ctrl.ListDocuments(c.Request.Context()); err != nil {
		response.ErrorWithData(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed", ctrl.Snapshot())
		return
	}
	response.OK(c, ctrl.Snapshot())
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}
	headers := form.File[uploadField]
	if len(headers) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no files selected")
		return
	}

	files := make([]app.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFile(fh))
	}

	result := ctrl.Upload(c.Request.Context(), files)
	if profile, ok := middleware.ProfileFromContext(c); ok {
		logger.Ctx(c.Request.Context()).Info().
			Str("subject", profile.Subject).
			Int("accepted", len(result.Accepted)).
			Int("rejected", result.Rejected).
			Int("failed", result.Failed).
			Msg("documents uploaded")
	}
	response.OK(c, uploadResponse{Result: result, View: ctrl.Snapshot()})
}

func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}

	if err := ctrl.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		response.ErrorWithData(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed", ctrl.Snapshot())
		return
	}
	response.OK(c, ctrl.Snapshot())
}

func (h *DocumentHandler) Notifications(c *gin.Context) {
	ctrl, ok := h.view(c)
	if !ok {
		return
	}
	drainNotifications(c, ctrl)
}

func (h *DocumentHandler) view(c *gin.Context) (*app.DocumentController, bool) {
	ctrl, err := h.views.Get(c.Param("view"))
	if err != nil {
		response.Error(c, http.StatusNotFound, response.CodeViewNotFound, err.Error())
		return nil, false
	}
	return ctrl, true
}

func uploadFile(fh *multipart.FileHeader) app.UploadFile {
	return app.UploadFile{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

type notificationSource interface {
	Notifications(ctx context.Context) ([]notify.Notification, error)
}

func drainNotifications(c *gin.Context, src notificationSource) {
	items, err := src.Notifications(c.Request.Context())
	if err != nil {
		logger.Ctx(c.Request.Context()).Error().Err(err).Msg("drain notifications failed")
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "drain notifications failed")
		return
	}
	if items == nil {
		items = []notify.Notification{}
	}
	response.OK(c, items)
}

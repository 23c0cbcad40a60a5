package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aria-chat/internal/app"
	"aria-chat/internal/bootstrap"
	"aria-chat/internal/config"
	"aria-chat/internal/model"
	"aria-chat/internal/notify"
	"aria-chat/internal/transport/http/response"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	app    *bootstrap.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.App.GinMode = gin.TestMode
	cfg.App.WebDir = filepath.Join(dir, "web")
	cfg.Database.Path = filepath.Join(dir, "aria.db")
	cfg.Storage.LocalPath = filepath.Join(dir, "uploads")
	cfg.Chat.ReplyDelayMS = 0
	cfg.Auth.JWTSecret = "test-secret"

	a, err := bootstrap.NewWithConfig(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &testServer{t: t, router: NewRouter(a), app: a}
}

func (s *testServer) do(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) (envelope, T) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	var data T
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return env, data
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestChatFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/chat/views", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, view := decode[app.ChatSnapshot](t, rec)
	require.NotEmpty(t, view.ViewID)
	base := "/api/v1/chat/views/" + view.ViewID

	rec = s.do(http.MethodPost, base+"/messages", gin.H{"content": "hello there"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, snap := decode[app.ChatSnapshot](t, rec)
	require.NotEmpty(t, snap.CurrentSessionID)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, "hello there", snap.Sessions[0].Title)

	require.Eventually(t, func() bool {
		_, snap = decode[app.ChatSnapshot](t, s.do(http.MethodGet, base, nil, nil))
		return len(snap.Messages) == 2
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, model.RoleAssistant, snap.Messages[1].Role)

	rec = s.do(http.MethodPut, base+"/sessions/"+snap.CurrentSessionID+"/select", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, snap = decode[app.ChatSnapshot](t, rec)
	assert.Len(t, snap.Messages, 2)

	rec = s.do(http.MethodDelete, base+"/sessions/"+snap.CurrentSessionID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, snap = decode[app.ChatSnapshot](t, rec)
	assert.Empty(t, snap.CurrentSessionID)
	assert.Empty(t, snap.Sessions)

	_, items := decode[[]notify.Notification](t, s.do(http.MethodGet, base+"/notifications", nil, nil))
	require.Len(t, items, 1)
	assert.Equal(t, "Chat session deleted", items[0].Description)

	rec = s.do(http.MethodDelete, base, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, base, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatCreateSessionAndBlankMessage(t *testing.T) {
	s := newTestServer(t)
	_, view := decode[app.ChatSnapshot](t, s.do(http.MethodPost, "/api/v1/chat/views", nil, nil))
	base := "/api/v1/chat/views/" + view.ViewID

	rec := s.do(http.MethodPost, base+"/sessions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, snap := decode[app.ChatSnapshot](t, rec)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, "New Chat", snap.Sessions[0].Title)

	rec = s.do(http.MethodPost, base+"/messages", gin.H{"content": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env, _ := decode[any](t, rec)
	assert.Equal(t, response.CodeMessageEmpty, env.Code)

	_, sessions := decode[[]model.ChatSession](t, s.do(http.MethodGet, base+"/sessions", nil, nil))
	assert.Len(t, sessions, 1)
}

func TestAdminRequiresIdentity(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/admin/views", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/admin/views", nil, bearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, state := decode[map[string]any](t, s.do(http.MethodGet, "/api/v1/admin/session", nil, nil))
	assert.Equal(t, false, state["is_authenticated"])
	assert.Equal(t, false, state["is_loading"])
}

func TestAdminDocumentFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "admin@example.com", "name": "Admin", "password": "password123",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, auth := decode[struct {
		Token string `json:"token"`
	}](t, rec)
	require.NotEmpty(t, auth.Token)
	hdr := bearer(auth.Token)

	_, state := decode[map[string]any](t, s.do(http.MethodGet, "/api/v1/admin/session", nil, hdr))
	assert.Equal(t, true, state["is_authenticated"])

	rec = s.do(http.MethodPost, "/api/v1/admin/views", nil, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	_, view := decode[app.DocumentSnapshot](t, rec)
	base := "/api/v1/admin/views/" + view.ViewID

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range map[string]string{"notes.txt": "meeting notes", "tool.exe": "MZ"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, base+"/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, uploaded := decode[struct {
		Result app.UploadResult      `json:"result"`
		View   app.DocumentSnapshot `json:"view"`
	}](t, rec)
	assert.Len(t, uploaded.Result.Accepted, 1)
	assert.Equal(t, 1, uploaded.Result.Rejected)
	require.Len(t, uploaded.View.Documents, 1)
	assert.Equal(t, "notes.txt", uploaded.View.Documents[0].Name)

	_, items := decode[[]notify.Notification](t, s.do(http.MethodGet, base+"/notifications", nil, hdr))
	var titles []string
	for _, n := range items {
		titles = append(titles, n.Title)
	}
	assert.Contains(t, titles, "Invalid File Type")

	var snap app.DocumentSnapshot
	require.Eventually(t, func() bool {
		_, snap = decode[app.DocumentSnapshot](t, s.do(http.MethodGet, base+"/documents", nil, hdr))
		return len(snap.Documents) == 1 && snap.Documents[0].Status == model.DocumentReady
	}, 3*time.Second, 20*time.Millisecond)
	require.NotNil(t, snap.Documents[0].Content)
	assert.Equal(t, "meeting notes", *snap.Documents[0].Content)
	assert.Equal(t, "Ready", snap.Documents[0].StatusLabel)

	_, snap = decode[app.DocumentSnapshot](t, s.do(http.MethodGet, base+"?q=zzz", nil, hdr))
	assert.Empty(t, snap.Documents)
	assert.Equal(t, 1, snap.Total)

	rec = s.do(http.MethodDelete, base+"/documents/"+uploaded.Result.Accepted[0], nil, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	_, snap = decode[app.DocumentSnapshot](t, rec)
	assert.Zero(t, snap.Total)
}

func TestLoginWithCookie(t *testing.T) {
	s := newTestServer(t)
	creds := gin.H{"email": "ops@example.com", "password": "password123"}

	rec := s.do(http.MethodPost, "/api/v1/auth/register", creds, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ops@example.com", "password": "wrong-password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/auth/login", creds, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/views", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOAuthRoutesWithoutProvider(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/admin/login", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	rec = s.do(http.MethodGet, "/admin/callback?code=x&state=y", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/admin/logout", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestNotFoundAndOps(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/definitely/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")

	rec = s.do(http.MethodGet, "/api/v1/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	env, _ := decode[any](t, rec)
	assert.Equal(t, response.CodeNotFound, env.Code)

	rec = s.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"disabled":true`)

	rec = s.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}

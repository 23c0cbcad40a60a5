package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aria-chat/internal/app"
	"aria-chat/internal/identity"
	"aria-chat/internal/model"
	"aria-chat/internal/pkg/logger"
	"aria-chat/internal/transport/http/middleware"
	"aria-chat/internal/transport/http/response"
)

const (
	stateCookieName = "aria_oauth_state"
	stateCookieTTL  = 10 * time.Minute
	adminPage       = "/admin"
)

type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

type AuthHandler struct {
	authService *app.AuthService
	gate        *identity.Gate
	oauth       *identity.OAuthProvider
	cookie      CookieConfig
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=128"`
	Name     string `json:"name" binding:"max=128"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=128"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

func NewAuthHandler(authService *app.AuthService, gate *identity.Gate, oauth *identity.OAuthProvider, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		gate:        gate,
		oauth:       oauth,
		cookie:      cookie,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), app.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrEmailExists):
			response.Error(c, http.StatusBadRequest, response.CodeEmailExists, err.Error())
		case errors.Is(err, app.ErrRegistrationClosed):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "register failed")
		}
		return
	}

	h.setSessionCookie(c, result.Token)
	response.OK(c, authPayload(result))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidCredential):
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		}
		return
	}

	h.setSessionCookie(c, result.Token)
	response.OK(c, authPayload(result))
}

// Session reports the identity state of the caller. It never fails: an
// anonymous caller gets is_authenticated=false.
func (h *AuthHandler) Session(c *gin.Context) {
	state := h.gate.Resolve(middleware.TokenFromRequest(c, h.cookie.Name))
	response.OK(c, gin.H{
		"is_loading":       state.IsLoading,
		"is_authenticated": state.IsAuthenticated,
		"user":             state.User,
		"oauth_enabled":    h.oauth.Enabled(),
	})
}

// OAuthLogin redirects to the provider's authorize page.
func (h *AuthHandler) OAuthLogin(c *gin.Context) {
	if !h.oauth.Enabled() {
		c.Redirect(http.StatusFound, adminPage)
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, int(stateCookieTTL.Seconds()), "/", "", h.cookie.Secure, true)
	c.Redirect(http.StatusFound, h.oauth.LoginURL(state))
}

func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	log := logger.Ctx(c.Request.Context())
	if !h.oauth.Enabled() {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, identity.ErrProviderDisabled.Error())
		return
	}

	expected, err := c.Cookie(stateCookieName)
	c.SetCookie(stateCookieName, "", -1, "/", "", h.cookie.Secure, true)
	if err != nil || expected == "" || expected != c.Query("state") {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid login state")
		return
	}
	if providerErr := c.Query("error"); providerErr != "" {
		log.Warn().Str("error", providerErr).Str("description", c.Query("error_description")).Msg("provider rejected login")
		c.Redirect(http.StatusFound, adminPage)
		return
	}

	code := c.Query("code")
	if code == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing authorization code")
		return
	}

	idToken, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("exchange authorization code failed")
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "login failed")
		return
	}
	if _, err := h.oauth.Verify(idToken); err != nil {
		log.Error().Err(err).Msg("verify id token failed")
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "login failed")
		return
	}

	h.setSessionCookie(c, idToken)
	c.Redirect(http.StatusFound, adminPage)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	if h.oauth.Enabled() {
		c.Redirect(http.StatusFound, h.oauth.LogoutURL())
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	if h.cookie.Name == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, int(h.cookie.MaxAge.Seconds()), "/", "", h.cookie.Secure, true)
}

func authPayload(result *app.AuthResult) gin.H {
	return gin.H{
		"token": result.Token,
		"user":  adminUser(result.User),
	}
}

func adminUser(user *model.AdminUser) gin.H {
	return gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	}
}

package http

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"modemode/internal/domain"
	"modemode/internal/generation"
	"modemode/internal/service"
)

const claimsKey = "auth.claims"

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth      service.AuthService
	images    generation.ImageProvider
	video     generation.VideoProvider
	publicDir string
	log       logrus.FieldLogger
}

func NewHandler(auth service.AuthService, images generation.ImageProvider, video generation.VideoProvider, publicDir string, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		auth:      auth,
		images:    images,
		video:     video,
		publicDir: publicDir,
		log:       log.WithField("component", "http"),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/auth/signup", h.signup)
		api.POST("/auth/login", h.login)
		api.GET("/auth/me", h.requireAuth(), h.me)
		api.POST("/gemini-image", h.generateImages)
		api.POST("/video-from-images", h.videoFromImages)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": true})
		})
	}

	router.NoRoute(h.serveStatic)
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	OK    bool   `json:"ok"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

type imageRequest struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count"`
}

type videoRequest struct {
	Images []string `json:"images"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	// an unreadable body is answered the same as an empty one
	_ = c.ShouldBindJSON(&req)

	session, err := h.auth.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	_ = c.ShouldBindJSON(&req)

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

func (h *Handler) me(c *gin.Context) {
	claims := c.MustGet(claimsKey).(*domain.Claims)
	user, err := h.auth.CurrentUser(c.Request.Context(), claims)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"id":         user.ID,
		"name":       user.DisplayName,
		"email":      user.Email,
		"created_at": user.CreatedAt.Format(time.RFC3339),
	})
}

// requireAuth accepts "Authorization: Bearer <token>" and stores the claims
// on the context.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			h.fail(c, domain.ErrInvalidToken)
			c.Abort()
			return
		}

		claims, err := h.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func (h *Handler) generateImages(c *gin.Context) {
	var req imageRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": generation.ErrEmptyPrompt.Error()})
		return
	}

	images, err := h.images.Generate(c.Request.Context(), req.Prompt, req.Count)
	if err != nil {
		h.log.WithError(err).Warn("image generation failed")
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "msg": "image generation failed"})
		return
	}

	resp := gin.H{"ok": true, "images": images}
	if h.images.Demo() {
		resp["demo"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) videoFromImages(c *gin.Context) {
	var req videoRequest
	_ = c.ShouldBindJSON(&req)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	videoURL, err := h.video.Assemble(ctx, req.Images)
	if err != nil {
		h.log.WithError(err).Warn("video assembly failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "msg": "video generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "videoUrl": videoURL})
}

// serveStatic serves files from the public directory and falls back to
// index.html so client-side routes resolve.
func (h *Handler) serveStatic(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") || h.publicDir == "" {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "msg": "not found"})
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "msg": "not found"})
		return
	}

	root := filepath.Clean(h.publicDir)
	rel := filepath.FromSlash(filepath.Clean("/" + c.Request.URL.Path))
	candidates := []string{filepath.Join(root, rel)}
	if filepath.Ext(rel) == "" {
		candidates = append(candidates, filepath.Join(root, rel+".html"))
	}
	candidates = append(candidates, filepath.Join(root, "index.html"))

	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			c.File(p)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"ok": false, "msg": "not found"})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	c.JSON(status, gin.H{"ok": false, "msg": msg})
}

// classify maps service errors to a status and a client-safe message. Bad
// signatures and expired tokens share one response.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingFields):
		return http.StatusBadRequest, domain.ErrMissingFields.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, domain.ErrEmailTaken.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, domain.ErrInvalidCredentials.Error()
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrExpired):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		OK:    true,
		Name:  s.User.DisplayName,
		Email: s.User.Email,
		Token: s.Token,
	}
}

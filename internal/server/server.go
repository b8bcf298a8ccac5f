// Package server exposes an embedded backend over HTTP for `habio serve`.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/backend/embedded"
	"github.com/julianstephens/habio/internal/constants"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/logger"
	"github.com/julianstephens/habio/internal/models"
)

const (
	identityKey = "identity"
	secretKey   = "secret"

	keepAliveInterval = 15 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type Options struct {
	// ProjectID, when set, must be sent by clients in the project header
	ProjectID   string
	CORSOrigins []string
}

type Server struct {
	backend *embedded.Backend
	project string
	engine  *gin.Engine
}

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Type    errors.Kind `json:"type"`
	Message string      `json:"message"`
}

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createDocumentRequest struct {
	DocumentID string         `json:"documentId"`
	Data       map[string]any `json:"data"`
}

type updateDocumentRequest struct {
	Data map[string]any `json:"data"`
}

func New(b *embedded.Backend, opts Options) *Server {
	s := &Server{
		backend: b,
		project: opts.ProjectID,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	if len(opts.CORSOrigins) > 0 {
		s.engine.Use(cors.New(cors.Config{
			AllowOrigins:  opts.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", constants.HeaderSession, constants.HeaderProject},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)

	v1 := s.engine.Group("/v1", s.requireProject())
	{
		v1.POST("/account", s.createAccount)
		v1.POST("/account/sessions/email", s.createSession)

		authed := v1.Group("", s.requireSession())
		authed.GET("/account", s.currentAccount)
		authed.DELETE("/account/sessions/current", s.deleteSession)

		docs := authed.Group("/databases/:db/collections/:col/documents")
		docs.GET("", s.listDocuments)
		docs.POST("", s.createDocument)
		docs.PATCH("/:id", s.updateDocument)
		docs.DELETE("/:id", s.deleteDocument)

		authed.GET("/realtime", s.realtime)
	}
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		keyvals := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("Request failed", append(keyvals, "errors", c.Errors.String())...)
			return
		}
		logger.Debug("Request", keyvals...)
	}
}

func (s *Server) requireProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.project != "" && c.GetHeader(constants.HeaderProject) != s.project {
			abortWithError(c, errors.New(errors.KindNotFound, "Project not found"))
			return
		}
		c.Next()
	}
}

func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader(constants.HeaderSession)
		identity, err := s.backend.Authenticate(c.Request.Context(), secret)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(identityKey, identity)
		c.Set(secretKey, secret)
		c.Next()
	}
}

func currentIdentity(c *gin.Context) models.Identity {
	identity, _ := c.MustGet(identityKey).(models.Identity)
	return identity
}

func statusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindUnauthorized:
		return http.StatusUnauthorized
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	kind := errors.KindOf(err)
	status := statusFor(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "Internal server error"
	}
	c.AbortWithStatusJSON(status, ErrorBody{Type: kind, Message: message})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, errors.Wrap(errors.KindValidation, err, "Invalid request body: "+err.Error()))
		return false
	}
	return true
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"dialect": s.backend.Dialect(),
		"version": constants.Version,
	})
}

func (s *Server) createAccount(c *gin.Context) {
	var req credentials
	if !bindJSON(c, &req) {
		return
	}
	identity, err := s.backend.CreateAccount(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, identity)
}

func (s *Server) createSession(c *gin.Context) {
	var req credentials
	if !bindJSON(c, &req) {
		return
	}
	session, err := s.backend.CreateSession(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) currentAccount(c *gin.Context) {
	c.JSON(http.StatusOK, currentIdentity(c))
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.backend.DeleteSession(c.Request.Context(), c.GetString(secretKey)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listDocuments(c *gin.Context) {
	var filters []backend.Filter
	for _, raw := range c.QueryArray("filter") {
		var f backend.Filter
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			abortWithError(c, errors.Newf(errors.KindValidation, "Invalid filter %q", raw))
			return
		}
		filters = append(filters, f)
	}

	list, err := s.backend.ListDocuments(c.Request.Context(), currentIdentity(c).ID, c.Param("db"), c.Param("col"), filters...)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createDocument(c *gin.Context) {
	var req createDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	doc, err := s.backend.CreateDocument(c.Request.Context(), currentIdentity(c).ID, c.Param("db"), c.Param("col"), req.DocumentID, req.Data)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) updateDocument(c *gin.Context) {
	var req updateDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	doc, err := s.backend.UpdateDocument(c.Request.Context(), currentIdentity(c).ID, c.Param("db"), c.Param("col"), c.Param("id"), req.Data)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) deleteDocument(c *gin.Context) {
	if err := s.backend.DeleteDocument(c.Request.Context(), currentIdentity(c).ID, c.Param("db"), c.Param("col"), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// realtime streams events as server-sent events. A "ready" event is sent once
// the subscription is live; "ping" keeps idle connections open.
func (s *Server) realtime(c *gin.Context) {
	channels := c.QueryArray("channels")
	ctx := c.Request.Context()

	events := make(chan backend.Event, 16)
	unsubscribe, err := s.backend.Subscribe(ctx, currentIdentity(c).ID, channels, func(ev backend.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"channels": channels})
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-events:
			c.SSEvent("event", ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}

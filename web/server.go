// Package web serves stored messages over HTTP. An email's "view in
// browser" link or an SMS permalink re-renders the exact message that was
// sent, from its frozen context. It also exposes a small API to send
// messages and to honour data-deletion requests.
package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"courier"
	"courier/phone"
)

const defaultTokenTTL = 30 * 24 * time.Hour

// Server exposes message permalinks.
type Server struct {
	courier *courier.Courier
	log     *slog.Logger

	// signingSecret, when set, requires a valid token query parameter on
	// every permalink. Without it the links are public.
	signingSecret string
	tokenTTL      time.Duration
}

// Options configures a Server.
type Options struct {
	Courier *courier.Courier
	Logger  *slog.Logger

	// SigningSecret protects permalinks with signed tokens, empty leaves
	// them public.
	SigningSecret string

	// TokenTTL is how long a signed link stays valid.
	TokenTTL time.Duration
}

// NewServer creates a permalink server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Server{
		courier:       opts.Courier,
		log:           logger,
		signingSecret: opts.SigningSecret,
		tokenTTL:      ttl,
	}
}

// Router builds the engine serving the permalinks.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.loggingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/email/:ref", s.emailHandler)
	r.GET("/sms/:id", s.smsHandler)
	r.POST("/messages/email", s.sendEmailHandler)
	r.POST("/messages/sms", s.sendSmsHandler)
	r.DELETE("/users/:id", s.deleteUserHandler)
	return r
}

// sendRequest is the payload for the send endpoints. User, when given,
// attaches the message to that user for later cascade deletion.
type sendRequest struct {
	Type string          `json:"type" binding:"required"`
	Data courier.Context `json:"data"`
	User string          `json:"user"`
}

func (s *Server) sendEmailHandler(c *gin.Context) {
	if !s.authorizeAPI(c) {
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	rec, err := s.courier.SendEmailFor(c.Request.Context(), req.Type, req.Data, req.User)
	if err != nil {
		writeSendError(c, err)
		return
	}
	html, err := s.SignedLink(rec.LinkHTML(), rec.ID)
	if err != nil {
		writeSendError(c, err)
		return
	}
	text, err := s.SignedLink(rec.LinkText(), rec.ID)
	if err != nil {
		writeSendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":    rec.ID.String(),
		"links": gin.H{"html": html, "text": text},
	})
}

func (s *Server) sendSmsHandler(c *gin.Context) {
	if !s.authorizeAPI(c) {
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	rec, err := s.courier.SendSmsFor(c.Request.Context(), req.Type, req.Data, req.User)
	if err != nil {
		writeSendError(c, err)
		return
	}
	link, err := s.SignedLink(rec.Link(), rec.ID)
	if err != nil {
		writeSendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": rec.ID.String(), "link": link})
}

// deleteUserHandler drops every message stored for a user, for
// right-to-erasure requests.
func (s *Server) deleteUserHandler(c *gin.Context) {
	if !s.authorizeAPI(c) {
		return
	}
	if err := s.courier.DeleteUserMessages(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) emailHandler(c *gin.Context) {
	id, format, ok := splitEmailRef(c.Param("ref"))
	if !ok {
		writeError(c, courier.ErrNotFound)
		return
	}
	if !s.authorize(c, id) {
		return
	}

	out, err := s.courier.RenderEmail(c.Request.Context(), id, format)
	if err != nil {
		writeError(c, err)
		return
	}
	contentType := "text/plain; charset=utf-8"
	if format == "html" {
		contentType = "text/html; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, []byte(out))
}

func (s *Server) smsHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, courier.ErrNotFound)
		return
	}
	if !s.authorize(c, id) {
		return
	}

	out, err := s.courier.RenderSms(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(out))
}

// splitEmailRef parses "<uuid>.<format>". The format is constrained here so
// an unknown one is a plain 404, same as a malformed ID.
func splitEmailRef(ref string) (uuid.UUID, string, bool) {
	base, format, found := strings.Cut(ref, ".")
	if !found || (format != "html" && format != "txt") {
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(base)
	if err != nil {
		return uuid.Nil, "", false
	}
	return id, format, true
}

// writeError maps rendering failures onto responses. A message that does
// not exist and a format it does not have both come out as 404.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, courier.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "No such message"})
	case errors.Is(err, courier.ErrNotImplemented):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "The message has no such format"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}

// writeSendError maps send failures onto responses. An unknown type name
// and a recipient that cannot be parsed are the caller's fault.
func writeSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, courier.ErrUnknownType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_type", "message": "No such message type"})
	case errors.Is(err, phone.ErrInvalidNumber):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_recipient", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send_failed", "message": err.Error()})
	}
}

// SignedLink appends an access token to a permalink when the server
// requires one, otherwise it returns the path untouched.
func (s *Server) SignedLink(path string, id uuid.UUID) (string, error) {
	if s.signingSecret == "" {
		return path, nil
	}
	token, err := s.createAccessToken(id)
	if err != nil {
		return "", err
	}
	return path + "?token=" + token, nil
}

func (s *Server) createAccessToken(id uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"message_id": id.String(),
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.signingSecret))
}

func (s *Server) verifyAccessToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(s.signingSecret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid claims")
	}
	raw, ok := claims["message_id"].(string)
	if !ok || raw == "" {
		return uuid.Nil, fmt.Errorf("missing message_id")
	}
	return uuid.Parse(raw)
}

// authorize checks the access token when one is required. It writes the
// response itself on failure.
func (s *Server) authorize(c *gin.Context, id uuid.UUID) bool {
	if s.signingSecret == "" {
		return true
	}
	got, err := s.verifyAccessToken(c.Query("token"))
	if err != nil || got != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Invalid or expired link"})
		return false
	}
	return true
}

// APIToken mints a token for the send and deletion endpoints. It fails
// when no signing secret is configured, an unprotected server needs none.
func (s *Server) APIToken() (string, error) {
	if s.signingSecret == "" {
		return "", fmt.Errorf("no signing secret configured")
	}
	claims := jwt.MapClaims{
		"scope": "api",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.signingSecret))
}

func (s *Server) verifyAPIToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(s.signingSecret), nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["scope"] != "api" {
		return fmt.Errorf("invalid scope")
	}
	return nil
}

// authorizeAPI guards the mutating endpoints. A message access token does
// not pass here, the scopes differ.
func (s *Server) authorizeAPI(c *gin.Context) bool {
	if s.signingSecret == "" {
		return true
	}
	if err := s.verifyAPIToken(bearerToken(c)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Invalid or expired token"})
		return false
	}
	return true
}

func bearerToken(c *gin.Context) string {
	if queryToken := strings.TrimSpace(c.Query("token")); queryToken != "" {
		return queryToken
	}

	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	const bearerPrefix = "Bearer "
	if len(authHeader) < len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(bearerPrefix):])
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

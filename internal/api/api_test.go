package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"support-assistant/backend/ai"
	"support-assistant/backend/internal/models"
	"support-assistant/backend/internal/service"
	apperrors "support-assistant/backend/pkg/errors"
	"support-assistant/backend/pkg/jwt"
	"support-assistant/backend/pkg/logger"
	"support-assistant/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubStream struct {
	fragments []string
	idx       int
}

func (s *stubStream) Recv() (string, error) {
	if s.idx < len(s.fragments) {
		fragment := s.fragments[s.idx]
		s.idx++
		return fragment, nil
	}
	return "", io.EOF
}

func (s *stubStream) Close() error { return nil }

type stubGenerator struct {
	fragments []string
	err       error
}

func (g *stubGenerator) Generate(context.Context, string, []ai.Exchange, string) (service.FragmentStream, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &stubStream{fragments: g.fragments}, nil
}

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
}

func newTestServer(t *testing.T, gen service.ResponseGenerator) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Ticket{}, &models.Message{}))

	log := logger.New(logger.Config{Output: io.Discard})
	jwtService := jwt.NewService("test-secret", time.Hour)
	users := service.NewUserService(db, jwtService)
	tickets := service.NewTicketService(db)
	streams := service.NewStreamService(db, tickets, gen, nil, nil, log)
	auth := middleware.NewAuth(jwtService, users, nil, nil)

	engine := gin.New()
	engine.Use(logger.Middleware(log))
	engine.Use(apperrors.ErrorHandler())

	requireAuth := auth.RequireAuth()
	authHandler := NewAuthHandler(users, nil)
	ticketHandler := NewTicketHandler(tickets)
	aiHandler := NewAIResponseHandler(streams)

	v1 := engine.Group("/api/v1")
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", requireAuth, authHandler.Logout)
		authRoutes.GET("/me", requireAuth, authHandler.Me)
	}
	ticketRoutes := v1.Group("/tickets")
	ticketRoutes.Use(requireAuth)
	{
		ticketRoutes.GET("", ticketHandler.List)
		ticketRoutes.POST("", ticketHandler.Create)
		ticketRoutes.GET("/:id", ticketHandler.Get)
		ticketRoutes.PUT("/:id", ticketHandler.Update)
		ticketRoutes.POST("/:id/messages", ticketHandler.AddMessage)
		ticketRoutes.GET("/:id/ai-response", aiHandler.Stream)
	}

	return &testServer{engine: engine, db: db}
}

func (s *testServer) do(t *testing.T, method, path, token string, body string, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) signup(t *testing.T, email, password string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"email":"`+email+`","password":"`+password+`"}`, "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "",
		form.Encode(), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "bearer", resp.TokenType)
	return resp.AccessToken
}

func (s *testServer) createTicket(t *testing.T, token, title, description string) uint {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/tickets", token,
		`{"title":"`+title+`","description":"`+description+`"}`, "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))
	return ticket.ID
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})

	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"email":"alice@example.com","password":"password123"}`, "application/json")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	token := s.login(t, "alice@example.com", "password123")
	assert.NotEmpty(t, token)

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestSignupDuplicateEmail(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})
	s.signup(t, "alice@example.com", "password123")

	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"email":"alice@example.com","password":"password123"}`, "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "UserAlreadyExists")
}

func TestSignupRejectsShortPassword(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})

	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"email":"alice@example.com","password":"short"}`, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})
	s.signup(t, "alice@example.com", "password123")

	form := url.Values{"username": {"alice@example.com"}, "password": {"wrong-password"}}
	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "",
		form.Encode(), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidCredentials")
}

func TestLogoutWithoutRevocationStore(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})
	s.signup(t, "alice@example.com", "password123")
	token := s.login(t, "alice@example.com", "password123")

	w := s.do(t, http.MethodPost, "/api/v1/auth/logout", token, "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestTicketsRequireAuthentication(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})

	w := s.do(t, http.MethodGet, "/api/v1/tickets", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthenticated")

	w = s.do(t, http.MethodGet, "/api/v1/tickets", "not-a-token", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTicketLifecycle(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})
	s.signup(t, "alice@example.com", "password123")
	token := s.login(t, "alice@example.com", "password123")

	id := s.createTicket(t, token, "Printer offline", "The office printer stopped responding.")

	w := s.do(t, http.MethodGet, "/api/v1/tickets", token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Printer offline")

	w = s.do(t, http.MethodPost, "/api/v1/tickets/"+itoa(id)+"/messages", token,
		`{"content":"It shows error code 42."}`, "application/json")
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/tickets/"+itoa(id), token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "error code 42")

	w = s.do(t, http.MethodPut, "/api/v1/tickets/"+itoa(id), token,
		`{"status":"resolved"}`, "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "resolved")
}

func TestTicketAuthorizationUniform(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})
	s.signup(t, "owner@example.com", "password123")
	s.signup(t, "other@example.com", "password123")
	ownerToken := s.login(t, "owner@example.com", "password123")
	otherToken := s.login(t, "other@example.com", "password123")

	id := s.createTicket(t, ownerToken, "Login broken", "Cannot sign in from the mobile app.")

	// The same predicate gates read, update and append
	w := s.do(t, http.MethodGet, "/api/v1/tickets/"+itoa(id), otherToken, "", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "NotAuthorized")

	w = s.do(t, http.MethodPut, "/api/v1/tickets/"+itoa(id), otherToken,
		`{"status":"resolved"}`, "application/json")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/tickets/"+itoa(id)+"/messages", otherToken,
		`{"content":"hello"}`, "application/json")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/tickets/9999", ownerToken, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NotFound")
}

func TestAIResponseStream(t *testing.T) {
	s := newTestServer(t, &stubGenerator{fragments: []string{"Try ", "restarting ", "the app."}})
	s.signup(t, "alice@example.com", "password123")
	token := s.login(t, "alice@example.com", "password123")

	id := s.createTicket(t, token, "Login broken", "Cannot sign in from the mobile app.")
	w := s.do(t, http.MethodPost, "/api/v1/tickets/"+itoa(id)+"/messages", token,
		`{"content":"It crashes on startup."}`, "application/json")
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/tickets/"+itoa(id)+"/ai-response", token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	expected := "data: Try \n\ndata: restarting \n\ndata: the app.\n\ndata: [DONE]\n\n"
	assert.Equal(t, expected, w.Body.String())

	// The full reply is persisted as one AI message
	var saved models.Message
	require.NoError(t, s.db.Where("ticket_id = ? AND is_ai = ?", id, true).First(&saved).Error)
	assert.Equal(t, "Try restarting the app.", saved.Content)
}

func TestAIResponseEmptyTicket(t *testing.T) {
	s := newTestServer(t, &stubGenerator{fragments: []string{"unused"}})
	s.signup(t, "alice@example.com", "password123")
	token := s.login(t, "alice@example.com", "password123")

	id := s.createTicket(t, token, "Login broken", "Cannot sign in from the mobile app.")

	w := s.do(t, http.MethodGet, "/api/v1/tickets/"+itoa(id)+"/ai-response", token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.NoMessagesPayload, w.Body.String())
}

func TestAIResponseUpstreamFailure(t *testing.T) {
	s := newTestServer(t, &stubGenerator{err: errors.New("connection refused")})
	s.signup(t, "alice@example.com", "password123")
	token := s.login(t, "alice@example.com", "password123")

	id := s.createTicket(t, token, "Login broken", "Cannot sign in from the mobile app.")
	w := s.do(t, http.MethodPost, "/api/v1/tickets/"+itoa(id)+"/messages", token,
		`{"content":"Please help."}`, "application/json")
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/tickets/"+itoa(id)+"/ai-response", token, "", "")
	assert.Contains(t, w.Body.String(), "event: error")
	assert.NotContains(t, w.Body.String(), "[DONE]")

	var count int64
	require.NoError(t, s.db.Model(&models.Message{}).
		Where("ticket_id = ? AND is_ai = ?", id, true).Count(&count).Error)
	assert.Zero(t, count)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

package fakeapi

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Server is the fake backend
type Server struct {
	router     *gin.Engine
	db         *gorm.DB
	logger     zerolog.Logger
	secret     []byte
	httpServer *httptest.Server

	mu           sync.Mutex
	health       healthReply
	googleTokens map[string]GoogleIdentity
	profileFault int
	calls        map[string]int
}

// GoogleIdentity is the account a scripted Google ID token resolves to
type GoogleIdentity struct {
	Email    string
	FullName string
}

type healthReply struct {
	statusCode int
	body       []byte
}

// New creates a fake backend with an empty user table and a healthy
// /health/detailed response. Call Start to serve it over HTTP.
func New(zlog zerolog.Logger) (*Server, error) {
	db, err := initDatabase()
	if err != nil {
		return nil, err
	}

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	s := &Server{
		db:           db,
		logger:       zlog,
		secret:       secret,
		googleTokens: make(map[string]GoogleIdentity),
		calls:        make(map[string]int),
	}
	s.SetHealth(http.StatusOK, "healthy", map[string]string{
		"postgresql": "healthy",
		"milvus":     "healthy",
		"llm":        "healthy",
	})

	s.setupRouter()

	return s, nil
}

// initDatabase opens a private in-memory database
func initDatabase() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Report JSON field names in validation errors
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			return strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		})
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// Same origin policy as the real API, which serves the web UI
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.GET("/health/detailed", s.detailedHealth)

	authRoutes := s.router.Group("/auth")
	{
		authRoutes.POST("/login", s.login)
		authRoutes.POST("/register", s.register)
		authRoutes.POST("/google", s.googleLogin)
	}

	userRoutes := s.router.Group("/users")
	userRoutes.Use(s.bearerAuthMiddleware())
	{
		userRoutes.GET("/me", s.currentUser)
	}
}

// Handler returns the router for use with a custom listener
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the fake on a loopback port and returns its base URL
func (s *Server) Start() string {
	s.httpServer = httptest.NewServer(s.router)
	return s.httpServer.URL
}

// Close stops the HTTP listener and releases the database
func (s *Server) Close() {
	if s.httpServer != nil {
		s.httpServer.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Calls returns how many requests hit the route, e.g. "/users/me"
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// AddUser creates an account with a password
func (s *Server) AddUser(email, username, password string) (*User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        strings.ToLower(email),
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// IssueTokens returns a valid token pair for an existing user
func (s *Server) IssueTokens(userID int64) (accessToken, refreshToken string, err error) {
	resp, err := s.issueTokens(userID)
	if err != nil {
		return "", "", err
	}
	return resp.AccessToken, resp.RefreshToken, nil
}

// AllowGoogleToken makes /auth/google accept idToken for the given identity
func (s *Server) AllowGoogleToken(idToken string, identity GoogleIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.googleTokens[idToken] = identity
}

// SetHealth scripts the /health/detailed response
func (s *Server) SetHealth(statusCode int, status string, services map[string]string) {
	body := gin.H{"status": status}
	svc := gin.H{}
	for name, state := range services {
		svc[name] = gin.H{"status": state}
	}
	body["services"] = svc

	data, _ := json.Marshal(body)
	s.SetHealthRaw(statusCode, data)
}

// SetHealthRaw scripts /health/detailed with a verbatim body
func (s *Server) SetHealthRaw(statusCode int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = healthReply{statusCode: statusCode, body: body}
}

// FailProfile makes /users/me answer with statusCode for authenticated
// requests. Zero restores normal behavior.
func (s *Server) FailProfile(statusCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileFault = statusCode
}

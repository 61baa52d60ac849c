package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/flowdesk/mailsync/internal/api/auth"
	"github.com/flowdesk/mailsync/internal/compose"
	"github.com/flowdesk/mailsync/internal/provider/google"
	"github.com/flowdesk/mailsync/pkg/models"
)

// CredentialStore is the credential persistence surface the API needs.
// Get returns nil when the user has never connected.
type CredentialStore interface {
	Get(ctx context.Context, userID string) (*models.Credential, error)
	Upsert(ctx context.Context, cred models.Credential) error
	Delete(ctx context.Context, userID string) error
}

// MessageStore is the message log surface the API reads from.
type MessageStore interface {
	ListByLead(ctx context.Context, leadID string) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID string) error
}

// Sender composes and transmits outbound messages.
type Sender interface {
	Send(ctx context.Context, req compose.SendRequest) (models.SendResult, error)
}

// Renewer runs one watch renewal batch.
type Renewer interface {
	RunOnce(ctx context.Context) (models.RenewalReport, error)
}

// CodeExchanger exchanges an OAuth authorization code for the initial token set.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (google.TokenResponse, error)
}

// Server represents the API server
type Server struct {
	echo      *echo.Echo
	port      int
	jwtSecret string

	creds     CredentialStore
	messages  MessageStore
	sender    Sender
	renewer   Renewer
	exchanger CodeExchanger
	now       func() time.Time
}

// NewServer creates a new API server
func NewServer(port int, jwtSecret string, creds CredentialStore, messages MessageStore, sender Sender, renewer Renewer, exchanger CodeExchanger) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:      e,
		port:      port,
		jwtSecret: jwtSecret,
		creds:     creds,
		messages:  messages,
		sender:    sender,
		renewer:   renewer,
		exchanger: exchanger,
		now:       time.Now,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// ErrorResponse is the JSON body for every error status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// API v1 group; everything below requires a valid CRM JWT
	v1 := s.echo.Group("/api/v1")
	v1.Use(auth.RequireAuth(s.jwtSecret))

	// Integration lifecycle
	v1.POST("/integration/connect", s.connectIntegration)
	v1.GET("/integration/status", s.getIntegrationStatus)
	v1.DELETE("/integration", s.disconnectIntegration)

	// Messages
	v1.POST("/messages/send", s.sendMessage)
	v1.PATCH("/messages/:id/read", s.markMessageRead)

	// Derived conversation views
	v1.GET("/leads/:id/threads", s.getLeadThreads)
	v1.GET("/leads/:id/status", s.getLeadStatus)

	// Watch renewal trigger for external schedulers
	v1.POST("/watch/renew", s.renewWatches)
}

// Start begins the API server
func (s *Server) Start() error {
	// Start server in a goroutine
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

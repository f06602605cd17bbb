// Package httpapi exposes the REST surface, the payment and messaging
// webhooks and the websocket chat endpoints over a single gin engine.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autoserviceai/chatd/internal/bus"
	"github.com/autoserviceai/chatd/internal/chat"
	"github.com/autoserviceai/chatd/internal/config"
	"github.com/autoserviceai/chatd/internal/notify"
	"github.com/autoserviceai/chatd/internal/store"
	"github.com/autoserviceai/chatd/internal/ticket"
)

// Server wires the HTTP surface to the shared chat service and store.
type Server struct {
	Store    *store.Store
	Tickets  *ticket.Registry
	Resets   *ticket.Registry
	Hub      *bus.Hub
	Svc      *chat.Service
	Notifier *notify.Notifier

	httpSrv *http.Server
	startAt time.Time
}

func NewServer(st *store.Store, tickets, resets *ticket.Registry, hub *bus.Hub, svc *chat.Service, notifier *notify.Notifier) *Server {
	return &Server{
		Store:    st,
		Tickets:  tickets,
		Resets:   resets,
		Hub:      hub,
		Svc:      svc,
		Notifier: notifier,
		startAt:  time.Now(),
	}
}

// Engine builds the router with every route registered.
func (s *Server) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", s.ginHealth)
	s.registerAPIRoutes(engine)
	s.registerWSRoutes(engine)
	return engine
}

// Start begins listening for connections and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	engine := s.Engine()

	addr := fmt.Sprintf(":%d", config.Get().Server.Port)
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	slog.Info("chatd server starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) registerAPIRoutes(engine *gin.Engine) {
	api := engine.Group("/api")

	// No auth: account bootstrap and inbound webhooks.
	api.POST("/register", s.ginRegister)
	api.POST("/token", s.ginToken)
	api.POST("/token/refresh", s.ginTokenRefresh)
	api.POST("/request-password-reset", s.ginRequestPasswordReset)
	api.POST("/password-reset/:ticket", s.ginResetPassword)
	api.POST("/webhook", s.ginStripeWebhook)
	api.GET("/whatsapp-webhook", s.ginWhatsAppVerify)
	api.POST("/whatsapp-webhook", s.ginWhatsAppWebhook)

	auth := api.Group("", s.authRequired())
	auth.GET("/user", s.ginUser)
	auth.GET("/profile", s.ginProfile)
	auth.GET("/register-chat", s.ginRegisterChat)
	auth.GET("/my-conversation", s.ginMyConversation)
	auth.GET("/conversations/:id", s.ginConversationGet)
	auth.GET("/messages", s.ginMessages)
	auth.POST("/mark-as-read", s.ginMarkAsRead)
	auth.GET("/documents", s.ginDocumentsList)
	auth.POST("/documents", s.ginDocumentUpload)
	auth.GET("/payments", s.ginPaymentsList)
	auth.GET("/payments/:id", s.ginPaymentGet)
	auth.POST("/create-payment-intent", s.ginCreatePaymentIntent)

	admin := api.Group("", s.authRequired(), s.adminRequired())
	admin.GET("/conversations", s.ginConversationsList)
	admin.GET("/archived-conversations", s.ginArchivedConversations)
	admin.POST("/archived-conversations", s.ginToggleArchived)
	admin.PUT("/conversations/:id", s.ginConversationPut)
	admin.DELETE("/conversations/:id", s.ginConversationDelete)
	admin.POST("/assign-conversation", s.ginAssignConversation)
	admin.POST("/unassign-conversation", s.ginUnassignConversation)
	admin.POST("/payments", s.ginPaymentCreate)
	admin.PUT("/payments/:id", s.ginPaymentPut)
	admin.DELETE("/payments/:id", s.ginPaymentDelete)
}

func (s *Server) ginHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startAt).String(),
	})
}

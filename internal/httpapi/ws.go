package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/autoserviceai/chatd/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) registerWSRoutes(engine *gin.Engine) {
	engine.GET("/ws/workspace", s.ginWSWorkspace)
	engine.GET("/ws/anonymous", s.ginWSAnonymous)
	engine.GET("/ws/admin/:conversation", s.ginWSAdmin)
}

func (s *Server) ginWSWorkspace(c *gin.Context) {
	channel := &chat.DirectChannel{Store: s.Store, Tickets: s.Tickets, Notifier: s.Notifier}
	s.serveWS(c, channel, chat.ConnectRequest{Ticket: c.Query("ticket_uuid")}, false)
}

func (s *Server) ginWSAnonymous(c *gin.Context) {
	channel := &chat.AnonymousChannel{Store: s.Store, Notifier: s.Notifier}
	s.serveWS(c, channel, chat.ConnectRequest{
		WebToken:     c.Query("web_token"),
		Conversation: c.Query("conversation_name"),
	}, false)
}

func (s *Server) ginWSAdmin(c *gin.Context) {
	channel := &chat.AdminChannel{Store: s.Store, Tickets: s.Tickets}
	s.serveWS(c, channel, chat.ConnectRequest{
		Ticket:       c.Query("ticket_uuid"),
		Conversation: c.Param("conversation"),
	}, true)
}

// serveWS upgrades the connection, resolves the channel and runs the chat
// session until either side goes away. A failed resolve closes the socket
// before anything is sent.
func (s *Server) serveWS(c *gin.Context, channel chat.Channel, req chat.ConnectRequest, admin bool) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	user, conv, err := channel.Resolve(req)
	if err != nil {
		slog.Warn("websocket connect rejected", "error", err)
		ws.Close()
		return
	}
	chat.NewSession(ws, s.Svc, user, conv, admin).Run(c.Request.Context())
}

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autoserviceai/chatd/internal/config"
)

// whatsappPayload mirrors the Graph API webhook envelope, keeping only the
// fields the intake path reads.
type whatsappPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ginWhatsAppVerify answers the Graph API subscription handshake by echoing
// hub.challenge as plain text.
func (s *Server) ginWhatsAppVerify(c *gin.Context) {
	if want := config.Get().WhatsApp.VerifyToken; want != "" && c.Query("hub.verify_token") != want {
		c.String(http.StatusForbidden, "verification failed")
		return
	}
	c.String(http.StatusOK, "%s", c.Query("hub.challenge"))
}

func (s *Server) ginWhatsAppWebhook(c *gin.Context) {
	var payload whatsappPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.From == "" || msg.Text.Body == "" {
					continue
				}
				if err := s.Svc.InboundWhatsApp(c.Request.Context(), msg.From, msg.Text.Body); err != nil {
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false})
					return
				}
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

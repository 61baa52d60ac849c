package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flowdesk/mailsync/internal/threads"
	"github.com/flowdesk/mailsync/pkg/models"
)

type leadStatusResponse struct {
	LeadID string                    `json:"lead_id"`
	Status models.ConversationStatus `json:"status"`
}

// getLeadThreads reconstructs the conversation threads for one lead from its
// flat message set. Threads are derived on every request, never stored.
func (s *Server) getLeadThreads(c echo.Context) error {
	leadID := c.Param("id")

	msgs, err := s.messages.ListByLead(c.Request().Context(), leadID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load messages"})
	}

	reconstructed := threads.Reconstruct(msgs)
	if reconstructed == nil {
		reconstructed = []models.Thread{}
	}

	return c.JSON(http.StatusOK, reconstructed)
}

// getLeadStatus computes the lead's conversation status.
func (s *Server) getLeadStatus(c echo.Context) error {
	leadID := c.Param("id")

	msgs, err := s.messages.ListByLead(c.Request().Context(), leadID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load messages"})
	}

	return c.JSON(http.StatusOK, leadStatusResponse{
		LeadID: leadID,
		Status: threads.Status(msgs),
	})
}

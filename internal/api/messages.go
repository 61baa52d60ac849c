package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/flowdesk/mailsync/internal/api/auth"
	"github.com/flowdesk/mailsync/internal/compose"
	"github.com/flowdesk/mailsync/internal/tokens"
	"github.com/flowdesk/mailsync/pkg/models"
)

type sendMessageRequest struct {
	LeadID      *string             `json:"lead_id,omitempty"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	ThreadID    string              `json:"thread_id,omitempty"`
}

// sendMessage composes and transmits an email for the authenticated user.
// The error taxonomy maps onto distinct statuses so the frontend can tell
// "connect your account" from "try again later" from "sent but not logged".
func (s *Server) sendMessage(c echo.Context) error {
	userID := auth.GetUserID(c)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.To == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "to is required"})
	}

	result, err := s.sender.Send(c.Request().Context(), compose.SendRequest{
		UserID:      userID,
		LeadID:      req.LeadID,
		To:          req.To,
		Subject:     req.Subject,
		Body:        req.Body,
		Attachments: req.Attachments,
		ThreadID:    req.ThreadID,
	})
	if err != nil {
		var notConnected *compose.NotConnectedError
		var refreshErr *tokens.RefreshError
		var transportErr *compose.TransportError
		var logErr *compose.LogWriteError

		switch {
		case errors.As(err, &notConnected):
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "gmail integration not connected"})
		case errors.As(err, &refreshErr):
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "token refresh failed; re-authorization required"})
		case errors.As(err, &transportErr):
			return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "provider rejected the send"})
		case errors.As(err, &logErr):
			// Mail is out; surface the partial result so the caller does not
			// re-send.
			log.Error().Str("user_id", userID).Err(err).Msg("Message sent but not logged")
			return c.JSON(http.StatusOK, result)
		default:
			log.Error().Str("user_id", userID).Err(err).Msg("Send failed")
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "send failed"})
		}
	}

	return c.JSON(http.StatusOK, result)
}

// markMessageRead flips a message's read flag.
func (s *Server) markMessageRead(c echo.Context) error {
	messageID := c.Param("id")

	if err := s.messages.MarkRead(c.Request().Context(), messageID); err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
	}

	return c.NoContent(http.StatusNoContent)
}

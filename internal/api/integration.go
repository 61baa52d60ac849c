package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/flowdesk/mailsync/internal/api/auth"
	"github.com/flowdesk/mailsync/pkg/models"
)

type connectRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

type integrationStatusResponse struct {
	Connected       bool       `json:"connected"`
	TokenExpiry     *time.Time `json:"token_expiry,omitempty"`
	WatchActive     bool       `json:"watch_active"`
	WatchExpiration *time.Time `json:"watch_expiration,omitempty"`
}

// connectIntegration exchanges an OAuth authorization code and stores the
// resulting credential for the authenticated user.
func (s *Server) connectIntegration(c echo.Context) error {
	userID := auth.GetUserID(c)

	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "code is required"})
	}

	tokenData, err := s.exchanger.ExchangeCode(c.Request().Context(), req.Code, req.RedirectURI)
	if err != nil {
		log.Warn().Str("user_id", userID).Err(err).Msg("Authorization code exchange failed")
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "authorization code exchange failed"})
	}
	if tokenData.RefreshToken == "" {
		// Without a refresh token the integration dies as soon as the access
		// token expires. The user must re-consent with offline access.
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no refresh token returned; re-authorize with offline access"})
	}

	cred := models.Credential{
		UserID:       userID,
		AccessToken:  tokenData.AccessToken,
		RefreshToken: tokenData.RefreshToken,
		TokenExpiry:  s.now().Add(time.Duration(tokenData.ExpiresIn) * time.Second),
	}
	if err := s.creds.Upsert(c.Request().Context(), cred); err != nil {
		log.Error().Str("user_id", userID).Err(err).Msg("Failed to store credential")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to store credential"})
	}

	log.Info().Str("user_id", userID).Msg("Gmail integration connected")

	return c.JSON(http.StatusOK, integrationStatusResponse{
		Connected:   true,
		TokenExpiry: &cred.TokenExpiry,
	})
}

// getIntegrationStatus reports whether the user is connected and the state of
// their push subscription.
func (s *Server) getIntegrationStatus(c echo.Context) error {
	userID := auth.GetUserID(c)

	cred, err := s.creds.Get(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load credential"})
	}
	if cred == nil {
		return c.JSON(http.StatusOK, integrationStatusResponse{Connected: false})
	}

	resp := integrationStatusResponse{
		Connected:       true,
		TokenExpiry:     &cred.TokenExpiry,
		WatchExpiration: cred.WatchExpiration,
	}
	if cred.WatchExpiration != nil && cred.WatchExpiration.After(s.now()) {
		resp.WatchActive = true
	}

	return c.JSON(http.StatusOK, resp)
}

// disconnectIntegration removes the stored credential.
func (s *Server) disconnectIntegration(c echo.Context) error {
	userID := auth.GetUserID(c)

	if err := s.creds.Delete(c.Request().Context(), userID); err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "no integration to disconnect"})
	}

	log.Info().Str("user_id", userID).Msg("Gmail integration disconnected")

	return c.NoContent(http.StatusNoContent)
}

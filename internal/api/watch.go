package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// renewWatches runs one renewal batch synchronously and returns the report.
// External schedulers poll this; per-account failures are inside the report,
// not the HTTP status.
func (s *Server) renewWatches(c echo.Context) error {
	report, err := s.renewer.RunOnce(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Watch renewal batch failed to run")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "renewal batch failed"})
	}

	return c.JSON(http.StatusOK, report)
}

package api

import (
	stdErrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/saga/messaging"
)

// receiveCommand accepts the same {eventType, data} envelope as the command
// queue and runs it synchronously
func (s *Server) receiveCommand(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := s.services.Processor.Dispatch(c.Request.Context(), body); err != nil {
		if stdErrors.Is(err, messaging.ErrMalformed) {
			badRequest(c, err)
			return
		}
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

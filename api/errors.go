package api

import (
	stdErrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/domain"
)

type errorMetadata struct {
	HTTPStatus     int
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByKind = map[domain.Kind]errorMetadata{
	domain.KindValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	domain.KindNotFound: {
		HTTPStatus:     http.StatusNotFound,
		PublicMessage:  "resource not found",
		DetailsAllowed: true,
	},
	domain.KindConflict: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "conflict detected",
		DetailsAllowed: true,
	},
	domain.KindInvalidTransition: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	domain.KindPersistence: {
		HTTPStatus:     http.StatusInternalServerError,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
}

func metadataFor(kind domain.Kind) errorMetadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[domain.KindPersistence]
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	meta := metadataFor(kind)
	if kind == "" {
		kind = domain.KindPersistence
	}

	body := ErrorResponse{Error: meta.PublicMessage, Code: string(kind)}
	if meta.DetailsAllowed {
		var typed *domain.Error
		if stdErrors.As(err, &typed) {
			body.Details = typed.Message()
		}
	}
	if meta.HTTPStatus >= http.StatusInternalServerError {
		requestID, _ := c.Get(requestIDKey)
		log.Error().Err(err).Interface("request_id", requestID).Msg("Request failed")
	}
	c.AbortWithStatusJSON(meta.HTTPStatus, body)
}

// badRequest reports a body or parameter that could not be bound
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation failed",
		Code:    string(domain.KindValidation),
		Details: err.Error(),
	})
}

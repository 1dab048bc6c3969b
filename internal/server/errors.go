package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/logger"
)

// StatusFor maps an error kind onto an HTTP status code
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindItemUnavailable:
		return http.StatusConflict
	case apperr.KindInvalidStateTransition:
		return http.StatusConflict
	case apperr.KindOrderAlreadyPaid:
		return http.StatusConflict
	case apperr.KindInvalidSignature:
		return http.StatusBadRequest
	case apperr.KindRefundFailed:
		return http.StatusBadGateway
	case apperr.KindDuplicateReview:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the error envelope for err. Unclassified errors and
// gateway refund failures are logged and reported with a fixed message.
func RespondError(c *gin.Context, log *logger.Logger, action string, err error) {
	requestID := RequestID(c)
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	message := err.Error()
	switch kind {
	case apperr.KindInternal:
		log.Error(action, "Request failed", requestID, err, map[string]interface{}{
			"path": c.FullPath(),
		})
		message = "Internal server error"
	case apperr.KindRefundFailed:
		// upstream detail stays in the log
		log.Error(action, "Gateway refund failed", requestID, err, map[string]interface{}{
			"path": c.FullPath(),
		})
		message = "Payment gateway refund failed"
	default:
		log.Debug(action, message, requestID, map[string]interface{}{
			"kind":        string(kind),
			"status_code": status,
		})
	}

	writeError(c, status, kind, message)
}

// RespondBindError reports a malformed request body or query
func RespondBindError(c *gin.Context, log *logger.Logger, action string, err error) {
	log.Debug(action, "Request validation failed", RequestID(c), map[string]interface{}{
		"error": err.Error(),
	})
	writeError(c, http.StatusBadRequest, apperr.KindValidation, describeBindError(err))
}

func writeError(c *gin.Context, status int, kind apperr.Kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      message,
		"kind":       kind,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": RequestID(c),
	})
}

func describeBindError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request format"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return strings.Join(msgs, "; ")
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case TagPaymentMethod, TagOrderStatus, TagPaymentStatus, TagCategory:
		return fmt.Sprintf("%s has an invalid value", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SscSPs/allowance_tracker/internal/apperrors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

// statusForKind maps the error taxonomy onto HTTP status codes.
func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindNoActivePeriod:
		return http.StatusConflict
	case apperrors.KindPartialFailure:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Persistence failures are logged and their cause is not echoed.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	kind := apperrors.KindOf(err)
	status := statusForKind(kind)
	body := errorResponse{Error: err.Error(), Kind: string(kind)}

	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		body.Reason = string(validationErr.Reason)
	}

	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", slog.String("error", err.Error()))
		body.Error = "internal error while processing " + op
	} else {
		logger.Warn(op+" rejected", slog.String("kind", string(kind)), slog.String("error", err.Error()))
	}
	c.JSON(status, body)
}

// respondBindError reports a request body or path that failed binding.
func respondBindError(c *gin.Context, logger *slog.Logger, op string, err error) {
	logger.Warn("Failed to bind request for "+op, slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, errorResponse{
		Error: "Invalid request format: " + bindingErrorMessage(err),
		Kind:  string(apperrors.KindValidation),
	})
}

// bindingErrorMessage flattens validator errors into "field: rule" pairs.
func bindingErrorMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

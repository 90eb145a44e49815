package rest

import (
	"errors"
	"fmt"
	"net/http"

	"notekeeper/internal/apperr"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// errUnauthenticated неверные учетные данные или нет действующей сессии
var errUnauthenticated = errors.New("unauthenticated")

// handleError конвертирует внутренние ошибки в код статуса и тело ответа
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := classify(err)
	if code == codes.Internal {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	h.write(w, runtime.HTTPStatusFromCode(code), body)
}

func classify(err error) (codes.Code, errorResponse) {
	var bulk *apperr.BulkError

	code := codes.Internal
	msg := "internal error"

	switch {
	case errors.As(err, &bulk):
		code = codes.Unavailable
		msg = fmt.Sprintf("removed %d, failed %d", bulk.Removed, len(bulk.Failed))
		return code, errorResponse{Code: int32(code), Message: msg, Failed: bulk.IDs()}
	case errors.Is(err, errUnauthenticated):
		code, msg = codes.Unauthenticated, err.Error()
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrInvalidIdentifier):
		code, msg = codes.InvalidArgument, err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		code, msg = codes.NotFound, err.Error()
	case errors.Is(err, apperr.ErrConflict):
		code, msg = codes.AlreadyExists, err.Error()
	case errors.Is(err, apperr.ErrForbidden):
		code, msg = codes.PermissionDenied, err.Error()
	case errors.Is(err, apperr.ErrBackendUnavailable):
		code, msg = codes.Unavailable, "storage unavailable"
	}

	return code, errorResponse{Code: int32(code), Message: msg}
}

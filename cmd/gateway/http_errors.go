package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

var errUnauthenticated = errors.New("missing X-User-ID header")

// httpStatusFromGRPC maps an api error onto an HTTP status and a stable
// error code. The ErrorInfo reason wins over the bare gRPC code because
// several kinds share FailedPrecondition.
func httpStatusFromGRPC(err error) (int, string, string) {
	st, ok := status.FromError(err)
	if !ok {
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}

	reason, _ := apperr.Reason(err)
	switch reason {
	case apperr.ReasonInsufficientStock:
		return http.StatusConflict, reason, st.Message()
	case apperr.ReasonSessionExpired:
		return http.StatusGone, reason, st.Message()
	case apperr.ReasonPaymentFailed:
		return http.StatusPaymentRequired, reason, st.Message()
	case apperr.ReasonInvalidState, apperr.ReasonConflict:
		return http.StatusConflict, reason, st.Message()
	}

	switch st.Code() {
	case codes.InvalidArgument:
		return http.StatusBadRequest, "INVALID_ARGUMENT", st.Message()
	case codes.NotFound:
		return http.StatusNotFound, "NOT_FOUND", st.Message()
	case codes.PermissionDenied:
		return http.StatusForbidden, "FORBIDDEN", st.Message()
	case codes.Unauthenticated:
		return http.StatusUnauthorized, "UNAUTHENTICATED", st.Message()
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
		return http.StatusConflict, "CONFLICT", st.Message()
	case codes.Unavailable, codes.DeadlineExceeded:
		return http.StatusServiceUnavailable, "UNAVAILABLE", "service unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, details map[string]string) {
	writeJSON(w, status, errorBody{Code: code, Message: msg, Details: details})
}

package accountshttp

import (
	"encoding/json"
	"net/http"

	"github.com/kehilla-app/accounts/core"
)

type errResp struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errResp{Error: code, Message: message})
}

func badRequest(w http.ResponseWriter, message string) {
	sendErr(w, http.StatusBadRequest, string(core.KindInvalidArgument), message)
}

func unauthorized(w http.ResponseWriter, message string) {
	sendErr(w, http.StatusUnauthorized, string(core.KindPermissionDenied), message)
}

func tooMany(w http.ResponseWriter) {
	sendErr(w, http.StatusTooManyRequests, string(core.KindRateLimited), "too many requests")
}

var kindStatus = map[core.Kind]int{
	core.KindInvalidArgument:  http.StatusBadRequest,
	core.KindRateLimited:      http.StatusTooManyRequests,
	core.KindNotFound:         http.StatusNotFound,
	core.KindExpired:          http.StatusRequestTimeout,
	core.KindPermissionDenied: http.StatusForbidden,
	core.KindAlreadyExists:    http.StatusConflict,
}

// writeCoreErr maps a core error kind to an HTTP status and error code.
// Delivery and storage failures surface as a plain internal error.
func writeCoreErr(w http.ResponseWriter, err error) {
	kind := core.ErrKind(err)
	status, ok := kindStatus[kind]
	if !ok {
		sendErr(w, http.StatusInternalServerError, string(core.KindInternal), "internal error")
		return
	}
	sendErr(w, status, string(kind), publicMessage(kind))
}

// publicMessage keeps wire messages generic; causes stay in the logs.
func publicMessage(kind core.Kind) string {
	switch kind {
	case core.KindInvalidArgument:
		return "invalid request"
	case core.KindRateLimited:
		return "too many verification requests, try again later"
	case core.KindNotFound:
		return "no verification code found"
	case core.KindExpired:
		return "verification code expired"
	case core.KindPermissionDenied:
		return "admin access required"
	case core.KindAlreadyExists:
		return "user already exists"
	default:
		return "internal error"
	}
}

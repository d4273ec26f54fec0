// Package response writes JSON bodies and maps application errors to HTTP
// statuses for every handler.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody = apperr.Body

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status code. Unclassified errors are logged and
// reported as 500 without detail.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.SugaredLogger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	body := apperr.BodyOf(err)

	switch {
	case kind == apperr.KindUnknown:
		logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	case kind.Authorization():
		logger.Infow("request denied", "method", r.Method, "path", r.URL.Path, "reason", kind.String(), "err", err)
	default:
		logger.Debugw("request rejected", "method", r.Method, "path", r.URL.Path, "reason", kind.String(), "err", err)
	}
	if status == http.StatusUnauthorized {
		if terr := auth.TokenErrorFromContext(r.Context()); terr != nil {
			body.TokenError = terr.Error()
		}
	}
	WriteJSON(w, status, body)
}

// MaxBodyBytes caps request bodies read by Decode.
const MaxBodyBytes = 1 << 20

// Decode reads a JSON request body of at most MaxBodyBytes into v.
func Decode(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.New(apperr.KindInvalid, "payload exceeds %d bytes", tooLarge.Limit)
		}
		return apperr.New(apperr.KindInvalid, "invalid payload: %v", err)
	}
	return nil
}

// PathID parses the named path wildcard as an entity id.
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindInvalid, "%s: invalid id %q", name, raw)
	}
	return id, nil
}

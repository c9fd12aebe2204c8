package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/shevd/shevd/internal/model"
)

// statusFor maps a model.Kind to the HTTP status it should report as.
func statusFor(kind model.Kind) int {
	switch kind {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindQueueFull:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	writeJSON(w, statusFor(kind), errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.Wrap(model.KindValidation, "invalid request body", err)
	}
	return nil
}

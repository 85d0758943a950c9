package kit

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    any    `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError answers with the error envelope the storefront backend uses;
// detail lands in "detail" so clients can surface it.
func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string, detail any) {
	WriteJSON(w, status, ErrorResponse{
		Error:     msg,
		Detail:    detail,
		RequestID: chimw.GetReqID(r.Context()),
	})
}

package httpapi

import (
	"net/http"

	"github.com/goccy/go-json"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// write renders v as protobuf when the client asks for it, JSON otherwise.
func write(w http.ResponseWriter, r *http.Request, status int, v any) {
	if wantsProtobuf(r) {
		msg, err := toStruct(v)
		if err != nil {
			http.Error(w, "proto conversion error", http.StatusInternalServerError)
			return
		}
		writeProto(w, status, msg)
		return
	}
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "json marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	write(w, r, status, errorResponse{Error: code, Message: msg})
}

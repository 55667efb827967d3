package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/dlanger/studyden/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func notFound(w http.ResponseWriter, what string) {
	writeError(w, http.StatusNotFound, what+" not found")
}

// pathID reads a UUID path segment. A malformed id can never resolve, so it
// reports false and the caller answers not-found, same as an unowned id.
func pathID(r *http.Request, name string) (string, bool) {
	id := r.PathValue(name)
	if uuid.Validate(id) != nil {
		return "", false
	}
	return id, true
}

func pathDate(r *http.Request, name string) (model.Date, error) {
	return model.ParseDate(r.PathValue(name))
}

// queryDateRange reads the from/to query parameters.
func queryDateRange(r *http.Request) (from, to model.Date, err error) {
	from, err = model.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		return model.Date{}, model.Date{}, err
	}
	to, err = model.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		return model.Date{}, model.Date{}, err
	}
	return from, to, nil
}

package mirror

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/dommirror/host"
)

// RegisterHTTP mounts the control surface on r:
//
//	GET  /api/widgets            widgets of the most recent window
//	POST /api/widgets/{id}/click native click, body is an optional host.NativeEvent
//	GET  /api/sessions           live observation sessions
func (c *Controller) RegisterHTTP(r chi.Router) {
	r.Get("/api/widgets", func(w http.ResponseWriter, _ *http.Request) {
		widgets := c.Widgets()
		if widgets == nil {
			widgets = []host.WidgetState{}
		}
		writeJSON(w, http.StatusOK, widgets)
	})

	r.Post("/api/widgets/{id}/click", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var ev host.NativeEvent
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&ev); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := c.Click(r.Context(), id, ev); err != nil {
			writeError(w, clickStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "clicked", "id": id})
	})

	r.Get("/api/sessions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, c.Sessions())
	})
}

// RegisterJournalHTTP mounts GET /api/changes, listing journaled changes,
// optionally filtered by ?session=<id>.
func RegisterJournalHTTP(r chi.Router, j *Journal) {
	r.Get("/api/changes", func(w http.ResponseWriter, r *http.Request) {
		entries, err := j.Changes(r.Context(), r.URL.Query().Get("session"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if entries == nil {
			entries = []JournalEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	})
}

func clickStatus(err error) int {
	switch {
	case errors.Is(err, ErrWidgetNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrWidgetDisabled):
		return http.StatusConflict
	case errors.Is(err, ErrNoWindow):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jholhewres/notebot/pkg/notebot/dailynote"
)

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (g *Gateway) writeError(w http.ResponseWriter, msg string, code int) {
	var resp errorResponse
	resp.Error.Message = msg
	resp.Error.Code = code
	g.writeJSON(w, code, resp)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func slogLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// handleHealth implements GET /health.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(g.startedAt).Round(time.Second).String()
	if uptime == "0s" {
		uptime = "<1s"
	}
	chans := make(map[string]string, len(g.deps.Channels))
	for _, ch := range g.deps.Channels {
		if ch.IsConnected() {
			chans[ch.Name()] = "connected"
		} else {
			chans[ch.Name()] = "disconnected"
		}
	}
	g.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime":   uptime,
		"channels": chans,
	})
}

// handleListNotes implements GET /api/notes.
func (g *Gateway) handleListNotes(w http.ResponseWriter, r *http.Request) {
	infos, err := g.deps.Notes.List(r.Context())
	if err != nil {
		g.logger.Error("listing notes failed", "request_id", RequestID(r.Context()), "error", err)
		g.writeError(w, "listing failed", http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []dailynote.DocumentInfo{}
	}
	g.writeJSON(w, http.StatusOK, map[string]any{
		"notes": infos,
		"total": len(infos),
	})
}

// handleGetNote implements GET /api/notes/{date}, returning the raw
// Markdown as an attachment. The send guard is not touched.
func (g *Gateway) handleGetNote(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	art, err := g.deps.Notes.Export(r.Context(), date)
	if err != nil {
		var tooLarge *dailynote.TooLargeError
		switch {
		case errors.Is(err, dailynote.ErrInvalidDateKey):
			g.writeError(w, "invalid date, use YYYY-MM-DD", http.StatusBadRequest)
		case errors.Is(err, dailynote.ErrNotFound):
			g.writeError(w, "note not found", http.StatusNotFound)
		case errors.As(err, &tooLarge):
			g.writeError(w, tooLarge.Error(), http.StatusRequestEntityTooLarge)
		default:
			g.logger.Error("export failed", "request_id", RequestID(r.Context()), "date", date, "error", err)
			g.writeError(w, "export failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+art.Filename+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(art.Size(), 10))
	w.Header().Set("X-Note-Entries", strconv.Itoa(art.Entries))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

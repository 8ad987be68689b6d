package director

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"vp-director/internal/catalog"
	"vp-director/internal/mapping"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the virtual production HTTP endpoints using go-chi.
type Handler struct {
	d     *Director
	repo  *mapping.Repository
	rules mapping.Rules
	cat   *catalog.Catalog
	log   *slog.Logger
}

// NewHandler returns a Handler over the director and its collaborators.
func NewHandler(d *Director, repo *mapping.Repository, rules mapping.Rules, cat *catalog.Catalog, log *slog.Logger) *Handler {
	return &Handler{d: d, repo: repo, rules: rules, cat: cat, log: log}
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Virtual Production API Server",
		"version": "1.0.0",
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.d.Status())
}

// Heartbeat handles POST /api/heartbeat. Body: { "sensor_id": "wearable-01" }.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid heartbeat body", slog.String("error", err.Error()))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.d.Heartbeat(req.SensorID)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Heartbeat received",
	})
}

// Behavior handles POST /api/behavior, the HTTP fallback for sensors that
// cannot reach the broker. The processed event is echoed back with defaults
// applied.
func (h *Handler) Behavior(w http.ResponseWriter, r *http.Request) {
	var ev SensorEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.log.Debug("invalid behavior body", slog.String("error", err.Error()))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ev = h.d.HandleEvent(ev, "http")
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "Behavior event processed",
		"event":   ev,
	})
}

// Actions handles GET /sensor/available-actions.
func (h *Handler) Actions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string][]string{"actions": AvailableActions})
}

// CurrentBackground handles GET /vp/current-background.
func (h *Handler) CurrentBackground(w http.ResponseWriter, r *http.Request) {
	info, err := h.d.CurrentBackground()
	if err != nil {
		h.log.Debug("current background unresolved", slog.String("error", err.Error()))
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// ChangeScene handles POST /vp/change-scene. Body: { "scene_id": 2 }.
func (h *Handler) ChangeScene(w http.ResponseWriter, r *http.Request) {
	var req ChangeSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid change scene body", slog.String("error", err.Error()))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info := h.d.ChangeScene(req.SceneID)
	resp := map[string]any{
		"message":    fmt.Sprintf("changed to scene %d", req.SceneID),
		"background": nil,
	}
	if info != nil {
		resp["background"] = info.Filename
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// SimulateAction handles POST /vp/simulate-action.
// Body: { "action": "run", "metadata": {...} }.
func (h *Handler) SimulateAction(w http.ResponseWriter, r *http.Request) {
	var req SimulateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid simulate action body", slog.String("error", err.Error()))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ev := h.d.SimulateAction(req.Action, req.Metadata)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("action %q simulated", ev.Behavior),
	})
}

// GetMapping handles GET /vp/mapping.
func (h *Handler) GetMapping(w http.ResponseWriter, r *http.Request) {
	doc, err := h.repo.Snapshot()
	if err != nil {
		h.writeError(w, http.StatusNotFound, "no mapping loaded")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"mapping": doc})
}

// ReloadMapping handles POST /vp/mapping/reload, re-reading the mapping
// file from disk and swapping it in.
func (h *Handler) ReloadMapping(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Load(); err != nil {
		h.log.Error("mapping reload failed", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, "mapping reload failed")
		return
	}

	doc, err := h.repo.Snapshot()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "mapping reload failed")
		return
	}
	h.log.Info("mapping reloaded")
	h.writeJSON(w, http.StatusOK, map[string]any{"mapping": doc})
}

// UpdateMapping handles PUT /vp/mapping, pointing one scene action at a
// new clip and persisting the change.
func (h *Handler) UpdateMapping(w http.ResponseWriter, r *http.Request) {
	var req UpdateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid update mapping body", slog.String("error", err.Error()))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action == "" || req.VideoFilename == "" {
		h.writeError(w, http.StatusBadRequest, "action and video_filename are required")
		return
	}

	doc, err := h.repo.Update(req.SceneID, req.Action, req.VideoFilename)
	if err != nil {
		if errors.Is(err, mapping.ErrNotLoaded) {
			h.writeError(w, http.StatusNotFound, "no mapping loaded")
			return
		}
		h.log.Error("mapping update failed", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, "mapping update failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "mapping updated",
		"mapping": doc,
	})
}

// TransitionRules handles GET /vp/transition-rules.
func (h *Handler) TransitionRules(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.rules)
}

// Preview handles GET /vp/preview, listing every clip in the catalog with
// the action its cut maps to.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	doc, _ := h.repo.Snapshot()

	entries := h.cat.Entries()
	previews := make([]PreviewEntry, 0, len(entries))
	for _, e := range entries {
		action := "unknown"
		if doc != nil {
			if a, ok := doc.CutAction(e.Scene, e.Cut); ok {
				action = a
			}
		}
		previews = append(previews, PreviewEntry{
			SceneID:  e.Scene,
			Action:   action,
			Filename: e.Filename,
			URL:      backgroundsPrefix + e.Filename,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"previews": previews})
}

// ServeBackground handles GET /vp/backgrounds/{filename}. Clips are served
// with range support and caching disabled so players always fetch the
// current file after a mapping change.
func (h *Handler) ServeBackground(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	clipPath, err := h.cat.Path(filename)
	if err != nil {
		h.log.Debug("background not found",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("video not found: %s", filename))
		return
	}

	// The builtin mime table has no entry for .mp4, so set the type
	// ourselves instead of letting ServeFile sniff it.
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	http.ServeFile(w, r, clipPath)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("response encode failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, detail string) {
	h.writeJSON(w, status, map[string]string{"detail": detail})
}

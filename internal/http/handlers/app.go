package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"outfitswap/internal/domain"
	"outfitswap/internal/infra"
	"outfitswap/internal/middleware"
	"outfitswap/internal/registry"
	"outfitswap/internal/studio"
)

type App struct {
	Studio  *studio.Studio
	Display *registry.HandleTable
	Config  *infra.Config
	Logger  *infra.Logger

	upgrader websocket.Upgrader
}

func NewApp(cfg *infra.Config, st *studio.Studio, display *registry.HandleTable, logger *infra.Logger) *App {
	return &App{
		Studio:  st,
		Display: display,
		Config:  cfg,
		Logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.CORSAllowedOrigins),
		},
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

// fail maps a session error onto an HTTP status.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNoBaseAsset), errors.Is(err, domain.ErrNoOutfits):
		a.error(w, http.StatusUnprocessableEntity, "missing_input", err.Error())
	case errors.Is(err, domain.ErrBatchRunning):
		a.error(w, http.StatusConflict, "batch_running", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, studio.ErrNoResult):
		a.error(w, http.StatusNotFound, "no_result", err.Error())
	case errors.Is(err, domain.ErrEmptyUpload):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrUnsupportedMedia):
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media", err.Error())
	case errors.Is(err, domain.ErrUploadTooLarge):
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
	default:
		a.logger().Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) logger() *infra.Logger {
	if a.Logger == nil {
		nop := infra.NopLogger()
		return &nop
	}
	return a.Logger
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allow := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		allow[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allow["*"]; ok {
			return true
		}
		if _, ok := allow[origin]; ok {
			return true
		}
		// Same-origin browsers.
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}

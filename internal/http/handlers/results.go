package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (a *App) JobResult(w http.ResponseWriter, r *http.Request) {
	res, err := a.Studio.Result(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.FileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (a *App) ResultsZip(w http.ResponseWriter, r *http.Request) {
	archive, err := a.Studio.Archive()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", "outfit-results.zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// DisplayAsset serves an asset through its display reference for as long as the
// reference is live.
func (a *App) DisplayAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := a.Display.Resolve(chi.URLParam(r, "token"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "display reference released")
		return
	}
	w.Header().Set("Content-Type", asset.MIME)
	w.Header().Set("Content-Length", strconv.FormatInt(asset.Size(), 10))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(asset.Data)
}

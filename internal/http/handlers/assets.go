package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"outfitswap/internal/domain"
)

const (
	// multipartOverhead leaves room for form boundaries and headers on top of
	// the configured per-file limit.
	multipartOverhead = 1 << 20
	MaxFilesPerForm   = 32
)

func (a *App) State(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, newStateView(a.Studio.State()))
}

func (a *App) PutBase(w http.ResponseWriter, r *http.Request) {
	uploads, err := a.readUploads(w, r, "file", 1)
	if err != nil {
		a.uploadError(w, r, err)
		return
	}
	asset, err := a.Studio.AddBase(uploads[0])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, newAssetView(asset))
}

func (a *App) DeleteBase(w http.ResponseWriter, r *http.Request) {
	a.Studio.RemoveBase()
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) PostOutfits(w http.ResponseWriter, r *http.Request) {
	uploads, err := a.readUploads(w, r, "files", 0)
	if err != nil {
		a.uploadError(w, r, err)
		return
	}
	assets, err := a.Studio.AddOutfits(uploads)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]assetView, 0, len(assets))
	for _, asset := range assets {
		items = append(items, newAssetView(asset))
	}
	a.json(w, http.StatusCreated, map[string]any{"items": items})
}

func (a *App) DeleteOutfit(w http.ResponseWriter, r *http.Request) {
	if err := a.Studio.RemoveOutfit(chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	n, err := a.Studio.Generate(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"jobs":    n,
		"message": fmt.Sprintf("Generating %d images", n),
	})
}

var (
	errNoFiles      = errors.New("no files in form")
	errTooManyFiles = errors.New("too many files in form")
)

// readUploads parses the multipart form and returns the files under field.
// maxFiles limits how many are accepted; zero allows up to MaxFilesPerForm.
// A form carrying more is rejected whole.
func (a *App) readUploads(w http.ResponseWriter, r *http.Request, field string, maxFiles int) ([]domain.Upload, error) {
	perFile := a.Config.MaxUploadBytes
	files := maxFiles
	if files <= 0 {
		files = MaxFilesPerForm
	}
	r.Body = http.MaxBytesReader(w, r.Body, perFile*int64(files)+multipartOverhead)
	if err := r.ParseMultipartForm(perFile + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.ErrUploadTooLarge
		}
		return nil, fmt.Errorf("parse form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, errNoFiles
	}
	if len(headers) > files {
		return nil, fmt.Errorf("%w: got %d, limit %d", errTooManyFiles, len(headers), files)
	}
	uploads := make([]domain.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := readUpload(fh, perFile)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}

func readUpload(fh *multipart.FileHeader, limit int64) (domain.Upload, error) {
	if limit > 0 && fh.Size > limit {
		return domain.Upload{}, domain.ErrUploadTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return domain.Upload{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return domain.Upload{
		Name: fh.Filename,
		MIME: fh.Header.Get("Content-Type"),
		Data: data,
	}, nil
}

func (a *App) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errNoFiles):
		a.error(w, http.StatusBadRequest, "bad_request", "no image files provided")
	case errors.Is(err, errTooManyFiles):
		a.error(w, http.StatusRequestEntityTooLarge, "too_many_files", err.Error())
	case errors.Is(err, domain.ErrUploadTooLarge):
		a.fail(w, r, err)
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
	}
}

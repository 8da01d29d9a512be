// Package registry owns the uploaded base and outfit images and the display
// references issued for them.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"outfitswap/internal/domain"
	"outfitswap/internal/infra"
	"outfitswap/internal/pubsub"
)

// Options configures a Registry.
type Options struct {
	// MaxUploadBytes rejects larger uploads; zero disables the check.
	MaxUploadBytes int64
	Logger         *infra.Logger
	Feed           pubsub.Publisher[*domain.Asset]
	Now            func() time.Time
	NewID          func() string
}

// Registry holds at most one base asset and an ordered list of outfit assets.
// Every asset owns exactly one display reference, acquired on creation and
// released on removal or replacement.
type Registry struct {
	mu      sync.RWMutex
	base    *domain.Asset
	outfits []*domain.Asset

	display  DisplayIssuer
	maxBytes int64
	logger   *infra.Logger
	feed     pubsub.Publisher[*domain.Asset]
	now      func() time.Time
	newID    func() string
}

// New builds a registry issuing display references through display.
func New(display DisplayIssuer, opts Options) *Registry {
	r := &Registry{
		display:  display,
		maxBytes: opts.MaxUploadBytes,
		logger:   opts.Logger,
		feed:     opts.Feed,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if r.logger == nil {
		nop := zerolog.Nop()
		r.logger = &nop
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	return r
}

// AddBase registers a new base asset, replacing and releasing the previous one.
func (r *Registry) AddBase(up domain.Upload) (*domain.Asset, error) {
	mime, err := r.validate(up)
	if err != nil {
		return nil, err
	}
	asset, err := r.create(domain.AssetRoleBase, up, mime)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	previous := r.base
	r.base = asset
	r.mu.Unlock()

	if previous != nil {
		r.release(previous)
		r.publish(pubsub.AssetRemoved, previous)
	}
	r.publish(pubsub.AssetAdded, asset)
	return asset, nil
}

// RemoveBase releases and clears the base asset. It is a no-op when empty.
func (r *Registry) RemoveBase() {
	r.mu.Lock()
	previous := r.base
	r.base = nil
	r.mu.Unlock()

	if previous == nil {
		return
	}
	r.release(previous)
	r.publish(pubsub.AssetRemoved, previous)
}

// AddOutfits appends one asset per upload, preserving input order. Uploads are
// validated up front so either all of them are added or none.
func (r *Registry) AddOutfits(uploads []domain.Upload) ([]*domain.Asset, error) {
	mimes := make([]string, len(uploads))
	for i, up := range uploads {
		mime, err := r.validate(up)
		if err != nil {
			return nil, fmt.Errorf("outfit %d (%s): %w", i+1, up.Name, err)
		}
		mimes[i] = mime
	}

	created := make([]*domain.Asset, 0, len(uploads))
	for i, up := range uploads {
		asset, err := r.create(domain.AssetRoleOutfit, up, mimes[i])
		if err != nil {
			for _, a := range created {
				r.release(a)
			}
			return nil, err
		}
		created = append(created, asset)
	}

	r.mu.Lock()
	r.outfits = append(r.outfits, created...)
	r.mu.Unlock()

	for _, a := range created {
		r.publish(pubsub.AssetAdded, a)
	}
	return created, nil
}

// RemoveOutfit releases and removes the outfit with the given id. It reports
// whether anything was removed.
func (r *Registry) RemoveOutfit(id string) bool {
	r.mu.Lock()
	var removed *domain.Asset
	for i, a := range r.outfits {
		if a.ID == id {
			removed = a
			r.outfits = append(r.outfits[:i:i], r.outfits[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if removed == nil {
		return false
	}
	r.release(removed)
	r.publish(pubsub.AssetRemoved, removed)
	return true
}

// Base returns the current base asset or nil.
func (r *Registry) Base() *domain.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.base
}

// Outfits returns the outfit assets in upload order. The slice is a copy;
// the assets are shared.
func (r *Registry) Outfits() []*domain.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Asset, len(r.outfits))
	copy(out, r.outfits)
	return out
}

// Lookup finds a registered asset by id.
func (r *Registry) Lookup(id string) (*domain.Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.base != nil && r.base.ID == id {
		return r.base, true
	}
	for _, a := range r.outfits {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// Close releases every remaining display reference.
func (r *Registry) Close() {
	r.mu.Lock()
	base := r.base
	outfits := r.outfits
	r.base = nil
	r.outfits = nil
	r.mu.Unlock()

	if base != nil {
		r.release(base)
	}
	for _, a := range outfits {
		r.release(a)
	}
}

func (r *Registry) validate(up domain.Upload) (string, error) {
	if len(up.Data) == 0 {
		return "", domain.ErrEmptyUpload
	}
	if r.maxBytes > 0 && int64(len(up.Data)) > r.maxBytes {
		return "", domain.ErrUploadTooLarge
	}
	detected := mimetype.Detect(up.Data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", domain.ErrUnsupportedMedia
	}
	// Prefer the sniffed type; clients often send application/octet-stream.
	mime, _, _ := strings.Cut(detected.String(), ";")
	return mime, nil
}

func (r *Registry) create(role domain.AssetRole, up domain.Upload, mime string) (*domain.Asset, error) {
	asset := &domain.Asset{
		ID:        fmt.Sprintf("%s-%s", role, r.newID()),
		Role:      role,
		Name:      strings.TrimSpace(up.Name),
		MIME:      mime,
		Data:      up.Data,
		CreatedAt: r.now(),
	}
	if asset.Name == "" {
		asset.Name = asset.ID
	}
	ref, err := r.display.Issue(asset)
	if err != nil {
		return nil, fmt.Errorf("issue display reference: %w", err)
	}
	asset.DisplayRef = ref
	r.logger.Debug().
		Str("asset_id", asset.ID).
		Str("role", string(role)).
		Str("mime", mime).
		Int64("bytes", asset.Size()).
		Msg("registry: asset added")
	return asset, nil
}

func (r *Registry) release(a *domain.Asset) {
	if err := r.display.Revoke(a.DisplayRef); err != nil {
		level := r.logger.Warn()
		if !errors.Is(err, ErrHandleReleased) {
			level = r.logger.Error()
		}
		level.Err(err).Str("asset_id", a.ID).Msg("registry: release display reference failed")
		return
	}
	r.logger.Debug().Str("asset_id", a.ID).Msg("registry: asset released")
}

func (r *Registry) publish(eventType pubsub.EventType, a *domain.Asset) {
	if r.feed != nil {
		r.feed.Publish(eventType, a)
	}
}

package handlers

import (
	"time"

	"outfitswap/internal/domain"
	"outfitswap/internal/studio"
)

type assetView struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Name       string    `json:"name"`
	MIME       string    `json:"mime"`
	Bytes      int64     `json:"bytes"`
	DisplayURL string    `json:"display_url"`
	CreatedAt  time.Time `json:"created_at"`
}

type jobView struct {
	ID         string     `json:"id"`
	OutfitID   string     `json:"outfit_id"`
	OutfitName string     `json:"outfit_name"`
	Status     string     `json:"status"`
	ResultURL  string     `json:"result_url,omitempty"`
	DownloadAs string     `json:"download_as,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type stateView struct {
	Base        *assetView  `json:"base"`
	Outfits     []assetView `json:"outfits"`
	Jobs        []jobView   `json:"jobs"`
	Processing  bool        `json:"processing"`
	Error       string      `json:"error,omitempty"`
	OutfitCount int         `json:"outfit_count"`
}

func newAssetView(a *domain.Asset) assetView {
	return assetView{
		ID:         a.ID,
		Role:       string(a.Role),
		Name:       a.Name,
		MIME:       a.MIME,
		Bytes:      a.Size(),
		DisplayURL: a.DisplayRef,
		CreatedAt:  a.CreatedAt,
	}
}

func newJobView(j domain.Job) jobView {
	v := jobView{
		ID:     j.ID,
		Status: string(j.Status),
		Error:  j.ErrorMessage,
	}
	if j.Outfit != nil {
		v.OutfitID = j.Outfit.ID
		v.OutfitName = j.Outfit.Name
	}
	if j.Status == domain.JobStatusCompleted {
		v.ResultURL = "/v1/jobs/" + j.ID + "/result"
		v.DownloadAs = studio.ResultFileName(j.Outfit)
	}
	if !j.StartedAt.IsZero() {
		started := j.StartedAt
		v.StartedAt = &started
	}
	if !j.FinishedAt.IsZero() {
		finished := j.FinishedAt
		v.FinishedAt = &finished
	}
	return v
}

func newStateView(s studio.State) stateView {
	v := stateView{
		Outfits:     make([]assetView, 0, len(s.Outfits)),
		Jobs:        make([]jobView, 0, len(s.Jobs)),
		Processing:  s.Processing,
		Error:       s.Error,
		OutfitCount: s.OutfitCount,
	}
	if s.Base != nil {
		base := newAssetView(s.Base)
		v.Base = &base
	}
	for _, a := range s.Outfits {
		v.Outfits = append(v.Outfits, newAssetView(a))
	}
	for _, j := range s.Jobs {
		v.Jobs = append(v.Jobs, newJobView(j))
	}
	return v
}

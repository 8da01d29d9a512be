package domain

import "time"

// AssetRole distinguishes the single base image from outfit images.
type AssetRole string

const (
	AssetRoleBase   AssetRole = "base"
	AssetRoleOutfit AssetRole = "outfit"
)

// Asset is a user-supplied image held by the registry. Assets are immutable
// once created and are shared by pointer between the registry and jobs.
type Asset struct {
	ID         string
	Role       AssetRole
	Name       string
	MIME       string
	Data       []byte
	DisplayRef string
	CreatedAt  time.Time
}

// Size reports the payload length in bytes.
func (a *Asset) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Data))
}

// Upload is the raw input for a new asset before it is registered.
type Upload struct {
	Name string
	MIME string
	Data []byte
}

package image

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"outfitswap/internal/domain"
)

// Source is an input image handed to an editor.
type Source struct {
	Name string
	MIME string
	Data []byte
}

// SourceFromAsset exposes a registered asset's binary payload.
func SourceFromAsset(a *domain.Asset) Source {
	if a == nil {
		return Source{}
	}
	return Source{Name: a.Name, MIME: a.MIME, Data: a.Data}
}

// Result is an edited image. Reference is a self-contained data URI that can
// be displayed or downloaded without further network access.
type Result struct {
	Reference string
	MIME      string
	Data      []byte
	Width     int
	Height    int
}

// Editor is the contract implemented by every edit provider: dress the person
// in base with the clothing shown in outfit.
type Editor interface {
	Edit(ctx context.Context, base, outfit Source) (*Result, error)
}

// EditorFunc adapts a function to the Editor interface.
type EditorFunc func(ctx context.Context, base, outfit Source) (*Result, error)

func (f EditorFunc) Edit(ctx context.Context, base, outfit Source) (*Result, error) {
	return f(ctx, base, outfit)
}

type requestIDKey struct{}

// WithRequestID tags ctx so providers can correlate their logs with a job.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

var errInvalidDataURI = errors.New("invalid data uri")

// DataURI encodes data as a base64 data URI.
func DataURI(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", normalizeFormat(mime), base64.StdEncoding.EncodeToString(data))
}

// ParseDataURI reverses DataURI.
func ParseDataURI(ref string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return "", nil, errInvalidDataURI
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errInvalidDataURI
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, errInvalidDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errInvalidDataURI, err)
	}
	return mime, data, nil
}

func normalizeFormat(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch mime {
	case "image/jpeg", "image/jpg":
		return "image/jpeg"
	case "image/png":
		return "image/png"
	default:
		if strings.HasPrefix(mime, "image/") {
			return mime
		}
		return "image/png"
	}
}

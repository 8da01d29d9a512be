package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	stdimage "image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
)

// SyntheticEditor produces deterministic placeholder images derived from both
// inputs. It never touches the network and is meant for local runs and demos.
type SyntheticEditor struct {
	aspectRatio string
}

// NewSyntheticEditor returns an offline editor for the given aspect ratio.
func NewSyntheticEditor(aspectRatio string) *SyntheticEditor {
	if strings.TrimSpace(aspectRatio) == "" {
		aspectRatio = DefaultAspectRatio
	}
	return &SyntheticEditor{aspectRatio: aspectRatio}
}

// Edit renders a striped preview: the base image seeds the background, the
// outfit image seeds the stripes.
func (s *SyntheticEditor) Edit(ctx context.Context, base, outfit Source) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, height := normalizeAspect(s.aspectRatio)
	// Preview size keeps placeholder payloads small.
	width, height = width/4, height/4

	data, err := renderSyntheticImage(width, height, deterministicSeed(base.Data), deterministicSeed(outfit.Data))
	if err != nil {
		return nil, fmt.Errorf("render synthetic image: %w", err)
	}
	return &Result{
		Reference: DataURI("image/png", data),
		MIME:      "image/png",
		Data:      data,
		Width:     width,
		Height:    height,
	}, nil
}

var _ Editor = (*SyntheticEditor)(nil)

func renderSyntheticImage(width, height int, baseSeed, outfitSeed string) ([]byte, error) {
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	background := colorFromSeed(baseSeed, 0)
	draw.Draw(img, img.Bounds(), &stdimage.Uniform{background}, stdimage.Point{}, draw.Src)

	// Torso band stands in for the swapped clothing.
	accent := colorFromSeed(outfitSeed, 0)
	stripe := colorFromSeed(outfitSeed, 1)
	top, bottom := height/4, height*3/4
	stripeHeight := maxInt(4, height/24)
	for y := top; y < bottom; y += stripeHeight * 2 {
		band := stdimage.Rect(width/5, y, width*4/5, minInt(bottom, y+stripeHeight))
		draw.Draw(img, band, &stdimage.Uniform{accent}, stdimage.Point{}, draw.Over)
		next := stdimage.Rect(width/5, minInt(bottom, y+stripeHeight), width*4/5, minInt(bottom, y+2*stripeHeight))
		draw.Draw(img, next, &stdimage.Uniform{stripe}, stdimage.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{
		R: parseHexByte(segment[0:2]),
		G: parseHexByte(segment[2:4]),
		B: parseHexByte(segment[4:6]),
		A: 255,
	}
}

func parseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

func normalizeAspect(aspect string) (int, int) {
	switch strings.TrimSpace(strings.ToLower(aspect)) {
	case "16:9":
		return 1920, 1080
	case "9:16":
		return 1080, 1920
	case "4:5":
		return 1024, 1280
	case "3:4":
		return 1104, 1472
	case "1:1", "square", "":
		return 1024, 1024
	default:
		parts := strings.Split(aspect, ":")
		if len(parts) == 2 {
			if a, errA := strconv.Atoi(strings.TrimSpace(parts[0])); errA == nil {
				if b, errB := strconv.Atoi(strings.TrimSpace(parts[1])); errB == nil && a > 0 && b > 0 {
					width := 1024
					return width, int(float64(width) * float64(b) / float64(a))
				}
			}
		}
		return 1024, 1024
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

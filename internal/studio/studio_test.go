package studio

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"outfitswap/internal/domain"
	"outfitswap/internal/providers/image"
	"outfitswap/internal/pubsub"
	"outfitswap/internal/registry"
)

func pngUpload(name string) domain.Upload {
	return domain.Upload{Name: name, Data: append([]byte("\x89PNG\r\n\x1a\n"), name...)}
}

// echoEditor returns the outfit bytes as the result, failing for names in fail.
func echoEditor(fail ...string) image.Editor {
	failing := make(map[string]bool, len(fail))
	for _, name := range fail {
		failing[name] = true
	}
	return image.EditorFunc(func(ctx context.Context, base, outfit image.Source) (*image.Result, error) {
		if failing[outfit.Name] {
			return nil, errors.New("rejected " + outfit.Name)
		}
		return &image.Result{Reference: image.DataURI("image/png", outfit.Data), MIME: "image/png", Data: outfit.Data}, nil
	})
}

func newStudio(t *testing.T, editor image.Editor) (*Studio, *registry.HandleTable) {
	t.Helper()
	table := registry.NewHandleTable("/v1/display/")
	s := New(editor, table, Options{FeedBuffer: 256})
	t.Cleanup(s.Close)
	return s, table
}

func TestGenerateRequiresInputs(t *testing.T) {
	s, _ := newStudio(t, echoEditor())

	_, err := s.Generate(context.Background())
	require.ErrorIs(t, err, domain.ErrNoBaseAsset)

	_, err = s.AddBase(pngUpload("me.png"))
	require.NoError(t, err)
	_, err = s.Generate(context.Background())
	require.ErrorIs(t, err, domain.ErrNoOutfits)
	require.Empty(t, s.State().Jobs)
}

func TestGenerateProducesDownloadableResults(t *testing.T) {
	s, _ := newStudio(t, echoEditor("b.png"))

	_, err := s.AddBase(pngUpload("me.png"))
	require.NoError(t, err)
	added, err := s.AddOutfits([]domain.Upload{pngUpload("a.png"), pngUpload("b.png"), pngUpload("c.png")})
	require.NoError(t, err)

	n, err := s.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, s.Wait(context.Background()))

	state := s.State()
	require.Equal(t, 3, state.OutfitCount)
	require.False(t, state.Processing)
	require.Equal(t, "Failed to process one or more images. Last error: rejected b.png", state.Error)

	res, err := s.Result(domain.JobIDFor(added[0].ID))
	require.NoError(t, err)
	require.Equal(t, "result_a.png", res.FileName)
	require.Equal(t, "image/png", res.MIME)
	require.Equal(t, added[0].Data, res.Data)

	_, err = s.Result(domain.JobIDFor(added[1].ID))
	require.ErrorIs(t, err, ErrNoResult)
	_, err = s.Result("job-missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	results, err := s.Results()
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "result_c.png", results[1].FileName)

	archive, err := s.Archive()
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	names := []string{}
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"result_a.png", "result_c.png"}, names)
}

func TestRemovingOutfitDuringRunKeepsSnapshot(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 4)
	editor := image.EditorFunc(func(ctx context.Context, base, outfit image.Source) (*image.Result, error) {
		entered <- struct{}{}
		<-release
		return &image.Result{Reference: image.DataURI("image/png", outfit.Data)}, nil
	})
	s, table := newStudio(t, editor)

	_, err := s.AddBase(pngUpload("me.png"))
	require.NoError(t, err)
	added, err := s.AddOutfits([]domain.Upload{pngUpload("a.png"), pngUpload("b.png")})
	require.NoError(t, err)

	_, err = s.Generate(context.Background())
	require.NoError(t, err)
	<-entered

	_, err = s.Generate(context.Background())
	require.ErrorIs(t, err, domain.ErrBatchRunning)

	require.NoError(t, s.RemoveOutfit(added[1].ID))
	require.ErrorIs(t, s.RemoveOutfit(added[1].ID), domain.ErrNotFound)
	require.Equal(t, 2, table.Len())

	close(release)
	require.NoError(t, s.Wait(context.Background()))
	state := s.State()
	require.Equal(t, 1, state.OutfitCount)
	require.Len(t, state.Jobs, 2)
	require.Equal(t, domain.JobStatusCompleted, state.Jobs[1].Status)

	res, err := s.Result(domain.JobIDFor(added[1].ID))
	require.NoError(t, err)
	require.Equal(t, "result_b.png", res.FileName)
}

func TestSubscribeStreamsSessionState(t *testing.T) {
	s, _ := newStudio(t, echoEditor())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := s.Subscribe(ctx)

	_, err := s.AddBase(pngUpload("me.png"))
	require.NoError(t, err)
	_, err = s.AddOutfits([]domain.Upload{pngUpload("a.png")})
	require.NoError(t, err)
	_, err = s.Generate(context.Background())
	require.NoError(t, err)

	var last pubsub.Event[State]
	var types []pubsub.EventType
	deadline := time.After(2 * time.Second)
	for last.Type != pubsub.BatchFinished {
		select {
		case ev := <-feed:
			types = append(types, ev.Type)
			last = ev
		case <-deadline:
			require.FailNow(t, "timeout waiting for batch_finished", "saw %v", types)
		}
	}
	require.Contains(t, types, pubsub.AssetAdded)
	require.Contains(t, types, pubsub.BatchStarted)
	require.Contains(t, types, pubsub.JobUpdated)
	require.NotNil(t, last.Payload.Base)
	require.Equal(t, 1, last.Payload.OutfitCount)
	require.Equal(t, domain.JobStatusCompleted, last.Payload.Jobs[0].Status)
}

func TestCloseReleasesDisplayReferences(t *testing.T) {
	table := registry.NewHandleTable("/v1/display/")
	s := New(echoEditor(), table, Options{})

	_, err := s.AddBase(pngUpload("me.png"))
	require.NoError(t, err)
	_, err = s.AddOutfits([]domain.Upload{pngUpload("a.png"), pngUpload("b.png")})
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	s.Close()
	s.Close()
	require.Equal(t, 0, table.Len())
}

func TestResultFileName(t *testing.T) {
	require.Equal(t, "result_shirt.jpg", ResultFileName(&domain.Asset{Name: "shirt.jpg"}))
	require.Equal(t, "result.png", ResultFileName(nil))
}

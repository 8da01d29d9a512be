package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"outfitswap/internal/domain"
	"outfitswap/internal/pubsub"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func pngUpload(name string) domain.Upload {
	return domain.Upload{Name: name, MIME: "application/octet-stream", Data: append(append([]byte(nil), pngMagic...), name...)}
}

type countingIssuer struct {
	mu       sync.Mutex
	next     int
	issued   map[string]int
	revoked  map[string]int
	issueErr error
}

func newCountingIssuer() *countingIssuer {
	return &countingIssuer{issued: map[string]int{}, revoked: map[string]int{}}
}

func (c *countingIssuer) Issue(a *domain.Asset) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.issueErr != nil {
		return "", c.issueErr
	}
	c.next++
	ref := fmt.Sprintf("ref-%d", c.next)
	c.issued[ref]++
	return ref, nil
}

func (c *countingIssuer) Revoke(ref string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[ref]++
	return nil
}

func (c *countingIssuer) revokedCount(ref string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revoked[ref]
}

func (c *countingIssuer) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for ref := range c.issued {
		if c.revoked[ref] == 0 {
			n++
		}
	}
	return n
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%03d", n)
	}
}

func TestAddBaseReplacesAndReleasesPrevious(t *testing.T) {
	issuer := newCountingIssuer()
	reg := New(issuer, Options{NewID: sequentialIDs()})

	first, err := reg.AddBase(pngUpload("first.png"))
	require.NoError(t, err)
	require.Equal(t, "base-001", first.ID)
	require.Equal(t, domain.AssetRoleBase, first.Role)
	require.Equal(t, "image/png", first.MIME)
	require.NotEmpty(t, first.DisplayRef)

	second, err := reg.AddBase(pngUpload("second.png"))
	require.NoError(t, err)
	require.Same(t, second, reg.Base())
	require.Equal(t, 1, issuer.revokedCount(first.DisplayRef))
	require.Equal(t, 0, issuer.revokedCount(second.DisplayRef))

	reg.RemoveBase()
	require.Nil(t, reg.Base())
	require.Equal(t, 1, issuer.revokedCount(second.DisplayRef))

	reg.RemoveBase()
	require.Equal(t, 1, issuer.revokedCount(second.DisplayRef), "removing an empty slot must not release again")
	require.Equal(t, 0, issuer.live())
}

func TestAddOutfitsAppendsInOrder(t *testing.T) {
	issuer := newCountingIssuer()
	reg := New(issuer, Options{NewID: sequentialIDs()})

	first, err := reg.AddOutfits([]domain.Upload{pngUpload("a.png"), pngUpload("b.png")})
	require.NoError(t, err)
	require.Len(t, first, 2)

	more, err := reg.AddOutfits([]domain.Upload{pngUpload("c.png")})
	require.NoError(t, err)
	require.Len(t, more, 1)

	outfits := reg.Outfits()
	names := make([]string, len(outfits))
	for i, a := range outfits {
		names[i] = a.Name
		require.Equal(t, domain.AssetRoleOutfit, a.Role)
	}
	require.Equal(t, []string{"a.png", "b.png", "c.png"}, names)
	require.Equal(t, "outfit-001", outfits[0].ID)
	require.Same(t, first[0], outfits[0], "existing outfits must be untouched")
}

func TestAddOutfitsIsAllOrNothing(t *testing.T) {
	issuer := newCountingIssuer()
	reg := New(issuer, Options{})

	_, err := reg.AddOutfits([]domain.Upload{
		pngUpload("ok.png"),
		{Name: "notes.txt", Data: []byte("just some text")},
	})
	require.ErrorIs(t, err, domain.ErrUnsupportedMedia)
	require.Empty(t, reg.Outfits())
	require.Empty(t, issuer.issued)
}

func TestAddOutfitsRollsBackOnIssueFailure(t *testing.T) {
	issuer := newCountingIssuer()
	reg := New(issuer, Options{})
	issuer.issueErr = errors.New("table full")

	_, err := reg.AddOutfits([]domain.Upload{pngUpload("a.png")})
	require.Error(t, err)
	require.Empty(t, reg.Outfits())
}

func TestUploadValidation(t *testing.T) {
	reg := New(newCountingIssuer(), Options{MaxUploadBytes: 16})

	_, err := reg.AddBase(domain.Upload{Name: "empty.png"})
	require.ErrorIs(t, err, domain.ErrEmptyUpload)

	big := pngUpload("this-name-makes-it-too-large.png")
	_, err = reg.AddBase(big)
	require.ErrorIs(t, err, domain.ErrUploadTooLarge)

	jpeg := domain.Upload{Name: "x.jpg", Data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF")}
	asset, err := reg.AddBase(jpeg)
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", asset.MIME)
}

func TestRemoveOutfit(t *testing.T) {
	issuer := newCountingIssuer()
	reg := New(issuer, Options{NewID: sequentialIDs()})
	added, err := reg.AddOutfits([]domain.Upload{pngUpload("a.png"), pngUpload("b.png"), pngUpload("c.png")})
	require.NoError(t, err)

	require.False(t, reg.RemoveOutfit("missing"))
	require.Len(t, reg.Outfits(), 3)

	require.True(t, reg.RemoveOutfit(added[1].ID))
	require.Equal(t, 1, issuer.revokedCount(added[1].DisplayRef))
	outfits := reg.Outfits()
	require.Len(t, outfits, 2)
	require.Equal(t, added[0].ID, outfits[0].ID)
	require.Equal(t, added[2].ID, outfits[1].ID)

	require.False(t, reg.RemoveOutfit(added[1].ID))
	require.Equal(t, 1, issuer.revokedCount(added[1].DisplayRef))

	_, ok := reg.Lookup(added[0].ID)
	require.True(t, ok)
	_, ok = reg.Lookup(added[1].ID)
	require.False(t, ok)
}

func TestOutfitsReturnsSnapshot(t *testing.T) {
	reg := New(newCountingIssuer(), Options{})
	added, err := reg.AddOutfits([]domain.Upload{pngUpload("a.png"), pngUpload("b.png")})
	require.NoError(t, err)

	snapshot := reg.Outfits()
	reg.RemoveOutfit(added[0].ID)
	_, err = reg.AddOutfits([]domain.Upload{pngUpload("c.png")})
	require.NoError(t, err)

	require.Len(t, snapshot, 2)
	require.Same(t, added[0], snapshot[0])
	require.Same(t, added[1], snapshot[1])
}

func TestCloseReleasesEverything(t *testing.T) {
	issuer := newCountingIssuer()
	reg := New(issuer, Options{})
	_, err := reg.AddBase(pngUpload("base.png"))
	require.NoError(t, err)
	_, err = reg.AddOutfits([]domain.Upload{pngUpload("a.png"), pngUpload("b.png")})
	require.NoError(t, err)
	require.Equal(t, 3, issuer.live())

	reg.Close()
	require.Equal(t, 0, issuer.live())
	for ref := range issuer.issued {
		require.Equal(t, 1, issuer.revokedCount(ref))
	}
}

func TestRegistryPublishesChanges(t *testing.T) {
	broker := pubsub.NewBroker[*domain.Asset]()
	defer broker.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := broker.Subscribe(ctx)

	reg := New(newCountingIssuer(), Options{Feed: broker})
	base, err := reg.AddBase(pngUpload("base.png"))
	require.NoError(t, err)
	reg.RemoveBase()

	for _, want := range []pubsub.EventType{pubsub.AssetAdded, pubsub.AssetRemoved} {
		select {
		case ev := <-events:
			require.Equal(t, want, ev.Type)
			require.Same(t, base, ev.Payload)
		case <-time.After(time.Second):
			require.Fail(t, "timeout waiting for registry event")
		}
	}
}

func TestHandleTableLifecycle(t *testing.T) {
	table := NewHandleTable("/v1/display/")
	asset := &domain.Asset{ID: "outfit-1"}

	ref, err := table.Issue(asset)
	require.NoError(t, err)
	require.Contains(t, ref, "/v1/display/")
	require.Equal(t, 1, table.Len())

	resolved, ok := table.Resolve(ref[len("/v1/display/"):])
	require.True(t, ok)
	require.Same(t, asset, resolved)

	require.NoError(t, table.Revoke(ref))
	require.ErrorIs(t, table.Revoke(ref), ErrHandleReleased)
	require.ErrorIs(t, table.Revoke("elsewhere/abc"), ErrHandleReleased)
	_, ok = table.Resolve(ref[len("/v1/display/"):])
	require.False(t, ok)
	require.Equal(t, 0, table.Len())

	_, err = table.Issue(nil)
	require.Error(t, err)
}

func TestRegistryWithHandleTablePairsLifetimes(t *testing.T) {
	table := NewHandleTable("/v1/display/")
	reg := New(table, Options{})

	_, err := reg.AddBase(pngUpload("one.png"))
	require.NoError(t, err)
	_, err = reg.AddBase(pngUpload("two.png"))
	require.NoError(t, err)
	added, err := reg.AddOutfits([]domain.Upload{pngUpload("a.png"), pngUpload("b.png")})
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	reg.RemoveOutfit(added[0].ID)
	require.Equal(t, 2, table.Len())

	reg.Close()
	require.Equal(t, 0, table.Len())
}

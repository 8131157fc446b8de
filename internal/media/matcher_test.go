package media_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/media"
	"github.com/phrazzld/copyblocks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// libraryStore is an in-memory ImageStore that applies the same AND semantics
// as the SQL implementation.
type libraryStore struct {
	images  []domain.ImageRecord
	queries [][]string

	FindByTagsFn func(ctx context.Context, tags []string) ([]domain.ImageRecord, error)
}

func (s *libraryStore) FindByTags(ctx context.Context, tags []string) ([]domain.ImageRecord, error) {
	s.queries = append(s.queries, append([]string(nil), tags...))
	if s.FindByTagsFn != nil {
		return s.FindByTagsFn(ctx, tags)
	}

	var out []domain.ImageRecord
	for _, img := range s.images {
		if img.InLibrary && hasAll(img.Tags, tags) {
			out = append(out, img)
		}
	}
	return out, nil
}

func (s *libraryStore) DefaultImage(ctx context.Context) (*domain.ImageRecord, error) {
	for _, img := range s.images {
		if img.IsDefault {
			found := img
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func hasAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

func image(tags ...string) domain.ImageRecord {
	return domain.ImageRecord{AttachmentID: uuid.New(), Tags: tags, InLibrary: true}
}

func seeded() media.Option {
	return media.WithRand(rand.New(rand.NewSource(7)))
}

func TestFindMatch_PrefersFullTagMatch(t *testing.T) {
	full := image("bakery", "bookkeeping", "software")
	lib := &libraryStore{images: []domain.ImageRecord{
		image("bakery"),
		image("bakery", "bookkeeping"),
		full,
		image("software"),
	}}
	matcher, err := media.NewMatcher(lib, seeded())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		got, err := matcher.FindMatch(context.Background(), media.Context{
			FocusKeyword: "bakery bookkeeping",
			Topic:        "software",
		})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, full.AttachmentID, *got)
	}
}

func TestFindMatch_DegradesTagSet(t *testing.T) {
	pair := image("bakery", "bookkeeping")
	lib := &libraryStore{images: []domain.ImageRecord{image("bakery"), pair}}
	matcher, err := media.NewMatcher(lib, seeded())
	require.NoError(t, err)

	got, err := matcher.FindMatch(context.Background(), media.Context{FocusKeyword: "bakery bookkeeping software"})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, pair.AttachmentID, *got)
	assert.Equal(t, [][]string{
		{"bakery", "bookkeeping", "software"},
		{"bakery", "bookkeeping"},
	}, lib.queries)
}

func TestFindMatch_PicksAmongCandidates(t *testing.T) {
	a, b := image("coffee"), image("coffee")
	lib := &libraryStore{images: []domain.ImageRecord{a, b}}
	matcher, err := media.NewMatcher(lib, seeded())
	require.NoError(t, err)

	picked := map[uuid.UUID]int{}
	for i := 0; i < 50; i++ {
		got, err := matcher.FindMatch(context.Background(), media.Context{Topic: "coffee"})
		require.NoError(t, err)
		picked[*got]++
	}

	assert.Len(t, picked, 2, "both candidates are used over many pages")
}

func TestFindMatch_IgnoresImagesOutsideLibrary(t *testing.T) {
	hidden := image("coffee")
	hidden.InLibrary = false
	lib := &libraryStore{images: []domain.ImageRecord{hidden}}
	matcher, err := media.NewMatcher(lib)
	require.NoError(t, err)

	got, err := matcher.FindMatch(context.Background(), media.Context{Topic: "coffee"})

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindMatch_Fallbacks(t *testing.T) {
	configured := uuid.New()
	flagged := image("unrelated")
	flagged.IsDefault = true

	tests := []struct {
		name   string
		images []domain.ImageRecord
		opts   []media.Option
		ctx    media.Context
		want   *uuid.UUID
	}{
		{name: "empty context with configured default", opts: []media.Option{media.WithDefaultImage(configured)}, want: &configured},
		{name: "only short tokens", ctx: media.Context{FocusKeyword: "ai is ok"}, opts: []media.Option{media.WithDefaultImage(configured)}, want: &configured},
		{name: "no match with configured default", ctx: media.Context{Topic: "coffee"}, opts: []media.Option{media.WithDefaultImage(configured)}, want: &configured},
		{name: "no match with library default", images: []domain.ImageRecord{flagged}, ctx: media.Context{Topic: "coffee"}, want: &flagged.AttachmentID},
		{name: "no match and no default", ctx: media.Context{Topic: "coffee"}, want: nil},
		{name: "empty context and no default", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matcher, err := media.NewMatcher(&libraryStore{images: tt.images}, tt.opts...)
			require.NoError(t, err)

			got, err := matcher.FindMatch(context.Background(), tt.ctx)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindMatch_StoreError(t *testing.T) {
	dbErr := errors.New("connection refused")
	lib := &libraryStore{FindByTagsFn: func(ctx context.Context, tags []string) ([]domain.ImageRecord, error) {
		return nil, dbErr
	}}
	matcher, err := media.NewMatcher(lib)
	require.NoError(t, err)

	_, err = matcher.FindMatch(context.Background(), media.Context{Topic: "coffee"})

	assert.ErrorIs(t, err, dbErr)
}

func TestNewMatcher_NilStore(t *testing.T) {
	_, err := media.NewMatcher(nil)
	assert.ErrorIs(t, err, media.ErrNilImageStore)
}

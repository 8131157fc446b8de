package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/copyblocks/internal/store"
)

// maxMatchTags is the widest AND-match attempted.
const maxMatchTags = 3

// ErrNilImageStore is returned when the matcher is constructed without a store.
var ErrNilImageStore = errors.New("media: image store cannot be nil")

// Context is the free-text page context an image is matched against.
type Context struct {
	FocusKeyword string
	Topic        string
	Category     string
}

// Option customises a Matcher.
type Option func(*Matcher)

// WithDefaultImage sets the attachment returned when nothing matches.
// It takes precedence over the library's own default-flagged image.
func WithDefaultImage(id uuid.UUID) Option {
	return func(m *Matcher) {
		if id != uuid.Nil {
			m.defaultID = &id
		}
	}
}

// WithRand replaces the random source used to pick among equal candidates.
func WithRand(r *rand.Rand) Option {
	return func(m *Matcher) {
		if r != nil {
			m.rand = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Matcher picks a library image for a page from its tags.
type Matcher struct {
	images    store.ImageStore
	defaultID *uuid.UUID
	rand      *rand.Rand
	logger    *slog.Logger
}

// NewMatcher creates a Matcher backed by the given image store.
func NewMatcher(images store.ImageStore, opts ...Option) (*Matcher, error) {
	if images == nil {
		return nil, ErrNilImageStore
	}
	m := &Matcher{
		images: images,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "image_matcher")
	return m, nil
}

// FindMatch returns the attachment that best fits the context, falling back
// to the default image. A nil id with a nil error means nothing fits and no
// default exists.
//
// Matching requires images to carry all of the first three tags, then the
// first two, then the first one; the first level with candidates wins and
// one of its candidates is chosen at random.
func (m *Matcher) FindMatch(ctx context.Context, c Context) (*uuid.UUID, error) {
	tags := Tags(c.FocusKeyword, c.Topic, c.Category)
	if len(tags) == 0 {
		return m.fallback(ctx)
	}

	width := min(len(tags), maxMatchTags)
	for n := width; n >= 1; n-- {
		candidates, err := m.images.FindByTags(ctx, tags[:n])
		if err != nil {
			return nil, fmt.Errorf("finding images tagged %v: %w", tags[:n], err)
		}
		if len(candidates) == 0 {
			continue
		}

		pick := candidates[m.rand.Intn(len(candidates))].AttachmentID
		m.logger.DebugContext(ctx, "matched image",
			"tags", tags[:n],
			"candidates", len(candidates),
			"attachment_id", pick)
		return &pick, nil
	}

	return m.fallback(ctx)
}

func (m *Matcher) fallback(ctx context.Context) (*uuid.UUID, error) {
	if m.defaultID != nil {
		id := *m.defaultID
		return &id, nil
	}

	record, err := m.images.DefaultImage(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading default image: %w", err)
	}
	id := record.AttachmentID
	return &id, nil
}

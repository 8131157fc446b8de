package memory

import (
	"context"
	"sync"

	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/store"
)

// ImageStore is a fixed media library.
type ImageStore struct {
	mu     sync.RWMutex
	images []domain.ImageRecord
}

var _ store.ImageStore = (*ImageStore)(nil)

// NewImageStore creates a library holding images.
func NewImageStore(images ...domain.ImageRecord) *ImageStore {
	return &ImageStore{images: images}
}

// FindByTags implements store.ImageStore.
func (s *ImageStore) FindByTags(ctx context.Context, tags []string) ([]domain.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ImageRecord
	for _, img := range s.images {
		if img.InLibrary && containsAll(img.Tags, tags) {
			out = append(out, img)
		}
	}
	return out, nil
}

// DefaultImage implements store.ImageStore.
func (s *ImageStore) DefaultImage(ctx context.Context) (*domain.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, img := range s.images {
		if img.IsDefault {
			found := img
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

package domain

import "github.com/google/uuid"

// ImageRecord is a tagged media attachment that can be matched to a page.
// At most one record in the library carries IsDefault.
type ImageRecord struct {
	AttachmentID uuid.UUID `json:"attachment_id"`
	Tags         []string  `json:"tags"`
	IsDefault    bool      `json:"is_default"`
	InLibrary    bool      `json:"in_library"`
}

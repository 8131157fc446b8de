package domain

import (
	"fmt"
	"strings"
)

// SEOMetadataBlock is the synthetic block generated first for every page.
const SEOMetadataBlock = "seo_metadata"

// FieldKind describes the value shape stored in a content slot.
type FieldKind string

// Supported field kinds
const (
	FieldText   FieldKind = "text"
	FieldList   FieldKind = "list"
	FieldObject FieldKind = "object"
)

// Block definition validation errors
var (
	ErrEmptyBlockID        = fmt.Errorf("%w: block ID cannot be empty", ErrValidation)
	ErrEmptyBlockFields    = fmt.Errorf("%w: block must declare at least one field", ErrValidation)
	ErrEmptyPromptTemplate = fmt.Errorf("%w: block prompt template cannot be empty", ErrValidation)
	ErrInvalidFieldKind    = fmt.Errorf("%w: invalid field kind", ErrValidation)
)

// FieldSpec is a single content slot within a block, with its own constraints.
// Zero MaxLength and MinItems mean unconstrained.
type FieldSpec struct {
	Name      string    `json:"name" yaml:"name"`
	Kind      FieldKind `json:"kind" yaml:"kind"`
	Required  bool      `json:"required" yaml:"required"`
	MaxLength int       `json:"max_length,omitempty" yaml:"max_length"`
	MinItems  int       `json:"min_items,omitempty" yaml:"min_items"`
}

// BlockDefinition is a static catalog entry describing how a block is generated.
type BlockDefinition struct {
	ID             string      `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Fields         []FieldSpec `json:"fields" yaml:"fields"`
	PromptTemplate string      `json:"prompt_template" yaml:"-"`
	MaxTokens      int         `json:"max_tokens,omitempty" yaml:"max_tokens"`

	// Position orders the block within the default page order; lower first.
	Position int `json:"position" yaml:"position"`
}

// Validate checks if the BlockDefinition has valid data.
func (b *BlockDefinition) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrEmptyBlockID
	}

	if len(b.Fields) == 0 {
		return ErrEmptyBlockFields
	}

	for _, f := range b.Fields {
		switch f.Kind {
		case FieldText, FieldList, FieldObject, "":
		default:
			return ErrInvalidFieldKind
		}
	}

	if strings.TrimSpace(b.PromptTemplate) == "" {
		return ErrEmptyPromptTemplate
	}

	return nil
}

// Field returns the spec of the named field.
func (b *BlockDefinition) Field(name string) (FieldSpec, bool) {
	for _, f := range b.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldNames returns the ordered field names of the block.
func (b *BlockDefinition) FieldNames() []string {
	names := make([]string, 0, len(b.Fields))
	for _, f := range b.Fields {
		names = append(names, f.Name)
	}
	return names
}

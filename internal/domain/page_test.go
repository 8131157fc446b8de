package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewPage(t *testing.T) {
	t.Parallel()

	page, err := NewPage("Roof Repair Denver", "roof repair", "roof repair denver")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if page.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if page.Status != PageStatusDraft {
		t.Errorf("Expected draft status, got %s", page.Status)
	}

	if page.Blocks == nil {
		t.Error("Expected initialized block map")
	}

	_, err = NewPage("  ", "topic", "keyword")
	if !errors.Is(err, ErrEmptyPageTitle) {
		t.Errorf("Expected error %v, got %v", ErrEmptyPageTitle, err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected %v to wrap ErrValidation", err)
	}
}

func TestPageReadyForGeneration(t *testing.T) {
	t.Parallel()

	page, err := NewPage("Title", "topic", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := page.ReadyForGeneration(); !errors.Is(err, ErrMissingFocusKeyword) {
		t.Errorf("Expected error %v, got %v", ErrMissingFocusKeyword, err)
	}

	page.FocusKeyword = "keyword"
	if err := page.ReadyForGeneration(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestBlockDefinitionValidate(t *testing.T) {
	t.Parallel()

	valid := BlockDefinition{
		ID:             "hero",
		Fields:         []FieldSpec{{Name: "headline", Kind: FieldText, Required: true}},
		PromptTemplate: "Write a hero for {{.Title}}",
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	noFields := valid
	noFields.Fields = nil
	if err := noFields.Validate(); !errors.Is(err, ErrEmptyBlockFields) {
		t.Errorf("Expected error %v, got %v", ErrEmptyBlockFields, err)
	}

	badKind := valid
	badKind.Fields = []FieldSpec{{Name: "x", Kind: "table"}}
	if err := badKind.Validate(); !errors.Is(err, ErrInvalidFieldKind) {
		t.Errorf("Expected error %v, got %v", ErrInvalidFieldKind, err)
	}

	noTemplate := valid
	noTemplate.PromptTemplate = ""
	if err := noTemplate.Validate(); !errors.Is(err, ErrEmptyPromptTemplate) {
		t.Errorf("Expected error %v, got %v", ErrEmptyPromptTemplate, err)
	}

	if got := valid.FieldNames(); len(got) != 1 || got[0] != "headline" {
		t.Errorf("Expected [headline], got %v", got)
	}
}

package content_test

import (
	"testing"

	"github.com/phrazzld/copyblocks/internal/content"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const heroReply = `{"headline": "Bakery bookkeeping, done", "subheadline": "Close the month in <b>minutes</b>.", "cta_text": "Start free"}`

func TestParse_HeroCanonicalFields(t *testing.T) {
	t.Parallel()

	fields, err := content.NewParser().Parse("hero", heroReply)

	require.NoError(t, err)
	assert.Equal(t, domain.BlockFields{
		"hero_headline":    "Bakery bookkeeping, done",
		"hero_subheadline": "Close the month in minutes.",
		"hero_cta_text":    "Start free",
	}, fields)
}

func TestParse_FencedReplyMatchesUnfenced(t *testing.T) {
	t.Parallel()

	parser := content.NewParser()
	plain, err := parser.Parse("hero", heroReply)
	require.NoError(t, err)

	for _, fenced := range []string{
		"```json\n" + heroReply + "\n```",
		"```\n" + heroReply + "\n```",
		"  ```JSON\n" + heroReply + "```  ",
		"```json" + heroReply + "```",
	} {
		got, err := parser.Parse("hero", fenced)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestParse_HeroMissingSubheadline(t *testing.T) {
	t.Parallel()

	parser := content.NewParser()
	for _, raw := range []string{
		`{"headline": "Only a headline"}`,
		"```json\n{\"headline\": \"Only a headline\"}\n```",
		`{"headline": "Blank", "subheadline": "   "}`,
	} {
		_, err := parser.Parse("hero", raw)
		require.Error(t, err)
		assert.ErrorIs(t, err, generation.ErrFormat)
		assert.Equal(t, "Invalid hero content format", err.Error())
	}
}

func TestParse_ShapeMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		block string
		raw   string
	}{
		{"not json", "hero", "Here is your hero section!"},
		{"array instead of object", "hero", `["headline"]`},
		{"list field not an array", "faq", `{"items": "Q: A"}`},
		{"text field holds object", "cta", `{"headline": {"text": "x"}, "button_text": "Go"}`},
		{"empty text block", "about", "```\n\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := content.NewParser().Parse(tt.block, tt.raw)
			assert.ErrorIs(t, err, generation.ErrFormat)
		})
	}
}

func TestParse_UnknownBlock(t *testing.T) {
	t.Parallel()

	_, err := content.NewParser().Parse("carousel", "{}")
	assert.ErrorIs(t, err, generation.ErrUnknownBlock)
}

func TestParse_NestedValuesSanitized(t *testing.T) {
	t.Parallel()

	raw := `{"title": "Questions", "items": [
		{"question": "<script>alert(1)</script>Is it <em>safe</em>?", "answer": "Yes &amp; audited."},
		{"question": "Cost?", "answer": "<p>Free</p>"}
	]}`

	fields, err := content.NewParser().Parse("faq", raw)

	require.NoError(t, err)
	assert.Equal(t, "Questions", fields["faq_title"])
	itemsField, ok := fields["faq_items"].([]any)
	require.True(t, ok)
	require.Len(t, itemsField, 2)
	first := itemsField[0].(map[string]any)
	assert.Equal(t, "Is it safe?", first["question"])
	assert.Equal(t, "Yes & audited.", first["answer"])
	assert.Equal(t, "Free", itemsField[1].(map[string]any)["answer"])
}

func TestParse_TextBlock(t *testing.T) {
	t.Parallel()

	parser := content.NewParser()

	fields, err := parser.Parse("about", "We are a <strong>family</strong> firm.\n")
	require.NoError(t, err)
	assert.Equal(t, domain.BlockFields{"about_content": "We are a family firm."}, fields)

	fields, err = parser.Parse("about", `{"content": "Wrapped reply"}`)
	require.NoError(t, err)
	assert.Equal(t, "Wrapped reply", fields["about_content"])
}

func TestParse_KeysAreCaseInsensitiveAndExtrasDropped(t *testing.T) {
	t.Parallel()

	fields, err := content.NewParser().Parse("cta",
		`{"Headline": "Ready?", "BUTTON_TEXT": "Go", "confidence": 0.9}`)

	require.NoError(t, err)
	assert.Equal(t, domain.BlockFields{"cta_headline": "Ready?", "cta_button_text": "Go"}, fields)
}

func TestRegisterAddsBlockType(t *testing.T) {
	t.Parallel()

	parser := content.NewParser()
	assert.False(t, parser.Supports("guarantee"))

	parser.Register("guarantee", content.Shape{Keys: []content.Key{{Raw: "promise", Field: "guarantee_promise", Required: true}}})

	fields, err := parser.Parse("guarantee", `{"promise": "30 days"}`)
	require.NoError(t, err)
	assert.Equal(t, "30 days", fields["guarantee_promise"])
}

func TestParseDefinition_DerivesShapeFromFields(t *testing.T) {
	t.Parallel()

	def := domain.BlockDefinition{
		ID: "carousel",
		Fields: []domain.FieldSpec{
			{Name: "carousel_title", Kind: domain.FieldText, Required: true},
			{Name: "carousel_slides", Kind: domain.FieldList, Required: true},
			{Name: "carousel_settings", Kind: domain.FieldObject},
			{Name: "carousel_caption"},
		},
		PromptTemplate: "Slides for {{.Title}}",
	}
	parser := content.NewParser()
	assert.False(t, parser.Supports("carousel"))
	assert.True(t, parser.SupportsDefinition(def))

	fields, err := parser.ParseDefinition(def,
		`{"Title":"Ten <b>roasts</b>","slides":["a","b"],"carousel_settings":{"loop":true}}`)

	require.NoError(t, err)
	assert.Equal(t, domain.BlockFields{
		"carousel_title":    "Ten roasts",
		"carousel_slides":   []any{"a", "b"},
		"carousel_settings": map[string]any{"loop": true},
	}, fields)

	_, err = parser.ParseDefinition(def, `{"title":"x","slides":"not a list"}`)
	assert.ErrorIs(t, err, generation.ErrFormat)

	_, err = parser.ParseDefinition(def, `{"slides":["a"]}`)
	assert.ErrorIs(t, err, generation.ErrFormat)
}

func TestParseDefinition_RegisteredShapeWins(t *testing.T) {
	t.Parallel()

	def := domain.BlockDefinition{
		ID:     "hero",
		Fields: []domain.FieldSpec{{Name: "headline", Kind: domain.FieldText, Required: true}},
	}
	fields, err := content.NewParser().ParseDefinition(def, heroReply)

	require.NoError(t, err)
	assert.Equal(t, "Bakery bookkeeping, done", fields["hero_headline"])
}

func TestParseDefinition_NoFields(t *testing.T) {
	t.Parallel()

	parser := content.NewParser()
	def := domain.BlockDefinition{ID: "ghost"}
	assert.False(t, parser.SupportsDefinition(def))

	_, err := parser.ParseDefinition(def, `{}`)
	assert.ErrorIs(t, err, generation.ErrUnknownBlock)
}

func TestStripFence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a":1}`, content.StripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, content.StripFence("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, content.StripFence("```json{\"a\":1}```"))
	assert.Equal(t, `[1,2]`, content.StripFence("```JSON [1,2]```"))
	assert.Equal(t, "{\"a\":1,\n\"b\":2}", content.StripFence("```json{\"a\":1,\n\"b\":2}\n```"))
	assert.Equal(t, "note: {x}", content.StripFence("```\nnote: {x}\n```"))
	assert.Equal(t, "plain", content.StripFence("  plain \n"))
}

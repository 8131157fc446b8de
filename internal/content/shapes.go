package content

import (
	"strings"

	"github.com/phrazzld/copyblocks/internal/domain"
)

// ShapeKind is the top-level form a block reply takes.
type ShapeKind int

const (
	// ShapeObject replies are a JSON object whose keys map onto fields.
	ShapeObject ShapeKind = iota
	// ShapeText replies are plain text stored in a single field.
	ShapeText
)

// Key maps one raw reply key onto its canonical field name.
type Key struct {
	Raw      string
	Field    string
	Required bool
	List     bool
	Object   bool
}

// Shape describes the expected reply of one block type.
type Shape struct {
	Kind ShapeKind
	// TextField receives the whole reply for ShapeText.
	TextField string
	Keys      []Key
}

func req(raw, field string) Key { return Key{Raw: raw, Field: field, Required: true} }
func opt(raw, field string) Key { return Key{Raw: raw, Field: field} }
func items(raw, field string) Key {
	return Key{Raw: raw, Field: field, Required: true, List: true}
}

// ShapeFromDefinition derives an object shape from a block's field specs.
// Each raw key is the field name without its "<block>_" prefix, so a
// "carousel_title" field is read from a "title" key.
func ShapeFromDefinition(def domain.BlockDefinition) Shape {
	keys := make([]Key, 0, len(def.Fields))
	for _, f := range def.Fields {
		keys = append(keys, Key{
			Raw:      strings.ToLower(strings.TrimPrefix(f.Name, def.ID+"_")),
			Field:    f.Name,
			Required: f.Required,
			List:     f.Kind == domain.FieldList,
			Object:   f.Kind == domain.FieldObject,
		})
	}
	return Shape{Kind: ShapeObject, Keys: keys}
}

// DefaultShapes returns the dispatch table for the built-in block types.
func DefaultShapes() map[string]Shape {
	return map[string]Shape{
		domain.SEOMetadataBlock: {Keys: []Key{
			req("meta_title", "seo_title"),
			req("meta_description", "seo_description"),
			opt("focus_keyphrase", "seo_focus_keyphrase"),
		}},
		"hero": {Keys: []Key{
			req("headline", "hero_headline"),
			req("subheadline", "hero_subheadline"),
			opt("cta_text", "hero_cta_text"),
		}},
		"problem": {Keys: []Key{
			req("title", "problem_title"),
			req("description", "problem_description"),
			{Raw: "pain_points", Field: "problem_pain_points", List: true},
		}},
		"solution": {Keys: []Key{
			req("title", "solution_title"),
			req("description", "solution_description"),
		}},
		"features": {Keys: []Key{
			opt("title", "features_title"),
			items("items", "features_items"),
		}},
		"benefits": {Keys: []Key{
			opt("title", "benefits_title"),
			items("items", "benefits_items"),
		}},
		"how_it_works": {Keys: []Key{
			opt("title", "how_it_works_title"),
			items("steps", "how_it_works_steps"),
		}},
		"testimonials": {Keys: []Key{
			opt("title", "testimonials_title"),
			items("items", "testimonials_items"),
		}},
		"pricing": {Keys: []Key{
			opt("title", "pricing_title"),
			items("plans", "pricing_plans"),
		}},
		"faq": {Keys: []Key{
			opt("title", "faq_title"),
			items("items", "faq_items"),
		}},
		"cta": {Keys: []Key{
			req("headline", "cta_headline"),
			opt("description", "cta_description"),
			req("button_text", "cta_button_text"),
		}},
		"about": {Kind: ShapeText, TextField: "about_content"},
		"stats": {Keys: []Key{
			opt("title", "stats_title"),
			items("items", "stats_items"),
		}},
		"comparison": {Keys: []Key{
			opt("title", "comparison_title"),
			items("rows", "comparison_rows"),
		}},
	}
}

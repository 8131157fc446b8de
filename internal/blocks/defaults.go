package blocks

import "github.com/phrazzld/copyblocks/internal/domain"

// pageContextTemplate is shared by every block prompt.
const pageContextTemplate = `{{define "page_context"}}Page title: {{.Title}}
Topic: {{.Topic}}
Focus keyword: {{.FocusKeyword}}{{if .Category}}
Category: {{.Category}}{{end}}{{range $key, $value := .Context}}
{{$key}}: {{$value}}{{end}}{{end}}`

func text(name string, required bool, maxLength int) domain.FieldSpec {
	return domain.FieldSpec{Name: name, Kind: domain.FieldText, Required: required, MaxLength: maxLength}
}

func list(name string, minItems int) domain.FieldSpec {
	return domain.FieldSpec{Name: name, Kind: domain.FieldList, Required: minItems > 0, MinItems: minItems}
}

// Defaults returns the built-in block catalog in default page order.
func Defaults() []domain.BlockDefinition {
	return []domain.BlockDefinition{
		{
			ID: domain.SEOMetadataBlock, Name: "SEO Metadata", Position: 0, MaxTokens: 300,
			Fields: []domain.FieldSpec{
				text("seo_title", true, 60),
				text("seo_description", true, 160),
				text("seo_focus_keyphrase", false, 100),
			},
			PromptTemplate: `Write search engine metadata for a landing page.
{{template "page_context" .}}

Reply with a JSON object with the keys "meta_title" (at most 60 characters, include the focus keyword),
"meta_description" (at most 160 characters) and "focus_keyphrase".`,
		},
		{
			ID: "hero", Name: "Hero", Position: 10, MaxTokens: 300,
			Fields: []domain.FieldSpec{
				text("hero_headline", true, 80),
				text("hero_subheadline", true, 250),
				text("hero_cta_text", false, 40),
			},
			PromptTemplate: `Write the hero section of a landing page.
{{template "page_context" .}}

Reply with a JSON object with the keys "headline" (at most 80 characters, include the focus keyword),
"subheadline" (one or two sentences) and "cta_text" (two to four words).`,
		},
		{
			ID: "problem", Name: "Problem", Position: 20, MaxTokens: 500,
			Fields: []domain.FieldSpec{
				text("problem_title", true, 100),
				text("problem_description", true, 800),
				list("problem_pain_points", 0),
			},
			PromptTemplate: `Describe the problem the reader faces.
{{template "page_context" .}}

Reply with a JSON object with the keys "title", "description" (one paragraph)
and "pain_points" (an array of three short strings).`,
		},
		{
			ID: "solution", Name: "Solution", Position: 30, MaxTokens: 500,
			Fields: []domain.FieldSpec{
				text("solution_title", true, 100),
				text("solution_description", true, 800),
			},
			PromptTemplate: `Present the solution to the problem described for this page.
{{template "page_context" .}}

Reply with a JSON object with the keys "title" and "description" (one paragraph).`,
		},
		{
			ID: "features", Name: "Features", Position: 40, MaxTokens: 700,
			Fields: []domain.FieldSpec{
				text("features_title", false, 100),
				list("features_items", 3),
			},
			PromptTemplate: `List the key features.
{{template "page_context" .}}

Reply with a JSON object with the keys "title" and "items", where items is an array of
four to six objects with the keys "title" and "description".`,
		},
		{
			ID: "benefits", Name: "Benefits", Position: 50, MaxTokens: 500,
			Fields: []domain.FieldSpec{
				text("benefits_title", false, 100),
				list("benefits_items", 3),
			},
			PromptTemplate: `List the main benefits for the reader.
{{template "page_context" .}}

Reply with a JSON object with the keys "title" and "items", where items is an array of
three to five short benefit statements.`,
		},
		{
			ID: "how_it_works", Name: "How It Works", Position: 60, MaxTokens: 600,
			Fields: []domain.FieldSpec{
				text("how_it_works_title", false, 100),
				list("how_it_works_steps", 2),
			},
			PromptTemplate: `Explain how it works in a few steps.
{{template "page_context" .}}

Reply with a JSON object with the keys "title" and "steps", where steps is an array of
three or four objects with the keys "title" and "description".`,
		},
		{
			ID: "testimonials", Name: "Testimonials", Position: 70, MaxTokens: 700,
			Fields: []domain.FieldSpec{
				text("testimonials_title", false, 100),
				list("testimonials_items", 1),
			},
			PromptTemplate: `Write realistic sample testimonials.
{{template "page_context" .}}

Reply with a JSON object with the keys "title" and "items", where items is an array of
three objects with the keys "quote", "author" and "role".`,
		},
		{
			ID: "pricing", Name: "Pricing", Position: 80, MaxTokens: 700,
			Fields: []domain.FieldSpec{
				text("pricing_title", false, 100),
				list("pricing_plans", 1),
			},
			PromptTemplate: `Write copy for a pricing table.
{{template "page_context" .}}

Reply with a JSON object with the keys "title" and "plans", where plans is an array of
objects with the keys "name", "price", "description" and "features" (an array of strings).`,
		},
		{
			ID: "faq", Name: "FAQ", Position: 90, MaxTokens: 900,
			Fields: []domain.FieldSpec{
				text("faq_title", false, 100),
				list("faq_items", 3),
			},
			PromptTemplate: `Write frequently asked questions with answers.
{{template "page_context" .}}

Reply with a JSON object with the keys "title" and "items", where items is an array of
five objects with the keys "question" and "answer".`,
		},
		{
			ID: "cta", Name: "Call To Action", Position: 100, MaxTokens: 300,
			Fields: []domain.FieldSpec{
				text("cta_headline", true, 100),
				text("cta_description", false, 300),
				text("cta_button_text", true, 40),
			},
			PromptTemplate: `Write the closing call to action.
{{template "page_context" .}}

Reply with a JSON object with the keys "headline", "description" and "button_text" (two to four words).`,
		},
		{
			ID: "about", Name: "About", Position: 110, MaxTokens: 500,
			Fields: []domain.FieldSpec{
				text("about_content", true, 1500),
			},
			PromptTemplate: `Write a short "about" paragraph for the business behind this page.
{{template "page_context" .}}

Reply with plain text only, no JSON and no markdown.`,
		},
		{
			ID: "stats", Name: "Stats", Position: 120, MaxTokens: 400,
			Fields: []domain.FieldSpec{
				text("stats_title", false, 100),
				list("stats_items", 2),
			},
			PromptTemplate: `Suggest headline statistics that build credibility.
{{template "page_context" .}}

Reply with a JSON object with the keys "title" and "items", where items is an array of
three or four objects with the keys "value" and "label".`,
		},
		{
			ID: "comparison", Name: "Comparison", Position: 130, MaxTokens: 700,
			Fields: []domain.FieldSpec{
				text("comparison_title", false, 100),
				list("comparison_rows", 2),
			},
			PromptTemplate: `Compare this offer with the usual alternative.
{{template "page_context" .}}

Reply with a JSON object with the keys "title" and "rows", where rows is an array of
objects with the keys "feature", "us" and "them".`,
		},
	}
}

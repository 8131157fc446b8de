// Package content parses raw model replies into block fields.
//
// Each block type has a Shape in the parser's dispatch table describing whether
// the reply is plain text or a JSON object, which raw keys it must carry and
// the canonical field name each key is stored under. Markdown code fences are
// removed before parsing and every string value is stripped of HTML.
// ValidateFields then applies the per-field constraints from the catalog.
package content

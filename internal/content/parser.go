package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/generation"
)

var (
	errNotObject  = errors.New("reply is not a JSON object")
	errEmptyReply = errors.New("reply is empty")
)

// Parser turns raw model replies into canonical block fields using a
// dispatch table keyed by block type.
type Parser struct {
	mu     sync.RWMutex
	shapes map[string]Shape
}

// NewParser creates a parser for the built-in block types.
func NewParser() *Parser {
	return &Parser{shapes: DefaultShapes()}
}

// Register adds or replaces the shape of a block type.
func (p *Parser) Register(blockType string, shape Shape) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shapes[blockType] = shape
}

// Supports reports whether the parser has a shape for blockType.
func (p *Parser) Supports(blockType string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.shapes[blockType]
	return ok
}

// SupportsDefinition reports whether replies for def can be parsed, either
// through a registered shape or one derived from its fields.
func (p *Parser) SupportsDefinition(def domain.BlockDefinition) bool {
	return p.Supports(def.ID) || len(def.Fields) > 0
}

// Parse maps a raw reply onto the canonical fields of blockType. Every string
// in the result is sanitized.
func (p *Parser) Parse(blockType, raw string) (domain.BlockFields, error) {
	p.mu.RLock()
	shape, ok := p.shapes[blockType]
	p.mu.RUnlock()
	if !ok {
		return nil, generation.NewUnknownBlockError(blockType)
	}

	return parseShape(blockType, shape, raw)
}

// ParseDefinition parses a reply for def. Block types without a registered
// shape are parsed against a shape derived from the definition's fields.
func (p *Parser) ParseDefinition(def domain.BlockDefinition, raw string) (domain.BlockFields, error) {
	p.mu.RLock()
	shape, ok := p.shapes[def.ID]
	p.mu.RUnlock()
	if !ok {
		if len(def.Fields) == 0 {
			return nil, generation.NewUnknownBlockError(def.ID)
		}
		shape = ShapeFromDefinition(def)
	}
	return parseShape(def.ID, shape, raw)
}

func parseShape(blockType string, shape Shape, raw string) (domain.BlockFields, error) {
	body := StripFence(raw)

	switch shape.Kind {
	case ShapeText:
		return parseText(blockType, shape, body)
	default:
		return parseObject(blockType, shape, body)
	}
}

func parseText(blockType string, shape Shape, body string) (domain.BlockFields, error) {
	text := body
	// Models sometimes answer a plain text prompt with {"content": "..."}.
	if strings.HasPrefix(body, "{") {
		var wrapped map[string]any
		if err := json.Unmarshal([]byte(body), &wrapped); err == nil {
			if s, ok := wrapped["content"].(string); ok {
				text = s
			}
		}
	}

	text = Sanitize(text)
	if text == "" {
		return nil, generation.NewFormatError(blockType, errEmptyReply)
	}
	return domain.BlockFields{shape.TextField: text}, nil
}

func parseObject(blockType string, shape Shape, body string) (domain.BlockFields, error) {
	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, generation.NewFormatError(blockType, err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, generation.NewFormatError(blockType, errNotObject)
	}

	lowered := make(map[string]any, len(obj))
	for k, v := range obj {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}

	fields := make(domain.BlockFields, len(shape.Keys))
	for _, key := range shape.Keys {
		value, present := lowered[key.Raw]
		if !present {
			value, present = lowered[key.Field]
		}
		if !present || value == nil {
			if key.Required {
				return nil, generation.NewFormatError(blockType, fmt.Errorf("missing key %q", key.Raw))
			}
			continue
		}

		converted, err := convert(key, value)
		if err != nil {
			return nil, generation.NewFormatError(blockType, err)
		}
		if key.Required && isEmpty(converted) {
			return nil, generation.NewFormatError(blockType, fmt.Errorf("empty value for key %q", key.Raw))
		}
		fields[key.Field] = converted
	}
	return fields, nil
}

func convert(key Key, value any) (any, error) {
	if key.List {
		list, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("key %q must be an array", key.Raw)
		}
		return sanitizeValue(list), nil
	}
	if key.Object {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("key %q must be an object", key.Raw)
		}
		return sanitizeValue(obj), nil
	}

	switch v := value.(type) {
	case string:
		return Sanitize(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return nil, fmt.Errorf("key %q must be a string", key.Raw)
	}
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return v == nil
	}
}

// StripFence removes a surrounding markdown code fence such as ```json ... ```.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	opening, _, _ := strings.Cut(s, "\n")
	if i := strings.IndexAny(opening, "{["); i >= 0 {
		// A tag glued to the body, as in ```json{...}```.
		if isFenceTag(strings.TrimSpace(opening[:i])) {
			s = s[i:]
		}
	} else if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string ("json", "JSON", ...) on the opening line.
		if !strings.Contains(opening, `"`) {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

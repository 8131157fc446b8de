package content

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/generation"
)

// ValidateFields enforces the catalog constraints of def on parsed fields.
// Violations are reported as a format error for the block.
func ValidateFields(def domain.BlockDefinition, fields domain.BlockFields) error {
	errs := validation.Errors{}
	for _, spec := range def.Fields {
		value := fields[spec.Name]

		switch spec.Kind {
		case domain.FieldList:
			list, _ := value.([]any)
			var rules []validation.Rule
			if spec.Required {
				rules = append(rules, validation.Required)
			}
			if spec.MinItems > 0 {
				rules = append(rules, validation.Length(spec.MinItems, 0))
			}
			errs[spec.Name] = validation.Validate(list, rules...)
		case domain.FieldObject:
			if spec.Required {
				errs[spec.Name] = validation.Validate(value, validation.Required)
			}
		default:
			text, _ := value.(string)
			var rules []validation.Rule
			if spec.Required {
				rules = append(rules, validation.Required)
			}
			if spec.MaxLength > 0 {
				rules = append(rules, validation.RuneLength(0, spec.MaxLength))
			}
			errs[spec.Name] = validation.Validate(text, rules...)
		}
	}

	if err := errs.Filter(); err != nil {
		return generation.NewFormatError(def.ID, err)
	}
	return nil
}

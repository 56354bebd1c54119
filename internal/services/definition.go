package services

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"casefiling/backend/pkg/apperr"
	"casefiling/backend/pkg/models"
)

var (
	//go:embed schemas/template_definition.json
	definitionSchemaJSON []byte
	//go:embed schemas/template_patch.json
	patchSchemaJSON []byte
)

// SchemaValidator checks raw JSON template payloads before they are decoded,
// so type errors are reported per field rather than as a decoder failure.
type SchemaValidator struct {
	definition *gojsonschema.Schema
	patch      *gojsonschema.Schema
}

// NewSchemaValidator compiles the embedded schemas.
func NewSchemaValidator() (*SchemaValidator, error) {
	definition, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(definitionSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compiling definition schema: %w", err)
	}
	patch, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(patchSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compiling patch schema: %w", err)
	}
	return &SchemaValidator{definition: definition, patch: patch}, nil
}

// ValidateDefinition checks a template creation payload.
func (v *SchemaValidator) ValidateDefinition(raw []byte) error {
	return validateAgainst(v.definition, raw)
}

// ValidatePatch checks a template update payload.
func (v *SchemaValidator) ValidatePatch(raw []byte) error {
	return validateAgainst(v.patch, raw)
}

func validateAgainst(schema *gojsonschema.Schema, raw []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return apperr.Validation("request body is not valid JSON")
	}
	if result.Valid() {
		return nil
	}
	fields := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		fields[i] = desc.String()
	}
	return apperr.Validation("template payload does not match schema", fields...)
}

// ValidateDefinition enforces the structural rules of a template definition.
// All problems are reported together; Fields lists the offending identifiers.
func ValidateDefinition(def models.TemplateDefinition) error {
	var problems []string
	if def.Name == "" {
		problems = append(problems, "name")
	}

	sectionIDs := make(map[string]bool)
	fieldIDs := make(map[string]bool)
	fieldCount := 0
	for si, s := range def.Sections {
		switch {
		case s.ID == "":
			problems = append(problems, fmt.Sprintf("sections[%d].id", si))
		case sectionIDs[s.ID]:
			problems = append(problems, "duplicate section "+s.ID)
		}
		sectionIDs[s.ID] = true

		for fi, f := range s.Fields {
			fieldCount++
			if f.ID == "" {
				problems = append(problems, fmt.Sprintf("sections[%d].fields[%d].id", si, fi))
				continue
			}
			if fieldIDs[f.ID] {
				problems = append(problems, "duplicate field "+f.ID)
			}
			fieldIDs[f.ID] = true
			if !f.Type.Valid() {
				problems = append(problems, f.ID+".type")
			}
			if f.Type == models.FieldTypeChoice && len(f.Options) == 0 {
				problems = append(problems, f.ID+".options")
			}
		}
	}

	if fieldCount == 0 {
		return apperr.Validation("template must declare at least one field", problems...)
	}
	if len(problems) > 0 {
		return apperr.Validation("invalid template definition", problems...)
	}
	return nil
}

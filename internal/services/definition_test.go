package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casefiling/backend/pkg/apperr"
	"casefiling/backend/pkg/models"
)

func TestValidateDefinition(t *testing.T) {
	field := func(id string, typ models.FieldType) models.Field { return models.Field{ID: id, Type: typ} }

	tests := []struct {
		name    string
		def     models.TemplateDefinition
		problem string
	}{
		{"valid", t1Definition(), ""},
		{"missing name", models.TemplateDefinition{Sections: []models.Section{{ID: "s", Fields: []models.Field{field("a", models.FieldTypeText)}}}}, "name"},
		{"no sections", models.TemplateDefinition{Name: "x"}, "at least one field"},
		{"unknown type", models.TemplateDefinition{Name: "x", Sections: []models.Section{{ID: "s", Fields: []models.Field{field("a", "signature")}}}}, "a.type"},
		{"choice without options", models.TemplateDefinition{Name: "x", Sections: []models.Section{{ID: "s", Fields: []models.Field{field("a", models.FieldTypeChoice)}}}}, "a.options"},
		{"duplicate section", models.TemplateDefinition{Name: "x", Sections: []models.Section{
			{ID: "s", Fields: []models.Field{field("a", models.FieldTypeText)}},
			{ID: "s", Fields: []models.Field{field("b", models.FieldTypeText)}},
		}}, "duplicate section s"},
		{"blank field id", models.TemplateDefinition{Name: "x", Sections: []models.Section{{ID: "s", Fields: []models.Field{field("", models.FieldTypeText)}}}}, "sections[0].fields[0].id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDefinition(tt.def)
			if tt.problem == "" {
				assert.NoError(t, err)
				return
			}
			require.True(t, apperr.IsKind(err, apperr.KindValidation))
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestSchemaValidator(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	assert.NoError(t, v.ValidateDefinition([]byte(`{
		"name": "I-130",
		"sections": [{"id": "s", "fields": [{"id": "fullName", "type": "text", "required": true}]}]
	}`)))

	err = v.ValidateDefinition([]byte(`{"name": "I-130", "sections": [{"id": "s", "fields": [{"id": "x", "type": "signature", "required": "yes"}]}]}`))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Len(t, appErr.Fields, 2)

	assert.True(t, apperr.IsKind(v.ValidateDefinition([]byte(`{not json`)), apperr.KindValidation))

	assert.NoError(t, v.ValidatePatch([]byte(`{"description": "only this"}`)))
	assert.Error(t, v.ValidatePatch([]byte(`{"name": ""}`)))
}

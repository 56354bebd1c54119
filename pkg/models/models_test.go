package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleTemplate() *FormTemplate {
	return &FormTemplate{
		ID:       "tpl-1",
		FamilyID: "fam-1",
		Version:  1,
		Name:     "Visa application",
		Status:   TemplateStatusDraft,
		Sections: []Section{
			{ID: "applicant", Fields: []Field{
				{ID: "fullName", Type: FieldTypeText, Required: true},
				{ID: "maritalStatus", Type: FieldTypeChoice, Options: []string{"single", "married"}},
			}},
			{ID: "travel", Fields: []Field{
				{ID: "passportNumber", Type: FieldTypeText, Required: true, SourcePath: "documents.passport.number"},
			}},
		},
	}
}

func TestFormTemplate_FieldsKeepDeclarationOrder(t *testing.T) {
	tpl := sampleTemplate()

	var ids []string
	for _, f := range tpl.Fields() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"fullName", "maritalStatus", "passportNumber"}, ids)
	assert.Contains(t, tpl.FieldIndex(), "passportNumber")
}

func TestFormTemplate_CloneIsDeep(t *testing.T) {
	tpl := sampleTemplate()
	c := tpl.Clone()

	c.Sections[0].Fields[1].Options[0] = "widowed"
	c.Sections[1].Fields[0].Required = false

	assert.Equal(t, "single", tpl.Sections[0].Fields[1].Options[0])
	assert.True(t, tpl.Sections[1].Fields[0].Required)
}

func TestTemplateDefinition_Apply(t *testing.T) {
	base := sampleTemplate().Definition()
	name := "Visa application (2026)"

	patched := base.Apply(TemplatePatch{Name: &name})
	assert.Equal(t, name, patched.Name)
	assert.Equal(t, base.Sections, patched.Sections)

	sections := []Section{{ID: "only", Fields: []Field{{ID: "x", Type: FieldTypeText}}}}
	replaced := base.Apply(TemplatePatch{Sections: &sections})
	assert.Equal(t, base.Name, replaced.Name)
	assert.Len(t, replaced.Sections, 1)
}

func TestFormSubmission_Validate(t *testing.T) {
	ok := &FormSubmission{Status: SubmissionStatusGenerated}
	assert.NoError(t, ok.Validate())

	generatedWithMissing := &FormSubmission{Status: SubmissionStatusGenerated, MissingFields: []string{"a"}}
	assert.Error(t, generatedWithMissing.Validate())

	incompleteWithout := &FormSubmission{Status: SubmissionStatusIncomplete}
	assert.Error(t, incompleteWithout.Validate())

	incomplete := &FormSubmission{Status: SubmissionStatusIncomplete, MissingFields: []string{"a"}}
	assert.NoError(t, incomplete.Validate())

	assert.Error(t, (&FormSubmission{Status: "PENDING"}).Validate())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(SubmissionStatusGenerated, SubmissionStatusSubmitted))
	assert.True(t, CanTransition(SubmissionStatusGenerated, SubmissionStatusFailed))
	assert.True(t, CanTransition(SubmissionStatusFailed, SubmissionStatusSubmitted))
	assert.False(t, CanTransition(SubmissionStatusSubmitted, SubmissionStatusFailed))
	assert.False(t, CanTransition(SubmissionStatusGenerated, SubmissionStatusIncomplete))
	assert.False(t, CanTransition(SubmissionStatusIncomplete, SubmissionStatusSubmitted))
}

func TestCloneMappings(t *testing.T) {
	in := map[string]PortalFieldRef{
		"maritalStatus": {PortalField: "marital", Transform: &TransformSpec{Kind: TransformEnumRelabel, Table: map[string]string{"single": "S"}}},
	}
	out := CloneMappings(in)
	out["maritalStatus"].Transform.Table["single"] = "X"

	assert.Equal(t, "S", in["maritalStatus"].Transform.Table["single"])
}

func TestFieldMapping_Resolve(t *testing.T) {
	m := &FieldMapping{Mappings: map[string]PortalFieldRef{"passportNumber": {PortalField: "passport"}}}

	ref, ok := m.Resolve("passportNumber")
	assert.True(t, ok)
	assert.Equal(t, "passport", ref.PortalField)

	_, ok = m.Resolve("fullName")
	assert.False(t, ok)

	var none *FieldMapping
	_, ok = none.Resolve("passportNumber")
	assert.False(t, ok)
}

func TestFormSubmission_CloneIsDeep(t *testing.T) {
	sub := &FormSubmission{
		ID: "sub-1",
		Data: map[string]any{
			"address": map[string]any{"city": "Lyon"},
			"aliases": []any{"Lee", map[string]any{"script": "latin"}},
		},
		PortalPayload: map[string]any{"addr": map[string]any{"city": "Lyon"}},
	}

	c := sub.Clone()
	c.Data["address"].(map[string]any)["city"] = "Paris"
	c.Data["aliases"].([]any)[0] = "Kim"
	c.Data["aliases"].([]any)[1].(map[string]any)["script"] = "hangul"
	c.PortalPayload["addr"].(map[string]any)["city"] = "Paris"

	assert.Equal(t, "Lyon", sub.Data["address"].(map[string]any)["city"])
	assert.Equal(t, "Lee", sub.Data["aliases"].([]any)[0])
	assert.Equal(t, "latin", sub.Data["aliases"].([]any)[1].(map[string]any)["script"])
	assert.Equal(t, "Lyon", sub.PortalPayload["addr"].(map[string]any)["city"])
}

package models

import (
	"time"
)

// TemplateStatus is the lifecycle state of a single template version.
type TemplateStatus string

const (
	TemplateStatusDraft     TemplateStatus = "DRAFT"
	TemplateStatusPublished TemplateStatus = "PUBLISHED"
	TemplateStatusArchived  TemplateStatus = "ARCHIVED"
)

// FieldType enumerates the kinds of input a template field accepts.
type FieldType string

const (
	FieldTypeText          FieldType = "text"
	FieldTypeDate          FieldType = "date"
	FieldTypeNumber        FieldType = "number"
	FieldTypeChoice        FieldType = "choice"
	FieldTypeBoolean       FieldType = "boolean"
	FieldTypeFileReference FieldType = "file-reference"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeDate, FieldTypeNumber, FieldTypeChoice, FieldTypeBoolean, FieldTypeFileReference:
		return true
	}
	return false
}

// Field is a single input of a form template.
type Field struct {
	ID         string    `json:"id" yaml:"id"`
	Label      string    `json:"label" yaml:"label"`
	Type       FieldType `json:"type" yaml:"type"`
	Required   bool      `json:"required" yaml:"required"`
	SourcePath string    `json:"sourcePath,omitempty" yaml:"sourcePath,omitempty"` // dotted locator into case data; empty = user supplied only
	Options    []string  `json:"options,omitempty" yaml:"options,omitempty"`       // choice fields only
}

// Section groups fields; declaration order is significant.
type Section struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title" yaml:"title"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// TemplateDefinition is the author-controlled content of a template version.
type TemplateDefinition struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Sections    []Section `json:"sections" yaml:"sections"`
}

// TemplatePatch carries the optional parts of an update. Nil means unchanged.
type TemplatePatch struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Sections    *[]Section `json:"sections,omitempty"`
}

// FormTemplate is one immutable-once-published version of a template family.
type FormTemplate struct {
	ID          string         `json:"id"`       // Unique version ID
	FamilyID    string         `json:"familyId"` // Stable lineage ID
	Version     int            `json:"version"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      TemplateStatus `json:"status"`
	Sections    []Section      `json:"sections"`
	CreatedBy   string         `json:"createdBy"`
	UpdatedBy   string         `json:"updatedBy,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	PublishedAt *time.Time     `json:"publishedAt,omitempty"`
}

// Definition returns the author-controlled part of the template.
func (t *FormTemplate) Definition() TemplateDefinition {
	return TemplateDefinition{
		Name:        t.Name,
		Description: t.Description,
		Sections:    cloneSections(t.Sections),
	}
}

// Fields returns every field in section then field declaration order.
func (t *FormTemplate) Fields() []Field {
	var fields []Field
	for _, s := range t.Sections {
		fields = append(fields, s.Fields...)
	}
	return fields
}

// FieldIndex returns the set of field IDs declared by the template.
func (t *FormTemplate) FieldIndex() map[string]Field {
	idx := make(map[string]Field)
	for _, s := range t.Sections {
		for _, f := range s.Fields {
			idx[f.ID] = f
		}
	}
	return idx
}

// Clone returns a deep copy so callers cannot mutate stored records.
func (t *FormTemplate) Clone() *FormTemplate {
	if t == nil {
		return nil
	}
	c := *t
	c.Sections = cloneSections(t.Sections)
	if t.PublishedAt != nil {
		p := *t.PublishedAt
		c.PublishedAt = &p
	}
	return &c
}

// Apply returns d with the non-nil parts of p laid over it.
func (d TemplateDefinition) Apply(p TemplatePatch) TemplateDefinition {
	out := TemplateDefinition{
		Name:        d.Name,
		Description: d.Description,
		Sections:    cloneSections(d.Sections),
	}
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Sections != nil {
		out.Sections = cloneSections(*p.Sections)
	}
	return out
}

func cloneSections(in []Section) []Section {
	if in == nil {
		return nil
	}
	out := make([]Section, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Fields = make([]Field, len(s.Fields))
		for j, f := range s.Fields {
			out[i].Fields[j] = f
			if f.Options != nil {
				out[i].Fields[j].Options = append([]string(nil), f.Options...)
			}
		}
	}
	return out
}

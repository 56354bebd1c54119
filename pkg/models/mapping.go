package models

import "time"

// PortalFieldRef is the portal-side target of one internal field.
type PortalFieldRef struct {
	PortalField string         `json:"portalField" yaml:"portalField"`
	Transform   *TransformSpec `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// FieldMapping translates one template version's field IDs to one portal's
// field names. TemplateID and PortalID are fixed at creation.
type FieldMapping struct {
	ID         string                    `json:"id"`
	TemplateID string                    `json:"templateId"`
	PortalID   string                    `json:"portalId"`
	Mappings   map[string]PortalFieldRef `json:"mappings"`
	CreatedBy  string                    `json:"createdBy"`
	UpdatedBy  string                    `json:"updatedBy,omitempty"`
	CreatedAt  time.Time                 `json:"createdAt"`
	UpdatedAt  time.Time                 `json:"updatedAt"`
	DeletedAt  *time.Time                `json:"-"`
	DeletedBy  string                    `json:"-"`
}

// Resolve returns the portal target of an internal field.
func (m *FieldMapping) Resolve(fieldID string) (PortalFieldRef, bool) {
	if m == nil {
		return PortalFieldRef{}, false
	}
	ref, ok := m.Mappings[fieldID]
	return ref, ok
}

// MappingUpdate is the body of an update request. TemplateID and PortalID are
// accepted only so that attempts to change them can be rejected explicitly.
type MappingUpdate struct {
	Mappings   map[string]PortalFieldRef `json:"mappings,omitempty"`
	TemplateID *string                   `json:"templateId,omitempty"`
	PortalID   *string                   `json:"portalId,omitempty"`
}

// Clone returns a deep copy of the mapping.
func (m *FieldMapping) Clone() *FieldMapping {
	if m == nil {
		return nil
	}
	c := *m
	c.Mappings = CloneMappings(m.Mappings)
	if m.DeletedAt != nil {
		d := *m.DeletedAt
		c.DeletedAt = &d
	}
	return &c
}

// CloneMappings deep-copies a mapping table.
func CloneMappings(in map[string]PortalFieldRef) map[string]PortalFieldRef {
	if in == nil {
		return nil
	}
	out := make(map[string]PortalFieldRef, len(in))
	for k, v := range in {
		if v.Transform != nil {
			t := *v.Transform
			if t.Table != nil {
				table := make(map[string]string, len(t.Table))
				for tk, tv := range t.Table {
					table[tk] = tv
				}
				t.Table = table
			}
			v.Transform = &t
		}
		out[k] = v
	}
	return out
}

// Portal is an external government portal that mappings can target.
type Portal struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	BaseURL   string    `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
}

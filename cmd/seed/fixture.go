package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"casefiling/backend/internal/repository"
	"casefiling/backend/internal/services"
	"casefiling/backend/pkg/apperr"
	"casefiling/backend/pkg/models"
)

// Fixture is the YAML document loaded by the seed command. Templates are
// referred to by Key from mappings.
type Fixture struct {
	Portals   []models.Portal   `yaml:"portals"`
	Templates []TemplateFixture `yaml:"templates"`
	Mappings  []MappingFixture  `yaml:"mappings"`
}

type TemplateFixture struct {
	Key        string                    `yaml:"key"`
	Publish    bool                      `yaml:"publish"`
	Definition models.TemplateDefinition `yaml:"definition"`
}

type MappingFixture struct {
	Template string                           `yaml:"template"`
	Portal   string                           `yaml:"portal"`
	Mappings map[string]models.PortalFieldRef `yaml:"mappings"`
}

// LoadFixture reads and decodes a fixture file. Unknown keys are rejected so
// typos in field names surface before anything is written.
func LoadFixture(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &fx, nil
}

type seeder struct {
	portals   repository.PortalStore
	templates *services.TemplateService
	mappings  *services.MappingService
	logger    interface {
		Info(msg string, args ...any)
	}
}

// Summary counts what a seed run created.
type Summary struct {
	Portals   int
	Templates int
	Mappings  int
	// TemplateIDs maps fixture keys to the version IDs created for them.
	TemplateIDs map[string]string
}

// apply writes the fixture through the services so every record passes the
// same validation as API traffic. Portals that already exist and mappings
// that are already registered are skipped, so reruns only add templates.
func (s *seeder) apply(ctx context.Context, fx *Fixture, author string) (Summary, error) {
	sum := Summary{TemplateIDs: make(map[string]string, len(fx.Templates))}
	for i := range fx.Portals {
		p := fx.Portals[i]
		exists, err := s.portals.PortalExists(ctx, p.ID)
		if err != nil {
			return sum, err
		}
		if exists {
			s.logger.Info("Skipping existing portal", "id", p.ID)
			continue
		}
		if err := s.portals.CreatePortal(ctx, &p); err != nil {
			return sum, fmt.Errorf("portal %s: %w", p.ID, err)
		}
		sum.Portals++
	}

	for _, t := range fx.Templates {
		if t.Key == "" {
			return sum, fmt.Errorf("template %q has no key", t.Definition.Name)
		}
		tpl, err := s.templates.CreateTemplate(ctx, t.Definition, author)
		if err != nil {
			return sum, fmt.Errorf("template %s: %w", t.Key, err)
		}
		if t.Publish {
			if tpl, err = s.templates.PublishTemplate(ctx, tpl.ID, author); err != nil {
				return sum, fmt.Errorf("publish %s: %w", t.Key, err)
			}
		}
		sum.TemplateIDs[t.Key] = tpl.ID
		sum.Templates++
		s.logger.Info("Seeded template", "key", t.Key, "id", tpl.ID, "familyId", tpl.FamilyID, "status", tpl.Status)
	}

	for _, m := range fx.Mappings {
		templateID, ok := sum.TemplateIDs[m.Template]
		if !ok {
			return sum, fmt.Errorf("mapping references unknown template key %q", m.Template)
		}
		mapping, err := s.mappings.CreateMapping(ctx, templateID, m.Portal, m.Mappings, author)
		if apperr.IsKind(err, apperr.KindInvalidState) {
			s.logger.Info("Skipping existing mapping", "template", m.Template, "portal", m.Portal)
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("mapping %s/%s: %w", m.Template, m.Portal, err)
		}
		sum.Mappings++
		s.logger.Info("Seeded mapping", "id", mapping.ID, "template", m.Template, "portal", m.Portal)
	}
	return sum, nil
}

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"casefiling/backend/pkg/apperr"
	"casefiling/backend/pkg/models"
)

// readBody returns the raw request body. It is checked against the JSON
// schema before being decoded so type mistakes are reported per property.
func readBody(c echo.Context) ([]byte, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	return raw, nil
}

func decode(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.Validation("request body is not valid JSON: " + err.Error())
	}
	return nil
}

// CreateTemplate stores a new DRAFT template family at version 1
// (POST /api/v1/templates)
func (s *Server) CreateTemplate(c echo.Context) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	if s.Schemas != nil {
		if err := s.Schemas.ValidateDefinition(raw); err != nil {
			return err
		}
	}
	var def models.TemplateDefinition
	if err := decode(raw, &def); err != nil {
		return err
	}

	tpl, err := s.Templates.CreateTemplate(c.Request().Context(), def, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tpl)
}

// GetTemplate returns a template by version id, or the latest published
// version when given a family id
// (GET /api/v1/templates/:id)
func (s *Server) GetTemplate(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	tpl, err := s.Templates.ResolveTemplate(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tpl)
}

// UpdateTemplate edits a DRAFT in place or appends a new version
// (PATCH /api/v1/templates/:id?createNewVersion=true)
func (s *Server) UpdateTemplate(c echo.Context) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	var createNewVersion *bool
	if err := runtime.BindQueryParameter("form", true, false, "createNewVersion", c.QueryParams(), &createNewVersion); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid format for parameter createNewVersion: "+err.Error())
	}

	raw, err := readBody(c)
	if err != nil {
		return err
	}
	if s.Schemas != nil {
		if err := s.Schemas.ValidatePatch(raw); err != nil {
			return err
		}
	}
	var patch models.TemplatePatch
	if err := decode(raw, &patch); err != nil {
		return err
	}

	tpl, err := s.Templates.UpdateTemplate(c.Request().Context(), id, patch, userID,
		createNewVersion != nil && *createNewVersion)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tpl)
}

// PublishTemplate moves a DRAFT to PUBLISHED
// (POST /api/v1/templates/:id/publish)
func (s *Server) PublishTemplate(c echo.Context) error {
	return s.transition(c, s.Templates.PublishTemplate)
}

// ArchiveTemplate retires a template version
// (POST /api/v1/templates/:id/archive)
func (s *Server) ArchiveTemplate(c echo.Context) error {
	return s.transition(c, s.Templates.ArchiveTemplate)
}

func (s *Server) transition(c echo.Context, apply func(ctx context.Context, id, userID string) (*models.FormTemplate, error)) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	tpl, err := apply(c.Request().Context(), id, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tpl)
}

// ListVersions returns every version of a family, oldest first
// (GET /api/v1/template-families/:id/versions)
func (s *Server) ListVersions(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	versions, err := s.Templates.ListVersions(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, versions)
}

// GetCurrentPublished returns the highest PUBLISHED version of a family
// (GET /api/v1/template-families/:id/current)
func (s *Server) GetCurrentPublished(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	tpl, err := s.Templates.GetCurrentPublished(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tpl)
}

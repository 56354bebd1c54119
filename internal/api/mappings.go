package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"casefiling/backend/pkg/models"
)

// CreateMappingRequest is the body of POST /api/v1/mappings.
type CreateMappingRequest struct {
	TemplateID string                           `json:"templateId"`
	PortalID   string                           `json:"portalId"`
	Mappings   map[string]models.PortalFieldRef `json:"mappings"`
}

// CreateMapping registers how a template's fields map onto a portal
// (POST /api/v1/mappings)
func (s *Server) CreateMapping(c echo.Context) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	var req CreateMappingRequest
	if err := decode(raw, &req); err != nil {
		return err
	}

	m, err := s.Mappings.CreateMapping(c.Request().Context(), req.TemplateID, req.PortalID, req.Mappings, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

// GetMapping returns an active mapping
// (GET /api/v1/mappings/:id)
func (s *Server) GetMapping(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	m, err := s.Mappings.GetMapping(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// ListTemplateMappings returns the active mappings of a template version
// (GET /api/v1/templates/:id/mappings)
func (s *Server) ListTemplateMappings(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	list, err := s.Mappings.ListMappings(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*models.FieldMapping{}
	}
	return c.JSON(http.StatusOK, list)
}

// UpdateMapping replaces the field mappings. templateId and portalId may be
// echoed back but never changed.
// (PATCH /api/v1/mappings/:id)
func (s *Server) UpdateMapping(c echo.Context) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	var upd models.MappingUpdate
	if err := decode(raw, &upd); err != nil {
		return err
	}

	m, err := s.Mappings.UpdateMapping(c.Request().Context(), id, upd, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// DeleteMapping soft-deletes a mapping
// (DELETE /api/v1/mappings/:id)
func (s *Server) DeleteMapping(c echo.Context) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.Mappings.DeleteMapping(c.Request().Context(), id, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/casaplus/listing-service/internal/api/dto"
	"github.com/casaplus/listing-service/internal/service"
	apperrors "github.com/casaplus/listing-service/pkg/util"
)

// PropertiesHandler manages listing endpoints.
type PropertiesHandler struct {
	service *service.PropertyService
}

// NewPropertiesHandler constructs handler.
func NewPropertiesHandler(propertyService *service.PropertyService) *PropertiesHandler {
	return &PropertiesHandler{service: propertyService}
}

// List GET /api/properties.
func (h *PropertiesHandler) List(c *fiber.Ctx) error {
	query, err := parsePropertyQuery(c)
	if err != nil {
		return err
	}
	properties, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": propertyResponses(properties)})
}

// Featured GET /api/properties/featured.
func (h *PropertiesHandler) Featured(c *fiber.Ctx) error {
	properties, err := h.service.ListFeatured(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": propertyResponses(properties)})
}

// Deleted GET /api/properties/deleted.
func (h *PropertiesHandler) Deleted(c *fiber.Ctx) error {
	properties, err := h.service.ListDeleted(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": propertyResponses(properties)})
}

// Get GET /api/properties/:id.
func (h *PropertiesHandler) Get(c *fiber.Ctx) error {
	property, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": propertyResponse(property)})
}

// Create POST /api/properties.
func (h *PropertiesHandler) Create(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("multipart form with images is required", map[string]any{"field": imagesField})
	}
	input, err := propertyInputFromForm(form)
	if err != nil {
		return err
	}

	property, err := h.service.Create(c.UserContext(), userID, input, imageUploads(form))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": propertyResponse(property)})
}

// Update PUT /api/properties/:id. Accepts JSON or multipart; images in a
// multipart body replace the current set. Ownership is checked before the
// body is parsed.
func (h *PropertiesHandler) Update(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.service.AuthorizeOwner(c.UserContext(), c.Params("id"), userID); err != nil {
		return err
	}

	var (
		patch  service.PropertyPatch
		images []service.ImageUpload
	)
	switch {
	case isMultipart(c):
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewValidationError("invalid multipart form", nil)
		}
		if patch, err = propertyPatchFromForm(form); err != nil {
			return err
		}
		images = imageUploads(form)
	case len(c.Body()) > 0:
		var req dto.PropertyUpdateRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		patch = propertyPatchFromJSON(req)
	}

	property, err := h.service.Update(c.UserContext(), c.Params("id"), userID, patch, images)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": propertyResponse(property)})
}

// Delete DELETE /api/properties/:id. The reason may come in the body or as
// the deleteReason query parameter.
func (h *PropertiesHandler) Delete(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.service.AuthorizeOwner(c.UserContext(), c.Params("id"), userID); err != nil {
		return err
	}
	reason := c.Query("deleteReason")
	if len(c.Body()) > 0 {
		var req dto.DeletePropertyRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		if strings.TrimSpace(req.DeleteReason) != "" {
			reason = req.DeleteReason
		}
	}

	property, err := h.service.SoftDelete(c.UserContext(), c.Params("id"), userID, reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": propertyResponse(property)})
}

// UpdatePhysicalVisits PUT /api/properties/:id/physical-visits.
func (h *PropertiesHandler) UpdatePhysicalVisits(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req dto.PhysicalVisitsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.PhysicalVisits == nil {
		return apperrors.NewValidationError("physicalVisits is required", map[string]any{"field": "physicalVisits"})
	}

	property, err := h.service.UpdatePhysicalVisits(c.UserContext(), c.Params("id"), userID, *req.PhysicalVisits)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": propertyResponse(property)})
}

func parsePropertyQuery(c *fiber.Ctx) (service.PropertyQuery, error) {
	query := service.PropertyQuery{
		Type:         c.Query("type"),
		PropertyType: c.Query("propertyType"),
		Location:     c.Query("location"),
		Estado:       c.Query("estado"),
		Municipio:    c.Query("municipio"),
		Page:         parseInt(c.Query("page"), 1),
		PageSize:     parseInt(c.Query("pageSize"), 0),
	}
	var err error
	if query.MinPrice, err = parseFloatParam("minPrice", c.Query("minPrice")); err != nil {
		return query, err
	}
	if query.MaxPrice, err = parseFloatParam("maxPrice", c.Query("maxPrice")); err != nil {
		return query, err
	}
	if query.IsFeatured, err = parseBoolParam("isFeatured", c.Query("isFeatured")); err != nil {
		return query, err
	}
	return query, nil
}

package handlers

import (
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/casaplus/listing-service/internal/api/dto"
	"github.com/casaplus/listing-service/internal/auth"
	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/service"
	apperrors "github.com/casaplus/listing-service/pkg/util"
)

const imagesField = "images"

func currentUserID(c *fiber.Ctx) (string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return "", apperrors.NewUnauthorized("user required")
	}
	return principal.UserID(), nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(string(c.Request().Header.ContentType())), fiber.MIMEMultipartForm)
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseFloatParam(name, val string) (*float64, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil, apperrors.NewValidationError(name+" must be a number", map[string]any{"field": name})
	}
	return &parsed, nil
}

func parseIntParam(name, val string) (*int, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return nil, apperrors.NewValidationError(name+" must be an integer", map[string]any{"field": name})
	}
	return &parsed, nil
}

func parseBoolParam(name, val string) (*bool, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return nil, apperrors.NewValidationError(name+" must be true or false", map[string]any{"field": name})
	}
	return &parsed, nil
}

// formValues reads the first value of each multipart field.
type formValues map[string][]string

func (f formValues) get(name string) string {
	if vals := f[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func (f formValues) optional(name string) *string {
	vals, ok := f[name]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := vals[0]
	return &v
}

func propertyInputFromForm(form *multipart.Form) (service.PropertyInput, error) {
	values := formValues(form.Value)
	input := service.PropertyInput{
		Title:         values.get("title"),
		Description:   values.get("description"),
		CalleYNumero:  values.get(domain.FieldCalleYNumero),
		Colonia:       values.get(domain.FieldColonia),
		CodigoPostal:  values.get(domain.FieldCodigoPostal),
		Estado:        values.get(domain.FieldEstado),
		Municipio:     values.get(domain.FieldMunicipio),
		Type:          domain.ListingType(strings.TrimSpace(values.get("type"))),
		PropertyType:  domain.PropertyType(strings.TrimSpace(values.get("propertyType"))),
		ContactNumber: values.get("contactNumber"),
		IsFeatured:    strings.TrimSpace(values.get("isFeatured")) == "true",
	}

	var err error
	if input.Price, err = parseFloatParam("price", values.get("price")); err != nil {
		return input, err
	}
	if input.Bedrooms, err = parseIntParam("bedrooms", values.get("bedrooms")); err != nil {
		return input, err
	}
	if input.Bathrooms, err = parseFloatParam("bathrooms", values.get("bathrooms")); err != nil {
		return input, err
	}
	if input.SquareMeters, err = parseFloatParam("squaremeters", values.get("squaremeters")); err != nil {
		return input, err
	}
	return input, nil
}

func propertyPatchFromForm(form *multipart.Form) (service.PropertyPatch, error) {
	values := formValues(form.Value)
	patch := service.PropertyPatch{
		Title:         values.optional("title"),
		Description:   values.optional("description"),
		CalleYNumero:  values.optional(domain.FieldCalleYNumero),
		Colonia:       values.optional(domain.FieldColonia),
		CodigoPostal:  values.optional(domain.FieldCodigoPostal),
		Estado:        values.optional(domain.FieldEstado),
		Municipio:     values.optional(domain.FieldMunicipio),
		ContactNumber: values.optional("contactNumber"),
	}
	if v := values.optional("type"); v != nil {
		t := domain.ListingType(strings.TrimSpace(*v))
		patch.Type = &t
	}
	if v := values.optional("propertyType"); v != nil {
		t := domain.PropertyType(strings.TrimSpace(*v))
		patch.PropertyType = &t
	}

	var err error
	if patch.Price, err = parseFloatParam("price", values.get("price")); err != nil {
		return patch, err
	}
	if patch.Bedrooms, err = parseIntParam("bedrooms", values.get("bedrooms")); err != nil {
		return patch, err
	}
	if patch.Bathrooms, err = parseFloatParam("bathrooms", values.get("bathrooms")); err != nil {
		return patch, err
	}
	if patch.SquareMeters, err = parseFloatParam("squaremeters", values.get("squaremeters")); err != nil {
		return patch, err
	}
	if patch.IsFeatured, err = parseBoolParam("isFeatured", values.get("isFeatured")); err != nil {
		return patch, err
	}
	return patch, nil
}

func propertyPatchFromJSON(req dto.PropertyUpdateRequest) service.PropertyPatch {
	return service.PropertyPatch{
		Title:         req.Title,
		Description:   req.Description,
		Price:         req.Price,
		CalleYNumero:  req.CalleYNumero,
		Colonia:       req.Colonia,
		CodigoPostal:  req.CodigoPostal,
		Estado:        req.Estado,
		Municipio:     req.Municipio,
		Bedrooms:      req.Bedrooms,
		Bathrooms:     req.Bathrooms,
		SquareMeters:  req.SquareMeters,
		Type:          req.Type,
		PropertyType:  req.PropertyType,
		ContactNumber: req.ContactNumber,
		IsFeatured:    req.IsFeatured,
	}
}

func imageUploads(form *multipart.Form) []service.ImageUpload {
	files := form.File[imagesField]
	uploads := make([]service.ImageUpload, 0, len(files))
	for _, fh := range files {
		fh := fh
		uploads = append(uploads, service.ImageUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}

func propertyResponse(p *domain.Property) dto.PropertyResponse {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return dto.PropertyResponse{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		Price:          p.Price,
		CalleYNumero:   p.Address.CalleYNumero,
		Colonia:        p.Address.Colonia,
		CodigoPostal:   p.Address.CodigoPostal,
		Estado:         p.Address.Estado,
		Municipio:      p.Address.Municipio,
		Bedrooms:       p.Bedrooms,
		Bathrooms:      p.Bathrooms,
		SquareMeters:   p.SquareMeters,
		Images:         images,
		Type:           p.Type,
		PropertyType:   p.PropertyType,
		ContactNumber:  p.ContactNumber,
		IsFeatured:     p.IsFeatured,
		User:           p.UserID,
		Views:          p.Views,
		PhysicalVisits: p.PhysicalVisits,
		Status:         p.Status,
		DeletedAt:      p.DeletedAt,
		DeleteReason:   p.DeleteReason,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func propertyResponses(properties []domain.Property) []dto.PropertyResponse {
	resp := make([]dto.PropertyResponse, 0, len(properties))
	for i := range properties {
		resp = append(resp, propertyResponse(&properties[i]))
	}
	return resp
}

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

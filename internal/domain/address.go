package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Address is the decomposed listing location.
type Address struct {
	CalleYNumero string
	Colonia      string
	CodigoPostal string
	Estado       string
	Municipio    string
}

// Location identifies the area a listing belongs to for grouping.
type Location struct {
	Estado    string `json:"estado"`
	Municipio string `json:"municipio"`
}

// Location returns the grouping key of the address.
func (a Address) Location() Location {
	return Location{Estado: a.Estado, Municipio: a.Municipio}
}

// Address field names as exposed in the API.
const (
	FieldCalleYNumero = "calleYNumero"
	FieldColonia      = "colonia"
	FieldCodigoPostal = "codigoPostal"
	FieldEstado       = "estado"
	FieldMunicipio    = "municipio"
)

const legacyPlaceholder = "sin especificar"

var (
	disallowedChars = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRuns       = regexp.MustCompile(`\s+`)
	postalCode      = regexp.MustCompile(`\b\d{5}\b`)
)

// NormalizeAddressText folds diacritics, lower-cases and strips every
// character that is not a letter, digit or whitespace.
func NormalizeAddressText(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = disallowedChars.ReplaceAllString(folded, "")
	folded = spaceRuns.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}

// IsAlphanumericText reports whether s holds only [a-z0-9] once spaces are
// removed. Empty input is not alphanumeric.
func IsAlphanumericText(s string) bool {
	compact := strings.ReplaceAll(s, " ", "")
	if compact == "" {
		return false
	}
	for _, r := range compact {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// Normalize returns the address with every sub-field normalized.
func (a Address) Normalize() Address {
	return Address{
		CalleYNumero: NormalizeAddressText(a.CalleYNumero),
		Colonia:      NormalizeAddressText(a.Colonia),
		CodigoPostal: NormalizeAddressText(a.CodigoPostal),
		Estado:       NormalizeAddressText(a.Estado),
		Municipio:    NormalizeAddressText(a.Municipio),
	}
}

// InvalidFields returns the API names of sub-fields that are not valid
// alphanumeric text. The address must already be normalized.
func (a Address) InvalidFields() []string {
	var invalid []string
	for _, f := range a.fields() {
		if !IsAlphanumericText(f.value) {
			invalid = append(invalid, f.name)
		}
	}
	return invalid
}

func (a Address) fields() []struct{ name, value string } {
	return []struct{ name, value string }{
		{FieldCalleYNumero, a.CalleYNumero},
		{FieldColonia, a.Colonia},
		{FieldCodigoPostal, a.CodigoPostal},
		{FieldEstado, a.Estado},
		{FieldMunicipio, a.Municipio},
	}
}

// AddressFromLegacy converts the old single-string location into the
// decomposed form. Comma separated parts are read from the right as estado,
// municipio and colonia; whatever remains is the street. A five digit token
// anywhere in the string is taken as the postal code.
func AddressFromLegacy(location string) Address {
	addr := Address{
		CalleYNumero: legacyPlaceholder,
		Colonia:      legacyPlaceholder,
		CodigoPostal: "00000",
		Estado:       legacyPlaceholder,
		Municipio:    legacyPlaceholder,
	}

	if cp := postalCode.FindString(location); cp != "" {
		addr.CodigoPostal = cp
		location = strings.Replace(location, cp, "", 1)
	}

	var parts []string
	for _, part := range strings.Split(location, ",") {
		if normalized := NormalizeAddressText(part); normalized != "" {
			parts = append(parts, normalized)
		}
	}

	pop := func() (string, bool) {
		if len(parts) == 0 {
			return "", false
		}
		last := parts[len(parts)-1]
		parts = parts[:len(parts)-1]
		return last, true
	}

	if v, ok := pop(); ok {
		addr.Estado = v
	}
	if v, ok := pop(); ok {
		addr.Municipio = v
	}
	if v, ok := pop(); ok {
		addr.Colonia = v
	}
	if len(parts) > 0 {
		addr.CalleYNumero = strings.Join(parts, " ")
	}
	return addr
}

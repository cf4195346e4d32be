package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNormalizeAddressText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Av. Reforma #123", "av reforma 123"},
		{"  Ciudad de México ", "ciudad de mexico"},
		{"Peñasco\tNorte", "penasco norte"},
		{"C.P. 44100", "cp 44100"},
		{"###", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAddressText(tt.in); got != tt.want {
			t.Errorf("NormalizeAddressText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddressInvalidFields(t *testing.T) {
	addr := Address{
		CalleYNumero: "Juárez 10",
		Colonia:      "!!!",
		CodigoPostal: "44100",
		Estado:       "Jalisco",
		Municipio:    "",
	}.Normalize()

	invalid := addr.InvalidFields()
	if len(invalid) != 2 || invalid[0] != FieldColonia || invalid[1] != FieldMunicipio {
		t.Fatalf("InvalidFields = %v, want [colonia municipio]", invalid)
	}
	if addr.CalleYNumero != "juarez 10" {
		t.Errorf("CalleYNumero = %q", addr.CalleYNumero)
	}
}

func TestAddressFromLegacy(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Address
	}{
		{
			name: "full",
			in:   "Calle 5 #12, Centro, Guadalajara, Jalisco 44100",
			want: Address{CalleYNumero: "calle 5 12", Colonia: "centro", CodigoPostal: "44100", Estado: "jalisco", Municipio: "guadalajara"},
		},
		{
			name: "city and state",
			in:   "Zapopan, Jalisco",
			want: Address{CalleYNumero: legacyPlaceholder, Colonia: legacyPlaceholder, CodigoPostal: "00000", Estado: "jalisco", Municipio: "zapopan"},
		},
		{
			name: "extra street parts",
			in:   "Torre A, Piso 3, Del Valle, Benito Juárez, CDMX",
			want: Address{CalleYNumero: "torre a piso 3", Colonia: "del valle", CodigoPostal: "00000", Estado: "cdmx", Municipio: "benito juarez"},
		},
		{
			name: "empty",
			in:   "",
			want: Address{CalleYNumero: legacyPlaceholder, Colonia: legacyPlaceholder, CodigoPostal: "00000", Estado: legacyPlaceholder, Municipio: legacyPlaceholder},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddressFromLegacy(tt.in)
			if got != tt.want {
				t.Errorf("AddressFromLegacy(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if invalid := got.InvalidFields(); len(invalid) != 0 {
				t.Errorf("legacy conversion produced invalid fields %v", invalid)
			}
		})
	}
}

func TestPropertySoftDelete(t *testing.T) {
	p := &Property{Status: PropertyStatusActive}
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := p.SoftDelete("", at); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if p.Status != PropertyStatusDeleted {
		t.Errorf("Status = %q", p.Status)
	}
	if p.DeletedAt == nil || !p.DeletedAt.Equal(at) {
		t.Errorf("DeletedAt = %v", p.DeletedAt)
	}
	if p.DeleteReason == nil || *p.DeleteReason != DeleteReasonOther {
		t.Errorf("DeleteReason = %v, want other", p.DeleteReason)
	}

	if err := p.SoftDelete(DeleteReasonCompleted, at); !errors.Is(err, ErrAlreadyDeleted) {
		t.Fatalf("second SoftDelete err = %v, want ErrAlreadyDeleted", err)
	}
	if *p.DeleteReason != DeleteReasonOther {
		t.Error("second SoftDelete must not overwrite the reason")
	}
}

func TestPropertyApplyDefaults(t *testing.T) {
	p := &Property{}
	p.ApplyDefaults()
	if p.Type != ListingTypeSale || p.PropertyType != PropertyTypeHouse || p.Status != PropertyStatusActive {
		t.Errorf("unexpected defaults %+v", p)
	}
	if p.Images == nil {
		t.Error("Images should be non-nil")
	}
}

func TestEnums(t *testing.T) {
	if !ListingTypeRent.Valid() || ListingType("lease").Valid() {
		t.Error("ListingType.Valid mismatch")
	}
	if !PropertyTypeLand.Valid() || PropertyType("house").Valid() {
		t.Error("PropertyType.Valid is case sensitive")
	}
	if !DeleteReasonCancelled.Valid() || DeleteReason("sold").Valid() {
		t.Error("DeleteReason.Valid mismatch")
	}
	if !RoleAdmin.Valid() || Role("root").Valid() {
		t.Error("Role.Valid mismatch")
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(0, 0); got != 0 || math.IsNaN(got) {
		t.Errorf("Percentage(0,0) = %v, want 0", got)
	}
	if got := Percentage(3, 4); got != 75 {
		t.Errorf("Percentage(3,4) = %v, want 75", got)
	}
}

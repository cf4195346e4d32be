package service

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/events"
	apperrors "github.com/casaplus/listing-service/pkg/util"
)

func TestCreateNormalizesAndStoresImages(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "owner@example.com")

	var created []events.Event
	env.dispatcher.Subscribe(events.EventPropertyCreated, func(_ context.Context, e events.Event) error {
		created = append(created, e)
		return nil
	})

	p, err := env.properties.Create(context.Background(), owner.ID, validInput(),
		[]ImageUpload{pngUpload("Front Door.PNG"), pngUpload("back.png")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if p.UserID != owner.ID {
		t.Errorf("owner = %q, want %q", p.UserID, owner.ID)
	}
	if p.Status != domain.PropertyStatusActive || p.Views != 0 || p.PhysicalVisits != 0 {
		t.Errorf("unexpected initial state %+v", p)
	}
	want := domain.Address{
		CalleYNumero: "av universidad 123",
		Colonia:      "santa cruz atoyac",
		CodigoPostal: "03310",
		Estado:       "ciudad de mexico",
		Municipio:    "benito juarez",
	}
	if p.Address != want {
		t.Errorf("address = %+v, want %+v", p.Address, want)
	}
	if len(p.Images) != 2 {
		t.Fatalf("images = %v, want 2", p.Images)
	}
	for _, url := range p.Images {
		if _, err := os.Stat(filepath.Join(env.images.Dir(), filepath.Base(url))); err != nil {
			t.Errorf("image %s not stored: %v", url, err)
		}
	}
	if len(created) != 1 || created[0].PropertyID != p.ID {
		t.Errorf("events = %+v, want one property_created", created)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "owner@example.com")

	tests := []struct {
		name   string
		mutate func(*PropertyInput)
		images []ImageUpload
	}{
		{"missing title", func(in *PropertyInput) { in.Title = " " }, nil},
		{"missing price", func(in *PropertyInput) { in.Price = nil }, nil},
		{"missing estado", func(in *PropertyInput) { in.Estado = "" }, nil},
		{"symbols only colonia", func(in *PropertyInput) { in.Colonia = "#$%" }, nil},
		{"negative price", func(in *PropertyInput) { in.Price = float(-1) }, nil},
		{"zero square meters", func(in *PropertyInput) { in.SquareMeters = float(0) }, nil},
		{"negative bedrooms", func(in *PropertyInput) { n := -1; in.Bedrooms = &n }, nil},
		{"unknown type", func(in *PropertyInput) { in.Type = "lease" }, nil},
		{"unknown property type", func(in *PropertyInput) { in.PropertyType = "Castle" }, nil},
		{"no images", nil, []ImageUpload{}},
		{"too many images", nil, []ImageUpload{
			pngUpload("1.png"), pngUpload("2.png"), pngUpload("3.png"),
			pngUpload("4.png"), pngUpload("5.png"), pngUpload("6.png"),
		}},
		{"not an image", nil, []ImageUpload{{
			Filename: "notes.txt", ContentType: "text/plain", Size: 4,
			Open: pngUpload("x").Open,
		}}},
		{"image too large", nil, []ImageUpload{{
			Filename: "huge.png", ContentType: "image/png", Size: 4096,
			Open: pngUpload("x").Open,
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			if tt.mutate != nil {
				tt.mutate(&input)
			}
			images := tt.images
			if images == nil {
				images = []ImageUpload{pngUpload("front.png")}
			}
			_, err := env.properties.Create(context.Background(), owner.ID, input, images)
			if !apperrors.HasCode(err, apperrors.CodeValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}

	entries, err := os.ReadDir(env.images.Dir())
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected listings left %d files behind", len(entries))
	}
}

func TestCreateRemovesImagesWhenUploadFails(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "owner@example.com")

	broken := pngUpload("broken.png")
	broken.Open = func() (io.ReadCloser, error) { return nil, errors.New("disk gone") }

	_, err := env.properties.Create(context.Background(), owner.ID, validInput(),
		[]ImageUpload{pngUpload("ok.png"), broken})
	if !apperrors.HasCode(err, apperrors.CodeInternal) {
		t.Fatalf("err = %v, want internal", err)
	}
	entries, _ := os.ReadDir(env.images.Dir())
	if len(entries) != 0 {
		t.Errorf("partial upload left %d files behind", len(entries))
	}
}

func TestGetCountsViews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "owner@example.com")
	p := env.createListing(t, owner.ID, nil)

	var viewed []events.PropertyViewedPayload
	env.dispatcher.Subscribe(events.EventPropertyViewed, func(_ context.Context, e events.Event) error {
		viewed = append(viewed, e.Payload.(events.PropertyViewedPayload))
		return nil
	})

	var last *domain.Property
	for i := 0; i < 3; i++ {
		got, err := env.properties.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		last = got
	}
	if last.Views != 3 {
		t.Errorf("views = %d, want 3", last.Views)
	}
	if len(viewed) != 3 || viewed[2].Views != 3 {
		t.Errorf("view events = %+v, want three ending at 3", viewed)
	}

	if _, err := env.properties.Get(ctx, "missing"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("missing err = %v, want not found", err)
	}
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "owner@example.com")
	stranger := env.register(t, "stranger@example.com")
	p := env.createListing(t, owner.ID, nil)
	oldImage := filepath.Join(env.images.Dir(), filepath.Base(p.Images[0]))

	t.Run("non-owner is forbidden before validation", func(t *testing.T) {
		bad := -10.0
		_, err := env.properties.Update(ctx, p.ID, stranger.ID, PropertyPatch{Price: &bad}, nil)
		if !apperrors.HasCode(err, apperrors.CodeForbidden) {
			t.Fatalf("err = %v, want forbidden", err)
		}
	})

	t.Run("missing listing", func(t *testing.T) {
		_, err := env.properties.Update(ctx, "missing", owner.ID, PropertyPatch{}, nil)
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
	})

	t.Run("invalid patch", func(t *testing.T) {
		estado := "???"
		_, err := env.properties.Update(ctx, p.ID, owner.ID, PropertyPatch{Estado: &estado}, nil)
		if !apperrors.HasCode(err, apperrors.CodeValidation) {
			t.Fatalf("err = %v, want validation", err)
		}
	})

	t.Run("owner patch", func(t *testing.T) {
		title := "Casa remodelada"
		municipio := "Coyoacán"
		rent := domain.ListingTypeRent
		updated, err := env.properties.Update(ctx, p.ID, owner.ID, PropertyPatch{
			Title:     &title,
			Municipio: &municipio,
			Type:      &rent,
		}, []ImageUpload{pngUpload("new.png")})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.Title != title || updated.Address.Municipio != "coyoacan" || updated.Type != rent {
			t.Errorf("updated = %+v", updated)
		}
		if len(updated.Images) != 1 || updated.Images[0] == p.Images[0] {
			t.Errorf("images = %v, want replaced", updated.Images)
		}
		if _, err := os.Stat(oldImage); !os.IsNotExist(err) {
			t.Errorf("old image still present: %v", err)
		}

		stored, err := env.store.Properties.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if stored.Views != 0 || stored.UserID != owner.ID || stored.Status != domain.PropertyStatusActive {
			t.Errorf("immutable fields changed: %+v", stored)
		}
	})

	t.Run("deleted listing conflicts", func(t *testing.T) {
		if _, err := env.properties.SoftDelete(ctx, p.ID, owner.ID, ""); err != nil {
			t.Fatalf("SoftDelete: %v", err)
		}
		title := "again"
		_, err := env.properties.Update(ctx, p.ID, owner.ID, PropertyPatch{Title: &title}, nil)
		if !apperrors.HasCode(err, apperrors.CodeConflict) {
			t.Fatalf("err = %v, want conflict", err)
		}
	})
}

func TestSoftDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "owner@example.com")
	stranger := env.register(t, "stranger@example.com")
	p := env.createListing(t, owner.ID, nil)
	other := env.createListing(t, owner.ID, nil)

	if _, err := env.properties.SoftDelete(ctx, p.ID, stranger.ID, "completed"); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("stranger err = %v, want forbidden", err)
	}
	if _, err := env.properties.SoftDelete(ctx, p.ID, owner.ID, "sold-out"); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("unknown reason err = %v, want validation", err)
	}
	if _, err := env.properties.SoftDelete(ctx, "missing", owner.ID, ""); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("missing err = %v, want not found", err)
	}

	deleted, err := env.properties.SoftDelete(ctx, p.ID, owner.ID, "completed")
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if deleted.Status != domain.PropertyStatusDeleted || deleted.DeletedAt == nil ||
		deleted.DeleteReason == nil || *deleted.DeleteReason != domain.DeleteReasonCompleted {
		t.Fatalf("deleted = %+v", deleted)
	}

	if _, err := env.properties.SoftDelete(ctx, p.ID, owner.ID, "completed"); !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("second delete err = %v, want conflict", err)
	}

	active, err := env.properties.List(ctx, PropertyQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 1 || active[0].ID != other.ID {
		t.Errorf("active = %v, want only %s", active, other.ID)
	}

	gone, err := env.properties.ListDeleted(ctx)
	if err != nil {
		t.Fatalf("ListDeleted: %v", err)
	}
	if len(gone) != 1 || gone[0].ID != p.ID {
		t.Errorf("deleted list = %v, want %s", gone, p.ID)
	}

	// the record is kept and still readable by id
	if _, err := env.properties.Get(ctx, p.ID); err != nil {
		t.Errorf("Get deleted: %v", err)
	}
}

func TestSoftDeleteDefaultsReason(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "owner@example.com")
	p := env.createListing(t, owner.ID, nil)

	deleted, err := env.properties.SoftDelete(context.Background(), p.ID, owner.ID, "")
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if *deleted.DeleteReason != domain.DeleteReasonOther {
		t.Errorf("reason = %q, want other", *deleted.DeleteReason)
	}
}

func TestUpdatePhysicalVisits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "owner@example.com")
	agent := env.register(t, "agent@example.com")
	p := env.createListing(t, owner.ID, nil)

	var payloads []events.PhysicalVisitsUpdatedPayload
	env.dispatcher.Subscribe(events.EventPhysicalVisitsUpdated, func(_ context.Context, e events.Event) error {
		payloads = append(payloads, e.Payload.(events.PhysicalVisitsUpdatedPayload))
		return nil
	})

	if _, err := env.properties.UpdatePhysicalVisits(ctx, p.ID, agent.ID, -1); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("negative err = %v, want validation", err)
	}
	if _, err := env.properties.UpdatePhysicalVisits(ctx, "missing", agent.ID, 1); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("missing err = %v, want not found", err)
	}

	updated, err := env.properties.UpdatePhysicalVisits(ctx, p.ID, agent.ID, 7)
	if err != nil {
		t.Fatalf("UpdatePhysicalVisits: %v", err)
	}
	if updated.PhysicalVisits != 7 {
		t.Errorf("physical visits = %d, want 7", updated.PhysicalVisits)
	}
	if len(payloads) != 1 || payloads[0].Previous != 0 || payloads[0].Current != 7 {
		t.Errorf("payloads = %+v", payloads)
	}
}

func TestListFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "owner@example.com")

	cheapRent := env.createListing(t, owner.ID, func(in *PropertyInput) {
		in.Type = domain.ListingTypeRent
		in.Price = float(8000)
	})
	pricyRent := env.createListing(t, owner.ID, func(in *PropertyInput) {
		in.Type = domain.ListingTypeRent
		in.Price = float(20000)
		in.IsFeatured = true
		in.Estado = "Jalisco"
		in.Municipio = "Zapopan"
	})
	sale := env.createListing(t, owner.ID, func(in *PropertyInput) {
		in.Type = domain.ListingTypeSale
		in.Price = float(10000)
	})
	deletedRent := env.createListing(t, owner.ID, func(in *PropertyInput) {
		in.Type = domain.ListingTypeRent
		in.Price = float(10000)
	})
	if _, err := env.properties.SoftDelete(ctx, deletedRent.ID, owner.ID, "cancelled"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	ids := func(ps []domain.Property) []string {
		out := make([]string, 0, len(ps))
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}

	tests := []struct {
		name  string
		query PropertyQuery
		want  []string
	}{
		{"rent within bounds", PropertyQuery{Type: "rent", MinPrice: float(8000), MaxPrice: float(20000)},
			[]string{pricyRent.ID, cheapRent.ID}},
		{"inclusive upper bound", PropertyQuery{Type: "rent", MaxPrice: float(8000)}, []string{cheapRent.ID}},
		{"location case insensitive", PropertyQuery{Location: "JALISCO"}, []string{pricyRent.ID}},
		{"municipio partial", PropertyQuery{Municipio: "Zapo"}, []string{pricyRent.ID}},
		{"featured only", PropertyQuery{IsFeatured: func() *bool { b := true; return &b }()}, []string{pricyRent.ID}},
		{"property type", PropertyQuery{PropertyType: "Land"}, []string{}},
		{"all disables type filters", PropertyQuery{Type: "all", PropertyType: "ALL"},
			[]string{sale.ID, pricyRent.ID, cheapRent.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.properties.List(ctx, tt.query)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("got %v, want %v", gotIDs, tt.want)
			}
			for i := range gotIDs {
				if gotIDs[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", gotIDs, tt.want)
				}
			}
		})
	}

	if _, err := env.properties.List(ctx, PropertyQuery{Type: "lease"}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("invalid type err = %v, want validation", err)
	}

	featured, err := env.properties.ListFeatured(ctx)
	if err != nil {
		t.Fatalf("ListFeatured: %v", err)
	}
	if len(featured) != 1 || featured[0].ID != pricyRent.ID {
		t.Errorf("featured = %v", ids(featured))
	}
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "owner@example.com")
	for i := 0; i < 3; i++ {
		env.createListing(t, owner.ID, nil)
	}

	all, err := env.properties.List(ctx, PropertyQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("unpaginated = %d, want 3", len(all))
	}

	page2, err := env.properties.List(ctx, PropertyQuery{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(page2) != 1 || page2[0].ID != all[2].ID {
		t.Errorf("page 2 = %v, want last listing", page2)
	}

	far, err := env.properties.List(ctx, PropertyQuery{Page: math.MaxInt, PageSize: 50})
	if err != nil {
		t.Fatalf("List far page: %v", err)
	}
	if len(far) != 0 {
		t.Errorf("page %d = %d listings, want none", math.MaxInt, len(far))
	}
}

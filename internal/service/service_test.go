package service

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/casaplus/listing-service/internal/config"
	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/events"
	"github.com/casaplus/listing-service/internal/repository"
	"github.com/casaplus/listing-service/internal/repository/memory"
	"github.com/casaplus/listing-service/internal/storage"
)

type testEnv struct {
	store      repository.Store
	images     *storage.LocalStore
	dispatcher events.Dispatcher
	auth       *AuthService
	properties *PropertyService
	stats      *StatisticsService
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            4,
		},
		Upload: config.UploadConfig{MaxFiles: 5, MaxFileBytes: 1024},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	images, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	dispatcher := events.NewInMemoryDispatcher()
	cfg := testConfig()

	return &testEnv{
		store:      store,
		images:     images,
		dispatcher: dispatcher,
		auth: NewAuthService(cfg, AuthDependencies{
			UserRepo:     store.Users,
			PropertyRepo: store.Properties,
			Dispatcher:   dispatcher,
		}),
		properties: NewPropertyService(cfg, PropertyDependencies{
			PropertyRepo: store.Properties,
			ImageStore:   images,
			Dispatcher:   dispatcher,
		}),
		stats: NewStatisticsService(StatisticsDependencies{StatisticsRepo: store.Statistics}),
	}
}

func (e *testEnv) register(t *testing.T, email string) *domain.User {
	t.Helper()
	user, _, err := e.auth.Register(context.Background(), email, "secret123")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user
}

func (e *testEnv) createListing(t *testing.T, ownerID string, mutate func(*PropertyInput)) *domain.Property {
	t.Helper()
	input := validInput()
	if mutate != nil {
		mutate(&input)
	}
	p, err := e.properties.Create(context.Background(), ownerID, input, []ImageUpload{pngUpload("front.png")})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return p
}

func validInput() PropertyInput {
	price := 1500000.0
	bedrooms := 3
	bathrooms := 2.5
	sqm := 120.0
	return PropertyInput{
		Title:         "Casa en Coyoacán",
		Description:   "Casa amplia con jardín",
		Price:         &price,
		CalleYNumero:  "Av. Universidad 123",
		Colonia:       "Santa Cruz Atoyac",
		CodigoPostal:  "03310",
		Estado:        "Ciudad de México",
		Municipio:     "Benito Juárez",
		Bedrooms:      &bedrooms,
		Bathrooms:     &bathrooms,
		SquareMeters:  &sqm,
		Type:          domain.ListingTypeSale,
		PropertyType:  domain.PropertyTypeHouse,
		ContactNumber: "5512345678",
	}
}

func pngUpload(name string) ImageUpload {
	body := []byte("\x89PNG fake image")
	return ImageUpload{
		Filename:    name,
		ContentType: "image/png",
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		},
	}
}

func float(v float64) *float64 { return &v }

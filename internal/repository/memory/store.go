// Package memory keeps users and listings in process memory. It backs
// STORE_DRIVER=memory and the service tests.
package memory

import (
	"sync"
	"time"

	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/repository"
)

// DB holds every record behind a single lock.
type DB struct {
	mu sync.RWMutex

	users       map[string]*domain.User
	usersByMail map[string]string
	userOrder   []string

	properties    map[string]*domain.Property
	propertyOrder []string

	now func() time.Time
}

// New returns an empty database using the wall clock.
func New() *DB {
	return &DB{
		users:       map[string]*domain.User{},
		usersByMail: map[string]string{},
		properties:  map[string]*domain.Property{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NewStore returns repositories over a fresh database.
func NewStore() repository.Store {
	return New().Store()
}

// SetClock replaces the time source used for createdAt and updatedAt.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

// Store returns the repositories sharing db.
func (db *DB) Store() repository.Store {
	return repository.Store{
		Users:      &userRepository{db: db},
		Properties: &propertyRepository{db: db},
		Statistics: &statisticsRepository{db: db},
	}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func cloneProperty(p *domain.Property) *domain.Property {
	c := *p
	c.Images = append([]string(nil), p.Images...)
	if p.DeletedAt != nil {
		at := *p.DeletedAt
		c.DeletedAt = &at
	}
	if p.DeleteReason != nil {
		reason := *p.DeleteReason
		c.DeleteReason = &reason
	}
	return &c
}

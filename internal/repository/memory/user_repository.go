package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/repository"
)

type userRepository struct {
	db *DB
}

func (r *userRepository) Create(_ context.Context, user *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.usersByMail[user.Email]; exists {
		return repository.ErrDuplicate
	}
	now := r.db.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.db.users[user.ID] = cloneUser(user)
	r.db.usersByMail[user.Email] = user.ID
	r.db.userOrder = append(r.db.userOrder, user.ID)
	return nil
}

func (r *userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	user, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.usersByMail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(r.db.users[id]), nil
}

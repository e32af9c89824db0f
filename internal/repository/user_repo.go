package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/antonykinuthia/luxliving/internal/models"
	"github.com/antonykinuthia/luxliving/internal/store"
)

// CollectionUsers is the identity collection. Messaging only reads it;
// writes happen through registration and presence updates.
const CollectionUsers = "users"

type UserRepository struct {
	store store.DocumentStore
}

func NewUserRepository(docStore store.DocumentStore) *UserRepository {
	return &UserRepository{store: docStore}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	doc, err := r.store.Create(ctx, CollectionUsers, user.ID, map[string]any{
		"email":        user.Email,
		"name":         user.Name,
		"passwordHash": user.PasswordHash,
		"role":         user.Role,
		"avatar":       user.Avatar,
		"pushToken":    user.PushToken,
		"lastActive":   time.Now().UTC().Format(store.TimeLayout),
	})
	if err != nil {
		return nil, err
	}
	return decodeUser(doc)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.store.Get(ctx, CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	return decodeUser(doc)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := store.Query{Limit: 1}.WithFilter("email", store.OpEqual, email)

	docs, _, err := r.store.List(ctx, CollectionUsers, query)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeUser(&docs[0])
}

// TouchLastActive refreshes the presence timestamp shown in chat
// headers. Best effort.
func (r *UserRepository) TouchLastActive(ctx context.Context, id string) error {
	_, err := r.store.Update(ctx, CollectionUsers, id, map[string]any{
		"lastActive": time.Now().UTC().Format(store.TimeLayout),
	})
	return err
}

func (r *UserRepository) SetPushToken(ctx context.Context, id, token string) error {
	_, err := r.store.Update(ctx, CollectionUsers, id, map[string]any{
		"pushToken": token,
	})
	return err
}

func decodeUser(doc *store.Document) (*models.User, error) {
	var user models.User
	if err := json.Unmarshal(doc.Data, &user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", doc.ID, err)
	}
	user.ID = doc.ID
	user.CreatedAt = doc.CreatedAt
	return &user, nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/yugal82/sports-screening-server/internal/cache"
	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/util"

	"go.uber.org/zap"
)

// UserStore persists user profiles
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id, name, phone, city string) (*models.User, error)
}

// ProfileService serves the signed-in user's profile through the read-through cache
type ProfileService struct {
	store  UserStore
	cache  *cache.ReadThrough[models.User]
	logger *zap.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(store UserStore, profiles *cache.ReadThrough[models.User]) *ProfileService {
	return &ProfileService{store: store, cache: profiles, logger: util.GetLogger()}
}

// UpdateProfileRequest carries the fields to change; nil fields are left as is
type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	City  *string `json:"city"`
}

// GetProfile returns the actor's profile. Cached entries never outlive the
// actor's token by more than the cache's minimum TTL.
func (s *ProfileService) GetProfile(ctx context.Context, actor *models.Actor) (*models.User, error) {
	if actor == nil {
		return nil, models.ErrUnauthorized
	}

	user, err := s.cache.Get(ctx, actor.ID, actor.TokenExpiry, func(ctx context.Context) (models.User, error) {
		u, err := s.store.GetUser(ctx, actor.ID)
		if err != nil {
			return models.User{}, err
		}
		return *u, nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile writes the profile and drops the cached copy
func (s *ProfileService) UpdateProfile(ctx context.Context, actor *models.Actor, req UpdateProfileRequest) (*models.User, error) {
	if actor == nil {
		return nil, models.ErrUnauthorized
	}

	current, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	name, phone, city := current.Name, current.Phone, current.City
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, models.Validationf("name cannot be empty")
		}
	}
	if req.Phone != nil {
		phone = strings.TrimSpace(*req.Phone)
		if len(phone) > 20 {
			return nil, models.Validationf("phone is too long")
		}
	}
	if req.City != nil {
		city = strings.TrimSpace(*req.City)
	}

	updated, err := s.store.UpdateUserProfile(ctx, actor.ID, name, phone, city)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if err := s.cache.Invalidate(ctx, actor.ID); err != nil {
		// a stale entry expires with the token at the latest
		s.logger.Warn("Failed to invalidate cached profile",
			zap.Bool("degraded", true),
			zap.String("user_id", actor.ID),
			zap.Error(err))
	}
	return updated, nil
}

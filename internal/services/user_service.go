package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/models"
	"gorm.io/gorm"
)

type UserService struct {
	db    *gorm.DB
	cache *cache.Cache
}

func NewUserService(db *gorm.DB, directory *cache.Cache) *UserService {
	return &UserService{db: db, cache: directory}
}

// Doctors lists active doctors by name. The list is cached when a cache is
// configured.
func (s *UserService) Doctors(ctx context.Context) ([]dto.UserResponse, error) {
	return cache.Remember(ctx, s.cache, cache.DoctorDirectoryKey, s.loadDoctors)
}

func (s *UserService) loadDoctors(ctx context.Context) ([]dto.UserResponse, error) {
	var doctors []models.User
	err := s.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", models.RoleDoctor, true).
		Order("full_name ASC").
		Find(&doctors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}

	out := make([]dto.UserResponse, 0, len(doctors))
	for i := range doctors {
		out = append(out, UserResponse(&doctors[i]))
	}
	return out, nil
}

func (s *UserService) Me(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	resp := UserResponse(&user)
	return &resp, nil
}

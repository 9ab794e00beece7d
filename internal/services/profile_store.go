package services

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/farm2market/internal/models"
)

// ProfileStore is the gorm-backed implementation of session.ProfileStore.
type ProfileStore struct {
	db *gorm.DB
}

func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// FindByPhone returns the profile row for a phone, or (nil, nil) on a miss.
func (s *ProfileStore) FindByPhone(ctx context.Context, phone string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Upsert writes the profile keyed by id with conflict target id. A unique
// violation on phone means another device won the first-save race; the
// winning row is updated and returned instead.
func (s *ProfileStore) Upsert(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"phone", "name", "role", "updated_at"}),
	}).Create(p).Error
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) || p.Phone == nil {
		return nil, err
	}

	existing, ferr := s.FindByPhone(ctx, *p.Phone)
	if ferr != nil || existing == nil {
		return nil, err
	}

	updates := map[string]any{"name": p.Name, "role": p.Role}
	if uerr := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", existing.ID).Updates(updates).Error; uerr != nil {
		return nil, uerr
	}
	existing.Name = p.Name
	existing.Role = p.Role
	return existing, nil
}

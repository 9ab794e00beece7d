package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/farm2market/internal/chat"
	"github.com/example/farm2market/internal/models"
)

// ChatStore is the gorm-backed implementation of chat.Store. Every inserted
// message is published to the live feed after the row is committed.
type ChatStore struct {
	db   *gorm.DB
	feed *chat.Feed
}

func NewChatStore(db *gorm.DB, feed *chat.Feed) *ChatStore {
	return &ChatStore{db: db, feed: feed}
}

func (s *ChatStore) ListThreadsFor(ctx context.Context, profileID uuid.UUID) ([]models.ChatThread, error) {
	var threads []models.ChatThread
	err := s.db.WithContext(ctx).
		Where("buyer_id = ? OR farmer_id = ?", profileID, profileID).
		Order("updated_at desc").
		Find(&threads).Error
	return threads, err
}

func (s *ChatStore) FindThread(ctx context.Context, buyerID, farmerID uuid.UUID, cropID *uuid.UUID) (*models.ChatThread, error) {
	query := s.db.WithContext(ctx).Where("buyer_id = ? AND farmer_id = ?", buyerID, farmerID)
	if cropID == nil {
		query = query.Where("crop_id IS NULL")
	} else {
		query = query.Where("crop_id = ?", *cropID)
	}

	var thread models.ChatThread
	err := query.First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// InsertThread creates the thread. A unique violation on the
// (buyer, farmer, crop) index means a concurrent create won; the winning
// row is fetched and returned.
func (s *ChatStore) InsertThread(ctx context.Context, t *models.ChatThread) (*models.ChatThread, error) {
	err := s.db.WithContext(ctx).Create(t).Error
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}

	existing, ferr := s.FindThread(ctx, t.BuyerID, t.FarmerID, t.CropID)
	if ferr != nil || existing == nil {
		return nil, err
	}
	return existing, nil
}

func (s *ChatStore) GetThread(ctx context.Context, id uuid.UUID) (*models.ChatThread, error) {
	var thread models.ChatThread
	err := s.db.WithContext(ctx).First(&thread, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (s *ChatStore) ListMessages(ctx context.Context, threadID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at asc, id asc").
		Find(&messages).Error
	return messages, err
}

func (s *ChatStore) InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	s.feed.Publish(*m)
	return m, nil
}

func (s *ChatStore) TouchThread(ctx context.Context, threadID uuid.UUID, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.ChatThread{}).
		Where("id = ?", threadID).
		Update("updated_at", at).Error
}

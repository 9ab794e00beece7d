package models

import (
	"github.com/google/uuid"
)

// ChatThread is a conversation channel between one buyer and one farmer,
// optionally scoped to a crop listing. The composite unique index makes
// concurrent creates for the same triple fail deterministically instead of
// silently duplicating; crop-less threads are covered by a partial unique
// index on (buyer_id, farmer_id) WHERE crop_id IS NULL, since NULLs
// compare as distinct in the composite index. Callers handle the conflict
// as lookup-and-retry. UpdatedAt doubles as the last-activity timestamp
// and is bumped on every message.
type ChatThread struct {
	BaseModel
	BuyerID  uuid.UUID  `gorm:"type:uuid;index;uniqueIndex:idx_thread_triple" json:"buyer_id"`
	FarmerID uuid.UUID  `gorm:"type:uuid;index;uniqueIndex:idx_thread_triple" json:"farmer_id"`
	CropID   *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_thread_triple" json:"crop_id"`
}

// OtherParty returns the thread participant that is not senderID.
// Receiver derivation for messages: if the sender is the farmer, the
// receiver is the buyer, otherwise the farmer.
func (t *ChatThread) OtherParty(senderID uuid.UUID) uuid.UUID {
	if senderID == t.FarmerID {
		return t.BuyerID
	}
	return t.FarmerID
}

// Message belongs to exactly one thread and is immutable once created.
// Display order within a thread is (created_at, id).
type Message struct {
	BaseModel
	ThreadID   uuid.UUID `gorm:"type:uuid;index" json:"thread_id"`
	SenderID   uuid.UUID `gorm:"type:uuid" json:"sender_id"`
	ReceiverID uuid.UUID `gorm:"type:uuid" json:"receiver_id"`
	Content    string    `json:"content"`
	Read       bool      `gorm:"default:false" json:"read"`
}

package chat_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/farm2market/internal/chat"
	"github.com/example/farm2market/internal/models"
)

func message(threadID uuid.UUID, content string) models.Message {
	return models.Message{
		BaseModel: models.BaseModel{ID: uuid.New()},
		ThreadID:  threadID,
		Content:   content,
	}
}

func TestFeedDeliversToThreadSubscribers(t *testing.T) {
	feed := chat.NewFeed()
	threadID := uuid.New()

	sub := feed.Subscribe(threadID)
	defer sub.Cancel()

	other := feed.Subscribe(uuid.New())
	defer other.Cancel()

	m := message(threadID, "hello")
	feed.Publish(m)

	select {
	case got := <-sub.C:
		assert.Equal(t, m.ID, got.ID)
	default:
		t.Fatal("expected message on subscription channel")
	}

	select {
	case <-other.C:
		t.Fatal("message leaked to another thread's subscriber")
	default:
	}
}

func TestFeedPublishWithoutSubscribers(t *testing.T) {
	feed := chat.NewFeed()
	// Must not block or panic.
	feed.Publish(message(uuid.New(), "into the void"))
}

func TestFeedDropsWhenSubscriberStalls(t *testing.T) {
	feed := chat.NewFeed()
	threadID := uuid.New()

	sub := feed.Subscribe(threadID)
	defer sub.Cancel()

	// Overfill the buffer; publishes past capacity are dropped, not blocked.
	for i := 0; i < 100; i++ {
		feed.Publish(message(threadID, "burst"))
	}
	assert.Equal(t, 32, len(sub.C))
}

func TestSubscriptionCancel(t *testing.T) {
	feed := chat.NewFeed()
	threadID := uuid.New()

	sub := feed.Subscribe(threadID)
	require.Equal(t, 1, feed.Active(threadID))

	sub.Cancel()
	assert.Equal(t, 0, feed.Active(threadID))

	// Channel closes so pump loops terminate.
	_, open := <-sub.C
	assert.False(t, open)

	// Cancel is idempotent.
	sub.Cancel()
}

package ws

import (
	"context"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/farm2market/internal/chat"
	"github.com/example/farm2market/internal/config"
	"github.com/example/farm2market/internal/models"
	"github.com/example/farm2market/internal/services"
	"github.com/example/farm2market/internal/session"
	"github.com/example/farm2market/internal/utils"
)

// Handler upgrades chat thread connections and streams messages over
// websockets. Each connection gets its own synchronizer so that opening,
// closing and sign-out teardown stay scoped to that socket.
type Handler struct {
	cfg      *config.Config
	identity *services.IdentityService
	profiles *services.ProfileStore
	store    chat.Store
	feed     *chat.Feed
}

func NewHandler(cfg *config.Config, identity *services.IdentityService, profiles *services.ProfileStore, store chat.Store, feed *chat.Feed) *Handler {
	return &Handler{cfg: cfg, identity: identity, profiles: profiles, store: store, feed: feed}
}

// Upgrade rejects plain HTTP requests on websocket routes.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

type inboundFrame struct {
	Content string `json:"content"`
}

type outboundFrame struct {
	Type     string           `json:"type"`
	Message  *models.Message  `json:"message,omitempty"`
	Messages []models.Message `json:"messages,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Thread returns the connection handler for /ws/chats/:id.
func (h *Handler) Thread() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// The pump goroutine and the read loop both emit frames.
		var writeMu sync.Mutex
		write := func(f outboundFrame) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			return conn.WriteJSON(f)
		}

		sessionID, phone, err := utils.ParseToken(h.cfg.JWTSecret, conn.Query("token"))
		if err != nil || !h.identity.Active(sessionID) {
			write(outboundFrame{Type: "error", Error: "unauthorized"})
			return
		}
		threadID, err := uuid.Parse(conn.Params("id"))
		if err != nil {
			write(outboundFrame{Type: "error", Error: "invalid thread id"})
			return
		}

		profile, err := h.profiles.FindByPhone(ctx, phone)
		if err != nil || profile == nil || !profile.Complete() {
			write(outboundFrame{Type: "error", Error: "profile required"})
			return
		}

		syncer := chat.NewSynchronizer(h.store, h.feed)
		thread, err := syncer.Thread(ctx, threadID)
		if err != nil {
			write(outboundFrame{Type: "error", Error: "thread not found"})
			return
		}
		if !participant(thread, profile.ID) {
			write(outboundFrame{Type: "error", Error: "forbidden"})
			return
		}

		out := make(chan models.Message, 32)
		syncer.OnMessage(func(m models.Message) {
			select {
			case out <- m:
			default:
				log.Printf("ws: dropping message for slow client, thread %s", threadID)
			}
		})

		// Signing the session out tears the stream down immediately. The
		// teardown hook is registered before Start so a sign-out landing
		// during the initial resolution still closes the connection.
		resolver := session.NewResolver(h.profiles, h.identity.ClientFor(sessionID))
		cancelTeardown := resolver.OnTeardown(func() {
			syncer.CloseThread()
			conn.Close()
		})
		defer cancelTeardown()
		resolver.Start(ctx)
		defer resolver.Stop()
		defer syncer.CloseThread()

		history, err := syncer.OpenThread(ctx, threadID)
		if err != nil {
			write(outboundFrame{Type: "error", Error: "failed to open thread"})
			return
		}
		if err := write(outboundFrame{Type: "history", Messages: history}); err != nil {
			return
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-out:
					if err := write(outboundFrame{Type: "message", Message: &m}); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		for {
			var frame inboundFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if _, err := syncer.Send(ctx, threadID, profile.ID, frame.Content); err != nil {
				if err == chat.ErrEmptyMessage {
					write(outboundFrame{Type: "error", Error: "message body is empty"})
					continue
				}
				log.Printf("ws: send failed on thread %s: %v", threadID, err)
				write(outboundFrame{Type: "error", Error: "failed to send message"})
			}
		}
	})
}

func participant(t *models.ChatThread, profileID uuid.UUID) bool {
	return t.BuyerID == profileID || t.FarmerID == profileID
}

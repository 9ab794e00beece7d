package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/farm2market/internal/chat"
	"github.com/example/farm2market/internal/middleware"
	"github.com/example/farm2market/internal/models"
)

// ChatHandler exposes thread and message endpoints over the chat
// synchronizer's thread-level operations.
type ChatHandler struct {
	sync *chat.Synchronizer
}

// NewChatHandler constructs ChatHandler.
func NewChatHandler(sync *chat.Synchronizer) *ChatHandler {
	return &ChatHandler{sync: sync}
}

// ListThreads returns the caller's threads, most recent contact first.
func (h *ChatHandler) ListThreads(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	threads, err := h.sync.ListThreadsFor(c.Context(), profile.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": threads})
}

type openThreadRequest struct {
	FarmerID string `json:"farmer_id"`
	CropID   string `json:"crop_id"`
}

// OpenThread finds or creates the thread between the calling buyer and a
// farmer, optionally scoped to a crop.
func (h *ChatHandler) OpenThread(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req openThreadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	farmerID, err := uuid.Parse(req.FarmerID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid farmer id")
	}

	var cropID *uuid.UUID
	if req.CropID != "" {
		id, err := uuid.Parse(req.CropID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid crop id")
		}
		cropID = &id
	}

	thread, err := h.sync.FindOrCreateThread(c.Context(), profile.ID, farmerID, cropID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": thread})
}

// ListMessages returns a thread's full history in display order. The caller
// must be a participant.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	threadID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	thread, err := h.requireParticipant(c, threadID, profile.ID)
	if err != nil {
		return err
	}

	messages, err := h.sync.History(c.Context(), thread.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": messages})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage inserts a message into the thread; the receiver is derived as
// the other party.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	threadID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if _, err := h.requireParticipant(c, threadID, profile.ID); err != nil {
		return err
	}

	msg, err := h.sync.Send(c.Context(), threadID, profile.ID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			return fiber.NewError(fiber.StatusBadRequest, "message body is empty")
		case errors.Is(err, chat.ErrThreadNotFound):
			return fiber.NewError(fiber.StatusNotFound, "chat thread not found")
		default:
			return err
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": msg})
}

func (h *ChatHandler) requireParticipant(c *fiber.Ctx, threadID, profileID uuid.UUID) (*models.ChatThread, error) {
	thread, err := h.sync.Thread(c.Context(), threadID)
	if err != nil {
		if errors.Is(err, chat.ErrThreadNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "chat thread not found")
		}
		return nil, err
	}
	if thread.BuyerID != profileID && thread.FarmerID != profileID {
		return nil, fiber.NewError(fiber.StatusForbidden, "not a participant in this thread")
	}
	return thread, nil
}

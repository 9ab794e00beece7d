package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/farm2market/internal/config"
	"github.com/example/farm2market/internal/middleware"
	"github.com/example/farm2market/internal/models"
	"github.com/example/farm2market/internal/services"
	"github.com/example/farm2market/internal/session"
	"github.com/example/farm2market/internal/utils"
)

// AuthHandler bundles dependencies for phone authentication endpoints.
type AuthHandler struct {
	cfg      *config.Config
	otp      *services.OTPService
	identity *services.IdentityService
	profiles *services.ProfileStore
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(cfg *config.Config, otp *services.OTPService, identity *services.IdentityService, profiles *services.ProfileStore) *AuthHandler {
	return &AuthHandler{cfg: cfg, otp: otp, identity: identity, profiles: profiles}
}

type requestOTPRequest struct {
	Phone string `json:"phone"`
}

// RequestOTP issues a one-time code for the given phone number.
func (h *AuthHandler) RequestOTP(c *fiber.Ctx) error {
	var req requestOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return fiber.NewError(fiber.StatusBadRequest, "phone is required")
	}

	if err := h.otp.Issue(c.Context(), phone); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to send verification code")
	}

	return c.JSON(fiber.Map{"success": true})
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// VerifyOTP validates the code, registers a verified identity session, and
// returns a token plus the resolved session snapshot. A bare profile row is
// created on first verification so later saves upsert by a known id.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	phone := strings.TrimSpace(req.Phone)
	if phone == "" || req.Code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "phone and code are required")
	}

	if err := h.otp.Verify(c.Context(), phone, req.Code); err != nil {
		switch {
		case errors.Is(err, services.ErrCodeNotFound):
			return fiber.NewError(fiber.StatusNotFound, "verification code not found")
		case errors.Is(err, services.ErrCodeExpired):
			return fiber.NewError(fiber.StatusBadRequest, "verification code expired")
		case errors.Is(err, services.ErrCodeMismatch):
			return fiber.NewError(fiber.StatusBadRequest, "invalid verification code")
		default:
			return err
		}
	}

	existing, err := h.profiles.FindByPhone(c.Context(), phone)
	if err == nil && existing == nil {
		if _, err := h.profiles.Upsert(c.Context(), &models.Profile{
			BaseModel: models.BaseModel{ID: uuid.New()},
			Phone:     &phone,
		}); err != nil {
			return err
		}
	}

	sess := h.identity.Register(phone)
	token, err := utils.GenerateToken(h.cfg.JWTSecret, sess.ID, phone, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	snap := session.ResolveProfile(c.Context(), h.profiles, phone)

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
		"session": snapshotResponse(snap),
	})
}

// Session returns the resolved session snapshot for the caller.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	phone, ok := middleware.GetCurrentPhone(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	snap := session.ResolveProfile(c.Context(), h.profiles, phone)
	return c.JSON(fiber.Map{"success": true, "session": snapshotResponse(snap)})
}

type saveProfileRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// SaveProfile completes or updates the caller's profile.
func (h *AuthHandler) SaveProfile(c *fiber.Ctx) error {
	phone, ok := middleware.GetCurrentPhone(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req saveProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	snap := session.ResolveProfile(c.Context(), h.profiles, phone)

	profile, err := session.SaveProfile(c.Context(), h.profiles, snap.ProfileID, phone, req.Name, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNameRequired), errors.Is(err, session.ErrInvalidRole):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, session.ErrPhoneMissing):
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		default:
			return err
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"profile": profile,
	})
}

// Logout invalidates the caller's identity session. Local client state is
// expected to reset before this call settles.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sessionID, ok := middleware.GetCurrentSessionID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	h.identity.SignOut(sessionID)
	return c.JSON(fiber.Map{"success": true})
}

func snapshotResponse(snap session.Snapshot) fiber.Map {
	resp := fiber.Map{
		"state":         snap.State.String(),
		"needs_profile": snap.NeedsProfile,
	}
	if snap.ProfileID != uuid.Nil {
		resp["profile_id"] = snap.ProfileID
	}
	if snap.Role != "" {
		resp["role"] = snap.Role
	}
	return resp
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/farm2market/internal/config"
	"github.com/example/farm2market/internal/models"
	"github.com/example/farm2market/internal/services"
	"github.com/example/farm2market/internal/utils"
)

const (
	sessionIDContextKey = "currentSessionID"
	phoneContextKey     = "currentPhone"
	profileContextKey   = "currentProfile"
)

// AuthMiddleware validates JWT tokens, checks the identity session is still
// active, and loads session id and phone into context.
func AuthMiddleware(cfg *config.Config, identity *services.IdentityService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		sessionID, phone, err := utils.ParseToken(cfg.JWTSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		if !identity.Active(sessionID) {
			return fiber.NewError(fiber.StatusUnauthorized, "session signed out")
		}

		c.Locals(sessionIDContextKey, sessionID)
		c.Locals(phoneContextKey, phone)
		return c.Next()
	}
}

// RequireProfile resolves the caller's profile by phone and rejects callers
// without a complete profile. When roles are given, the profile's role must
// be one of them.
func RequireProfile(store *services.ProfileStore, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		phone, ok := GetCurrentPhone(c)
		if !ok || phone == "" {
			return fiber.NewError(fiber.StatusForbidden, "profile setup required")
		}

		profile, err := store.FindByPhone(c.Context(), phone)
		if err != nil {
			return err
		}
		if profile == nil || !profile.Complete() {
			return fiber.NewError(fiber.StatusForbidden, "profile setup required")
		}

		if len(roles) > 0 {
			allowed := false
			for _, r := range roles {
				if *profile.Role == r {
					allowed = true
					break
				}
			}
			if !allowed {
				return fiber.NewError(fiber.StatusForbidden, "insufficient role")
			}
		}

		c.Locals(profileContextKey, profile)
		return c.Next()
	}
}

// GetCurrentSessionID extracts the identity session id from context.
func GetCurrentSessionID(c *fiber.Ctx) (uuid.UUID, bool) {
	if id, ok := c.Locals(sessionIDContextKey).(uuid.UUID); ok {
		return id, true
	}
	return uuid.Nil, false
}

// GetCurrentPhone extracts the verified phone number from context.
func GetCurrentPhone(c *fiber.Ctx) (string, bool) {
	if phone, ok := c.Locals(phoneContextKey).(string); ok {
		return phone, true
	}
	return "", false
}

// GetCurrentProfile extracts the resolved profile loaded by RequireProfile.
func GetCurrentProfile(c *fiber.Ctx) (*models.Profile, bool) {
	if p, ok := c.Locals(profileContextKey).(*models.Profile); ok {
		return p, true
	}
	return nil, false
}

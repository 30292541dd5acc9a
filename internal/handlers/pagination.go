package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultMessageLimit = 20
	maxMessageLimit     = 100
)

func parsePositiveInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// parseBefore parses the exclusive upper bound for message pagination.
// An empty value means "no bound" and comes back as the zero time.
func parseBefore(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func requestUserID(c *fiber.Ctx) (int64, error) {
	userIDValue := c.Locals("user_id")
	userIDStr, ok := userIDValue.(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(userIDStr, 10, 64)
}

package utils

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// snippetLength caps conversation/message preview text.
const snippetLength = 200

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(userID, path string) string {
	return fmt.Sprintf("rl:%s:%s", userID, path)
}

// TruncatePreview trims body text down to snippet size.
func TruncatePreview(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= snippetLength {
		return trimmed
	}
	return string(runes[:snippetLength])
}

// ErrorResponse creates a standardized error response
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := fiber.Map{
		"success": false,
		"error":   message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	return c.Status(status).JSON(response)
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// PaginatedResponse structure for paginated results
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// Snippet picks the preview text for a message, preferring plain text.
func Snippet(textBody, htmlBody *string) *string {
	if textBody != nil {
		return Pointer(TruncatePreview(*textBody))
	}
	if htmlBody != nil {
		return Pointer(TruncatePreview(*htmlBody))
	}
	return nil
}

// Package validation provides input validation middleware and helpers
// for the portal API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mkutano/hotspot/internal/msisdn"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

// bandwidthRegex validates specs of the form "<upload>/<download>",
// e.g. "1M/2M" or "512K/1M". The backend does the authoritative check;
// this only rejects obvious garbage early.
var bandwidthRegex = regexp.MustCompile(`^\d+[KMG]?/\d+[KMG]?$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidBandwidth checks a "<upload>/<download>" bandwidth spec.
func IsValidBandwidth(spec string) bool {
	return bandwidthRegex.MatchString(spec)
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	// Trim whitespace
	s = strings.TrimSpace(s)

	// Limit length
	if len(s) > maxLen {
		s = s[:maxLen]
	}

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidPhone checks if a field normalizes to a valid MSISDN
func ValidPhone(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if err := msisdn.Validate(msisdn.Normalize(value)); err != nil {
			return &ValidationError{Field: field, Message: "must be a valid phone number"}
		}
		return nil
	}
}

// ValidBandwidthSpec checks a bandwidth field against the "<up>/<down>" form
func ValidBandwidthSpec(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if !IsValidBandwidth(value) {
			return &ValidationError{Field: field, Message: "must look like \"1M/2M\""}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// PositiveInt checks that an integer field is greater than zero
func PositiveInt(field string, value int) func() *ValidationError {
	return func() *ValidationError {
		if value <= 0 {
			return &ValidationError{Field: field, Message: "must be greater than zero"}
		}
		return nil
	}
}

// UsernameParamMiddleware validates the :username URL parameter on routes
// that use it. RADIUS usernames in this deployment are MSISDNs, so the
// check rejects malformed numbers before a CoA command is built.
func UsernameParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")
		if username != "" && msisdn.Validate(username) != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_username",
				"message": "username must be a 12-digit MSISDN (254...)",
			})
			return
		}
		c.Next()
	}
}

// Package validation provides input validation helpers for the TrackRate API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for free-text fields (comments, reasons)
const MaxStringLength = 10000

// TransactionalPasswordLength is the exact length of the secondary password
// used to confirm sensitive operations.
const TransactionalPasswordLength = 4

var (
	// usernameRegex validates account usernames
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,30}$`)
	// emailRegex is a pragmatic email shape check, not full RFC 5322
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// phoneRegex accepts digits with optional leading + and separators stripped by the caller
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{6,15}$`)
	// ethAddressRegex validates ERC-20 payout addresses
	ethAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidUsername checks the username shape
func IsValidUsername(s string) bool {
	return usernameRegex.MatchString(s)
}

// IsValidEmail checks the email shape
func IsValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// IsValidPhone checks the phone number shape
func IsValidPhone(s string) bool {
	return phoneRegex.MatchString(s)
}

// IsValidEthAddress checks if a string is a valid Ethereum address
func IsValidEthAddress(addr string) bool {
	return ethAddressRegex.MatchString(addr)
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

// ValidUsername checks the username shape when present
func ValidUsername(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidUsername(value) {
			return &ValidationError{Field: field, Message: "must be 3-30 characters (letters, digits, _ . -)"}
		}
		return nil
	}
}

// ValidEmail checks the email shape when present
func ValidEmail(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if !IsValidEmail(value) {
			return &ValidationError{Field: field, Message: "must be a valid email address"}
		}
		return nil
	}
}

// ValidPhone checks the phone shape when present
func ValidPhone(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if !IsValidPhone(value) {
			return &ValidationError{Field: field, Message: "must be a valid phone number"}
		}
		return nil
	}
}

// ValidTransactionalPassword checks the exact-length secondary password
func ValidTransactionalPassword(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if len(value) != TransactionalPasswordLength {
			return &ValidationError{Field: field, Message: "must be exactly 4 characters"}
		}
		return nil
	}
}

// ValidRating checks a review rating in [1,5]
func ValidRating(field string, value int) func() *ValidationError {
	return func() *ValidationError {
		if value < 1 || value > 5 {
			return &ValidationError{Field: field, Message: "must be between 1 and 5"}
		}
		return nil
	}
}

// ValidAddress checks if a field is a valid ERC-20 payout address when present
func ValidAddress(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if !IsValidEthAddress(value) {
			return &ValidationError{Field: field, Message: "must be a valid wallet address (0x...)"}
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

// ValidAmount checks if a value is a positive two-decimal money amount
func ValidAmount(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		decimalCount := 0
		decimals := 0
		hasNonZero := false
		inFraction := false
		for i, c := range value {
			if c == '.' {
				decimalCount++
				if decimalCount > 1 {
					return &ValidationError{Field: field, Message: "invalid amount format"}
				}
				if i == 0 || i == len(value)-1 {
					return &ValidationError{Field: field, Message: "invalid amount format"}
				}
				inFraction = true
				continue
			}
			if c < '0' || c > '9' {
				return &ValidationError{Field: field, Message: "invalid amount format"}
			}
			if inFraction {
				decimals++
			}
			if c != '0' {
				hasNonZero = true
			}
		}
		if decimals > 2 {
			return &ValidationError{Field: field, Message: "at most two decimal places"}
		}
		if !hasNonZero {
			return &ValidationError{Field: field, Message: "amount must be greater than zero"}
		}
		return nil
	}
}

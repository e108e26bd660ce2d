package middleware

import (
	"errors"
	"strconv"
	"unicode/utf8"
)

// MaxPromptLength bounds prompts accepted by the API.
const MaxPromptLength = 8000

// ValidateChannelID checks that id is a snowflake.
func ValidateChannelID(id string) error {
	if id == "" || len(id) > 20 {
		return errors.New("invalid channel ID format")
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return errors.New("invalid channel ID format")
	}
	return nil
}

// ValidatePrompt validates an assistant prompt.
func ValidatePrompt(prompt string) error {
	if len(prompt) == 0 {
		return errors.New("prompt cannot be empty")
	}
	if len(prompt) > MaxPromptLength {
		return errors.New("prompt exceeds maximum length")
	}
	if !utf8.ValidString(prompt) {
		return errors.New("prompt must be valid UTF-8")
	}
	return nil
}

// ParseCount parses a positive message count, returning def when s is empty.
func ParseCount(s string, def, max int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("count must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}

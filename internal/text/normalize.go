// Package text prepares user prompts for the backends' text encoders.
package text

import (
	"errors"
	"strings"
)

// ErrEmptyPrompt is returned when the input prompt is empty or
// whitespace-only.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Normalize prepares a raw prompt for tokenization. Prompts are single-line
// descriptions, so runs of whitespace (including newlines from editors that
// wrap text) collapse to one space, surrounding whitespace is trimmed, and
// empty or whitespace-only input is rejected.
func Normalize(s string) (string, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", ErrEmptyPrompt
	}

	return strings.Join(fields, " "), nil
}

// Package auth resolves the Gemini API credential and decides whether the
// service runs against the real API or the deterministic mock generator.
package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// GetAPIKey retrieves the Gemini API key from the GEMINI_API_KEY environment
// variable.
func GetAPIKey() (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}
	return "", fmt.Errorf("API key not found. Set GEMINI_API_KEY or run with --mock")
}

// UseMock reports whether the mock generator should be selected. Mock mode is
// forced by the flag, requested via USE_MOCK_ANALYZER, or implied by a missing
// API key so that downstream components never have to special-case an
// unconfigured API.
func UseMock(mockFlag bool) bool {
	if mockFlag {
		return true
	}
	if v := strings.ToLower(os.Getenv("USE_MOCK_ANALYZER")); v == "true" || v == "1" {
		return true
	}
	_, err := GetAPIKey()
	return err != nil
}

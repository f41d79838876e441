package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL validates the dev server URL before it is handed to the
// platform's browser opener.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	if strings.ContainsAny(rawURL, ";&|`$()<>\"'\\\n\r ") {
		return fmt.Errorf("URL contains characters that are unsafe to pass to a shell")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}

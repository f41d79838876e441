package validation

import (
	"fmt"
	"net/url"
	"strings"

	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
)

// ValidateOrigin validates a websocket Origin header against the allowed
// host list. Entries in allowedHosts are host[:port] values; full origins
// ("http://localhost:8080") are accepted as well.
func ValidateOrigin(origin string, allowedHosts []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme)
	}

	for _, allowed := range allowedHosts {
		if strings.EqualFold(origin, allowed) || strings.EqualFold(originURL.Host, allowed) {
			return nil
		}
	}

	return spriteerrors.ErrInvalidOrigin(origin)
}

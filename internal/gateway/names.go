package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// ErrInvalidAssetName is returned for names that could escape the store's
// directory or cannot be carried in a URL path.
var ErrInvalidAssetName = errors.New("invalid asset name")

// ValidateName checks that name is a relative, slash separated path with no
// empty, "." or ".." segments.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidAssetName)
	}

	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: %q is absolute", ErrInvalidAssetName, name)
	}

	for _, r := range name {
		if r == '\\' || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidAssetName, name, r)
		}
	}

	for _, segment := range strings.Split(name, "/") {
		switch segment {
		case "":
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidAssetName, name)
		case ".", "..":
			return fmt.Errorf("%w: %q has a relative segment", ErrInvalidAssetName, name)
		}
	}

	return nil
}

// escapeName percent-encodes each segment of name, keeping the separators
func escapeName(name string) string {
	segments := strings.Split(name, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

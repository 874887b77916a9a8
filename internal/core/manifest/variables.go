package manifest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// =============================================================================
// Version Variable Functions
// =============================================================================

// invalidVariableChars matches everything not allowed in a variable name.
var invalidVariableChars = regexp.MustCompile(`[^A-Z0-9_]`)

// VariableName derives the environment variable carrying a file's fingerprint.
// The file's base name is upper-cased and every character outside [A-Z0-9_]
// becomes an underscore.
//
// Examples:
//
//	VariableName("./conf/dir/app.config")       // "APP_CONFIG"
//	VariableName("./secrets/ssl-cert.location") // "SSL_CERT_LOCATION"
func VariableName(path string) string {
	base := filepath.Base(path)
	return invalidVariableChars.ReplaceAllString(strings.ToUpper(base), "_")
}

// Fingerprint returns a deterministic digest of content for change detection.
// It is xxhash64 rendered as 16 lowercase hex digits; not meant for security.
func Fingerprint(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// VariableName Tests
// =============================================================================

func TestVariableName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"config with dot", "./conf/dir/app.config", "APP_CONFIG"},
		{"secret with dash", "./secrets/ssl-cert.location", "SSL_CERT_LOCATION"},
		{"already valid", "DB_PASSWORD", "DB_PASSWORD"},
		{"absolute path", "/etc/nginx/nginx.conf", "NGINX_CONF"},
		{"digits kept", "tls/v2.pem", "V2_PEM"},
		{"spaces and symbols", "certs/my cert+key@1.crt", "MY_CERT_KEY_1_CRT"},
		{"mixed case", "Config.Yaml", "CONFIG_YAML"},
		{"non-ascii", "conf/épée.txt", "_P_E_TXT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, VariableName(tt.input))
		})
	}
}

// =============================================================================
// Fingerprint Tests
// =============================================================================

func TestFingerprint_Deterministic(t *testing.T) {
	content := []byte("server { listen 443 ssl; }")

	assert.Equal(t, Fingerprint(content), Fingerprint(content))
	assert.Len(t, Fingerprint(content), 16)
}

func TestFingerprint_DetectsChange(t *testing.T) {
	before := Fingerprint([]byte("password=one"))
	after := Fingerprint([]byte("password=two"))

	assert.NotEqual(t, before, after)
}

func TestFingerprint_Empty(t *testing.T) {
	assert.Equal(t, "ef46db3751d8e999", Fingerprint(nil))
}

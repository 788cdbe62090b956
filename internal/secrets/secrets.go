// Package secrets loads the server secret and the CSRF master key from the
// environment. Both must be provisioned out of band; there are no defaults,
// and a missing or malformed secret stops the process before it listens.
package secrets

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
)

const (
	// SessionSecretEnvVar holds the hex-encoded server secret for the
	// stateless session token signature.
	SessionSecretEnvVar = "SQUEAKD_SESSION_SECRET"
	// CSRFKeyEnvVar holds the base64-encoded 32-byte CSRF master key.
	CSRFKeyEnvVar = "SQUEAKD_CSRF_KEY"
)

// FromEnvHex reads a hex-encoded secret from varname and clears the variable
// so the secret does not linger in the process environment.
func FromEnvHex(varname string, minLen int) ([]byte, error) {
	val, err := consume(varname)
	if err != nil {
		return nil, err
	}
	secret, err := hex.DecodeString(val)
	if err != nil {
		return nil, fmt.Errorf("secrets: %v is not valid hex, cause %w", varname, err)
	}
	if len(secret) < minLen {
		return nil, fmt.Errorf("secrets: %v must decode to at least %v bytes, got %v", varname, minLen, len(secret))
	}
	return secret, nil
}

// FromEnvBase64 reads a base64-encoded secret from varname, clears the
// variable, and requires exactly wantLen decoded bytes.
func FromEnvBase64(varname string, wantLen int) ([]byte, error) {
	val, err := consume(varname)
	if err != nil {
		return nil, err
	}
	secret, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return nil, fmt.Errorf("secrets: %v is not valid base64, cause %w", varname, err)
	}
	if len(secret) != wantLen {
		return nil, fmt.Errorf("secrets: %v must decode to exactly %v bytes, got %v", varname, wantLen, len(secret))
	}
	return secret, nil
}

func consume(varname string) (string, error) {
	val := os.Getenv(varname)
	if val == "" {
		return "", fmt.Errorf("secrets: %v is not set", varname)
	}
	if err := os.Setenv(varname, ""); err != nil {
		return "", fmt.Errorf("secrets: unable to clear %v, cause %w", varname, err)
	}
	return val, nil
}

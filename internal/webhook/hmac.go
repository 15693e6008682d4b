package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// verifyHMACSignature verifies an HMAC-SHA256 signature against the request body.
//
// Constant-time comparison (crypto/subtle) prevents timing attacks. Supported
// header formats:
//   - "sha256=<hex>" (GitHub style)
//   - "<hex>" (plain hex)
//
// All errors are generic to prevent information leakage.
func verifyHMACSignature(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return fmt.Errorf("webhook verification failed")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedMAC := mac.Sum(nil)

	actualMAC, err := parseSignature(signature)
	if err != nil {
		return fmt.Errorf("webhook verification failed")
	}

	if subtle.ConstantTimeCompare(expectedMAC, actualMAC) != 1 {
		return fmt.Errorf("webhook verification failed")
	}
	return nil
}

// parseSignature decodes the hex digest, tolerating a "sha256=" prefix.
func parseSignature(signature string) ([]byte, error) {
	s := strings.TrimPrefix(signature, "sha256=")
	mac, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding")
	}
	if len(mac) != sha256.Size {
		return nil, fmt.Errorf("invalid signature length")
	}
	return mac, nil
}

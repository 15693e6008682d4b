package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// PinManifest is the on-disk checksum pin written next to the config file.
type PinManifest struct {
	Version     int    `yaml:"version"`
	GeneratedAt string `yaml:"generated_at"`
	Hash        string `yaml:"hash"`
}

// PinPath returns the checksum file path for a config file.
func PinPath(configPath string) string {
	return configPath + ".sum"
}

// HashBytes computes the BLAKE3 hash of config content.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WritePin pins the current config content so later loads detect tampering.
func WritePin(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config for pinning: %w", err)
	}

	manifest := PinManifest{
		Version:     1,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hash:        HashBytes(data),
	}
	out, err := yaml.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("marshal pin manifest: %w", err)
	}

	// Restrictive permissions: the pin is what load trusts.
	if err := os.WriteFile(PinPath(configPath), out, 0o600); err != nil {
		return "", fmt.Errorf("write pin manifest: %w", err)
	}
	return manifest.Hash, nil
}

// VerifyIfPinned checks config content against its pin manifest when one
// exists. A missing pin is fine; a mismatched one is not.
func VerifyIfPinned(configPath string, data []byte) error {
	raw, err := os.ReadFile(PinPath(configPath))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read pin manifest: %w", err)
	}

	var manifest PinManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("parse pin manifest: %w", err)
	}
	if manifest.Version != 1 {
		return fmt.Errorf("unsupported pin manifest version: %d", manifest.Version)
	}

	if actual := HashBytes(data); actual != manifest.Hash {
		return fmt.Errorf("config hash mismatch for %s: expected %s, got %s\n"+
			"If you edited the config intentionally, run: flightcheck config hash-update",
			configPath, manifest.Hash, actual)
	}
	return nil
}

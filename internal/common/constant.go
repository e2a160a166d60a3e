// Package common contains shared constants and sentinel errors used across
// bulkcrypt components.
package common

const (
	// CiphertextSuffix marks on-disk encryption artifacts. Files whose
	// name already carries the suffix are never selected for encryption.
	CiphertextSuffix = ".encrypted"

	// MaxPlaintextSize is the largest payload the external encrypt
	// operation accepts for a symmetric key (64 KiB before base64
	// expansion). Larger files are failed locally instead of being
	// bounced by the service.
	MaxPlaintextSize = 64 * 1024
)

// Package filex holds filesystem path helpers for ciphertext artifacts and
// their destination object keys.
package filex

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ArtifactFor returns the sibling ciphertext path for a source file.
func ArtifactFor(src, suffix string) string {
	return src + suffix
}

// SourceFor strips the ciphertext suffix from an artifact path.
// The second return value reports whether the path carried the suffix.
func SourceFor(artifact, suffix string) (string, bool) {
	if !IsArtifact(artifact, suffix) {
		return artifact, false
	}
	return strings.TrimSuffix(artifact, suffix), true
}

// IsArtifact reports whether the file name carries the ciphertext suffix.
func IsArtifact(name, suffix string) bool {
	return suffix != "" && strings.HasSuffix(name, suffix)
}

// ObjectKey derives the destination storage key for an artifact: the
// artifact's path relative to root, slash-separated, joined under prefix.
// The artifact name keeps its suffix so remote listings distinguish
// ciphertext from plaintext objects.
func ObjectKey(root, artifact, prefix string) (string, error) {
	rel, err := filepath.Rel(root, artifact)
	if err != nil {
		return "", fmt.Errorf("deriving relative path for %s: %w", artifact, err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("artifact %s is outside root %s", artifact, root)
	}
	key := filepath.ToSlash(rel)
	if prefix != "" {
		key = path.Join(prefix, key)
	}
	return key, nil
}

// Package config handles configuration for the bulkcrypt CLI,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/bulkcrypt/internal/common"
)

// Config holds runtime settings for a bulkcrypt invocation.
//
// Fields:
//   - RootDir: local directory tree to encrypt.
//   - Project / Location / KeyRing / Key: the key identifier tuple.
//   - KMSEndpoint: base URL of the key service REST API.
//   - Bucket / Prefix: destination object storage location.
//   - S3Region / S3BaseEndpoint / S3AccessKey / S3SecretKey: storage client
//     settings; the endpoint override targets S3-compatible backends (MinIO).
//   - Workers: encrypt/upload worker pool size; 1 reproduces strictly
//     sequential processing.
//   - CallTimeout: per external call. RetryCount / RetryBackoff: bounded
//     retry policy for transient encrypt/upload failures.
//   - ManifestPath: local SQLite manifest recording per-file progress.
//   - TokenCommand: external command that prints a bearer token.
//   - Cleanup: remove local ciphertext artifacts after successful upload
//     without prompting.
//   - ReportFile: optional CSV per-file report path.
//   - VerifyFile: when set, run the single-file encrypt/decrypt round trip
//     instead of the bulk workflow.
type Config struct {
	RootDir        string
	Project        string
	Location       string
	KeyRing        string
	Key            string
	KMSEndpoint    string
	Bucket         string
	Prefix         string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
	Workers        int
	CallTimeout    time.Duration
	RetryCount     int
	RetryBackoff   time.Duration
	ManifestPath   string
	TokenCommand   string
	Cleanup        bool
	ReportFile     string
	VerifyFile     string
	Verbose        bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.KMSEndpoint = "https://cloudkms.googleapis.com/v1"
	c.Location = "global"
	c.Workers = 4
	c.CallTimeout = 30 * time.Second
	c.RetryCount = 3
	c.RetryBackoff = 500 * time.Millisecond
	c.ManifestPath = "bulkcrypt.db"
	c.TokenCommand = "gcloud auth print-access-token"
	c.S3Region = "us-east-1"
}

// Validate checks configuration-level preconditions. Any error returned
// here aborts the run before a single file is processed.
func (c *Config) Validate() error {
	if c.Project == "" || c.Location == "" || c.KeyRing == "" || c.Key == "" {
		return common.ErrorMissingKeyID
	}

	if c.VerifyFile != "" {
		// verify mode touches no storage and no directory tree
		return nil
	}

	if c.Bucket == "" {
		return common.ErrorMissingBucket
	}

	info, err := os.Stat(c.RootDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %q", common.ErrorBadRootDir, c.RootDir)
	}

	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

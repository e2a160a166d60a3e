package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/bulkcrypt/internal/flagx"
	"github.com/dmitrijs2005/bulkcrypt/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "30s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	RootDir        string         `json:"root_dir"`
	Project        string         `json:"project"`
	Location       string         `json:"location"`
	KeyRing        string         `json:"keyring"`
	Key            string         `json:"key"`
	KMSEndpoint    string         `json:"kms_endpoint"`
	Bucket         string         `json:"bucket"`
	Prefix         string         `json:"prefix"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_endpoint"`
	S3AccessKey    string         `json:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key"`
	Workers        int            `json:"workers"`
	CallTimeout    timex.Duration `json:"call_timeout"`
	RetryCount     int            `json:"retry_count"`
	RetryBackoff   timex.Duration `json:"retry_backoff"`
	ManifestPath   string         `json:"manifest_path"`
	TokenCommand   string         `json:"token_cmd"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Only fields present with non-zero values in the JSON override the
// corresponding Config fields, so a partial file keeps the defaults for
// everything it does not mention.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.RootDir != "" {
		cfg.RootDir = jc.RootDir
	}
	if jc.Project != "" {
		cfg.Project = jc.Project
	}
	if jc.Location != "" {
		cfg.Location = jc.Location
	}
	if jc.KeyRing != "" {
		cfg.KeyRing = jc.KeyRing
	}
	if jc.Key != "" {
		cfg.Key = jc.Key
	}
	if jc.KMSEndpoint != "" {
		cfg.KMSEndpoint = jc.KMSEndpoint
	}
	if jc.Bucket != "" {
		cfg.Bucket = jc.Bucket
	}
	if jc.Prefix != "" {
		cfg.Prefix = jc.Prefix
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
	if jc.Workers != 0 {
		cfg.Workers = jc.Workers
	}
	if jc.CallTimeout.Duration != 0 {
		cfg.CallTimeout = jc.CallTimeout.Duration
	}
	if jc.RetryCount != 0 {
		cfg.RetryCount = jc.RetryCount
	}
	if jc.RetryBackoff.Duration != 0 {
		cfg.RetryBackoff = jc.RetryBackoff.Duration
	}
	if jc.ManifestPath != "" {
		cfg.ManifestPath = jc.ManifestPath
	}
	if jc.TokenCommand != "" {
		cfg.TokenCommand = jc.TokenCommand
	}
}

package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/bulkcrypt/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   root directory to encrypt
//	-p string   project of the key identifier
//	-l string   location of the key identifier
//	-r string   keyring of the key identifier
//	-k string   key name
//	-e string   base URL of the key service REST API
//	-b string   destination bucket
//	-x string   destination key prefix
//	-w int      worker pool size
//	-t int      per-call timeout in seconds
//	-n int      retry count for transient call failures
//	-m string   manifest database path
//
// plus the long flags listed in allowedFlags below.
//
// Note: The function filters os.Args to only include the flags it knows
// about, using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	allowedFlags := []string{
		"-d", "-p", "-l", "-r", "-k", "-e", "-b", "-x", "-w", "-t", "-n", "-m",
		"-s3-region", "-s3-endpoint", "-s3-access-key", "-s3-secret-key",
		"-token-cmd", "-cleanup", "-report", "-verify", "-v",
	}
	args := flagx.FilterArgs(os.Args[1:], allowedFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.RootDir, "d", cfg.RootDir, "root directory to encrypt")
	fs.StringVar(&cfg.Project, "p", cfg.Project, "project of the key identifier")
	fs.StringVar(&cfg.Location, "l", cfg.Location, "location of the key identifier")
	fs.StringVar(&cfg.KeyRing, "r", cfg.KeyRing, "keyring of the key identifier")
	fs.StringVar(&cfg.Key, "k", cfg.Key, "key name")
	fs.StringVar(&cfg.KMSEndpoint, "e", cfg.KMSEndpoint, "key service endpoint base URL")
	fs.StringVar(&cfg.Bucket, "b", cfg.Bucket, "destination bucket")
	fs.StringVar(&cfg.Prefix, "x", cfg.Prefix, "destination key prefix")
	fs.IntVar(&cfg.Workers, "w", cfg.Workers, "worker pool size")
	callTimeout := fs.Int("t", int(cfg.CallTimeout.Seconds()), "per-call timeout (in seconds)")
	fs.IntVar(&cfg.RetryCount, "n", cfg.RetryCount, "retry count for transient failures")
	fs.StringVar(&cfg.ManifestPath, "m", cfg.ManifestPath, "manifest database path")

	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "storage region")
	fs.StringVar(&cfg.S3BaseEndpoint, "s3-endpoint", cfg.S3BaseEndpoint, "storage endpoint override (S3-compatible)")
	fs.StringVar(&cfg.S3AccessKey, "s3-access-key", cfg.S3AccessKey, "storage access key")
	fs.StringVar(&cfg.S3SecretKey, "s3-secret-key", cfg.S3SecretKey, "storage secret key")

	fs.StringVar(&cfg.TokenCommand, "token-cmd", cfg.TokenCommand, "command printing a bearer token")
	fs.BoolVar(&cfg.Cleanup, "cleanup", cfg.Cleanup, "remove local ciphertext artifacts after upload without prompting")
	fs.StringVar(&cfg.ReportFile, "report", cfg.ReportFile, "write a per-file CSV report to this path")
	fs.StringVar(&cfg.VerifyFile, "verify", cfg.VerifyFile, "run a single-file encrypt/decrypt round trip")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "verbose logging")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.CallTimeout = time.Duration(*callTimeout) * time.Second
}

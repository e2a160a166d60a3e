package common

import "errors"

var (

	// configuration errors: fatal, reported before any file is touched
	ErrorMissingKeyID  = errors.New("key identifier is not fully specified")
	ErrorMissingBucket = errors.New("destination bucket is not specified")
	ErrorBadRootDir    = errors.New("root path does not exist or is not a directory")

	// per-file errors: recorded against the file and never abort the run
	ErrorEmptyEncoding    = errors.New("empty encoding for non-empty input")
	ErrorPlaintextTooBig  = errors.New("plaintext exceeds encrypt payload limit")
	ErrorEmptyFileContent = errors.New("file is empty")
)

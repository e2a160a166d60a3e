// Package cli wires configuration, the key service client, object storage
// and the bulk encryptor into the command-line application.
package cli

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/dmitrijs2005/bulkcrypt/internal/auth"
	"github.com/dmitrijs2005/bulkcrypt/internal/bulk"
	"github.com/dmitrijs2005/bulkcrypt/internal/common"
	"github.com/dmitrijs2005/bulkcrypt/internal/config"
	"github.com/dmitrijs2005/bulkcrypt/internal/kms"
	"github.com/dmitrijs2005/bulkcrypt/internal/logging"
	"github.com/dmitrijs2005/bulkcrypt/internal/manifest"
	"github.com/dmitrijs2005/bulkcrypt/internal/storage"
)

// Exit codes: ExitFailures signals a run that completed but left some files
// in a failed state, so scripts can distinguish "retry some files" from
// "fix the configuration".
const (
	ExitOK       = 0
	ExitFatal    = 1
	ExitFailures = 3
)

// newUploader is a test seam so app tests run without AWS configuration.
var newUploader = func(ctx context.Context, p storage.Params) (bulk.Uploader, error) {
	return storage.NewS3Uploader(ctx, p)
}

type App struct {
	config *config.Config
	log    logging.Logger
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(cfg *config.Config, log logging.Logger) *App {
	return &App{
		config: cfg,
		log:    log,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

// Run executes the configured mode and returns the process exit code.
func (a *App) Run(ctx context.Context) int {
	if err := a.config.Validate(); err != nil {
		a.log.Error(ctx, "invalid configuration", "err", err.Error())
		return ExitFatal
	}

	tokens := auth.NewCachedTokenSource(auth.NewCommandTokenSource(a.config.TokenCommand))
	client := kms.NewClient(a.config.KMSEndpoint, tokens,
		a.config.CallTimeout, a.config.RetryCount, a.config.RetryBackoff)
	keyID := kms.KeyID{
		Project:  a.config.Project,
		Location: a.config.Location,
		KeyRing:  a.config.KeyRing,
		Key:      a.config.Key,
	}

	if a.config.VerifyFile != "" {
		return a.runVerify(ctx, client, keyID)
	}

	return a.runBulk(ctx, client, keyID)
}

func (a *App) runBulk(ctx context.Context, client *kms.Client, keyID kms.KeyID) int {
	db, err := manifest.InitDatabase(ctx, a.config.ManifestPath)
	if err != nil {
		a.log.Error(ctx, "cannot open manifest database", "path", a.config.ManifestPath, "err", err.Error())
		return ExitFatal
	}
	defer db.Close()

	uploader, err := newUploader(ctx, storage.Params{
		Bucket:       a.config.Bucket,
		Region:       a.config.S3Region,
		BaseEndpoint: a.config.S3BaseEndpoint,
		AccessKey:    a.config.S3AccessKey,
		SecretKey:    a.config.S3SecretKey,
	})
	if err != nil {
		a.log.Error(ctx, "cannot initialize storage client", "err", err.Error())
		return ExitFatal
	}

	enc := bulk.NewEncryptor(a.log, manifest.NewSQLiteRepository(db), client, uploader, bulk.Options{
		RootDir:      a.config.RootDir,
		KeyID:        keyID,
		Prefix:       a.config.Prefix,
		Workers:      a.config.Workers,
		ManifestPath: a.config.ManifestPath,
	})

	stop := a.startProgress(enc)
	summary, err := enc.Run(ctx)
	stop()

	if err != nil {
		a.log.Error(ctx, "run aborted", "err", err.Error())
		return ExitFatal
	}

	a.printSummary(summary)

	if a.config.ReportFile != "" {
		if err := a.writeReport(ctx, enc, summary.RunID); err != nil {
			a.log.Error(ctx, "cannot write report", "path", a.config.ReportFile, "err", err.Error())
			return ExitFatal
		}
		fmt.Fprintf(a.out, "Report written to %s\n", a.config.ReportFile)
	}

	if err := a.maybeCleanup(ctx, enc, summary); err != nil {
		a.log.Error(ctx, "cleanup failed", "err", err.Error())
		return ExitFatal
	}

	if summary.Failures() > 0 {
		return ExitFailures
	}
	return ExitOK
}

// runVerify performs a single-file encrypt/decrypt round trip against the
// key service and reports whether the plaintext survived.
func (a *App) runVerify(ctx context.Context, client *kms.Client, keyID kms.KeyID) int {
	data, err := os.ReadFile(a.config.VerifyFile)
	if err != nil {
		a.log.Error(ctx, "cannot read file", "path", a.config.VerifyFile, "err", err.Error())
		return ExitFatal
	}
	if len(data) == 0 {
		a.log.Error(ctx, "cannot verify", "path", a.config.VerifyFile, "err", common.ErrorEmptyFileContent.Error())
		return ExitFatal
	}

	encoded := base64.StdEncoding.EncodeToString(data)

	ciphertext, err := client.Encrypt(ctx, keyID, encoded)
	if err != nil {
		a.log.Error(ctx, "encrypt failed", "err", err.Error())
		return ExitFatal
	}

	decoded, err := client.Decrypt(ctx, keyID, ciphertext)
	if err != nil {
		a.log.Error(ctx, "decrypt failed", "err", err.Error())
		return ExitFatal
	}

	if decoded != encoded {
		color.New(color.FgRed).Fprintln(a.out, "✗ round trip mismatch: decrypted content differs from original")
		return ExitFatal
	}

	color.New(color.FgGreen).Fprintf(a.out, "✓ %s round trip ok (%d bytes)\n", a.config.VerifyFile, len(data))
	return ExitOK
}

// startProgress attaches a spinner with a live file counter when stdout is
// an interactive terminal. In verbose mode the structured log is the
// progress channel instead.
func (a *App) startProgress(enc *bulk.Encryptor) func() {
	if a.config.Verbose || !isTerminal(int(os.Stdout.Fd())) {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " processing..."
	s.Start()

	var done atomic.Int64
	enc.OnFile = func(rec *manifest.FileRecord) {
		if rec.State == manifest.StatePending {
			return
		}
		s.Suffix = fmt.Sprintf(" processed %d files", done.Add(1))
	}

	return s.Stop
}

func (a *App) printSummary(s *bulk.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	failed := fmt.Sprint(s.EncryptFailed)
	if s.EncryptFailed > 0 {
		failed = red(failed)
	}
	uploadFailed := fmt.Sprint(s.UploadFailed)
	if s.UploadFailed > 0 {
		uploadFailed = red(uploadFailed)
	}

	fmt.Fprintf(a.out, "\nRun %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(a.out, "  files found:     %d\n", s.TotalFound)
	fmt.Fprintf(a.out, "  skipped (empty): %d\n", s.SkippedEmpty)
	fmt.Fprintf(a.out, "  encrypted:       %s\n", green(s.Encrypted))
	fmt.Fprintf(a.out, "  encrypt failed:  %s\n", failed)
	fmt.Fprintf(a.out, "  uploaded:        %s\n", green(s.Uploaded))
	fmt.Fprintf(a.out, "  upload failed:   %s\n", uploadFailed)
}

func (a *App) writeReport(ctx context.Context, enc *bulk.Encryptor, runID string) error {
	f, err := os.Create(a.config.ReportFile)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := enc.WriteReport(ctx, runID, f); err != nil {
		return err
	}
	return f.Close()
}

// maybeCleanup removes local ciphertext artifacts for uploaded files, either
// unconditionally when requested by flag or after an interactive prompt.
func (a *App) maybeCleanup(ctx context.Context, enc *bulk.Encryptor, s *bulk.Summary) error {
	if s.Uploaded == 0 {
		return nil
	}

	if !a.config.Cleanup {
		if !isTerminal(int(os.Stdin.Fd())) {
			return nil
		}
		question := fmt.Sprintf("Remove %d local ciphertext file(s) that were uploaded", s.Uploaded)
		ok, err := Confirm(a.in, a.out, question)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	removed, err := enc.Cleanup(ctx, s.RunID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %d local ciphertext file(s)\n", removed)
	return nil
}

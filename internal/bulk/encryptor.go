// Package bulk implements the directory encryption workflow: enumerate
// files, encrypt each through the external key service, persist ciphertext
// artifacts next to the originals, and upload them to object storage.
package bulk

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/bulkcrypt/internal/common"
	"github.com/dmitrijs2005/bulkcrypt/internal/filex"
	"github.com/dmitrijs2005/bulkcrypt/internal/kms"
	"github.com/dmitrijs2005/bulkcrypt/internal/logging"
	"github.com/dmitrijs2005/bulkcrypt/internal/manifest"
)

// KeyService is the subset of the key service client used by the workflow.
// Payloads are base64 strings on both sides of the wire.
type KeyService interface {
	Encrypt(ctx context.Context, key kms.KeyID, plaintextB64 string) (string, error)
	Decrypt(ctx context.Context, key kms.KeyID, ciphertext string) (string, error)
}

// Uploader persists a ciphertext artifact at the given storage key.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// Summary aggregates the terminal states of one run. Counts are derived
// from the manifest, never from in-memory tallies.
type Summary struct {
	RunID         string
	TotalFound    int
	SkippedEmpty  int
	Encrypted     int
	EncryptFailed int
	Uploaded      int
	UploadFailed  int
	Duration      time.Duration
}

// Failures returns the number of files that ended in a failed state.
func (s *Summary) Failures() int {
	return s.EncryptFailed + s.UploadFailed
}

// Options configures an Encryptor.
//
// Workers bounds the per-file worker pool; 1 reproduces strictly sequential
// processing. Suffix defaults to common.CiphertextSuffix. ManifestPath is
// excluded from traversal so the tool never encrypts its own database.
type Options struct {
	RootDir      string
	KeyID        kms.KeyID
	Prefix       string
	Workers      int
	Suffix       string
	ManifestPath string
}

// Encryptor drives one bulk run. Files are independent units of work; the
// only shared mutable state is the manifest, guarded by mu.
type Encryptor struct {
	log      logging.Logger
	repo     manifest.Repository
	keys     KeyService
	uploader Uploader
	opts     Options

	// OnFile, when set, observes every record state change. The CLI uses
	// it to drive progress output; it runs under mu and must not block.
	OnFile func(rec *manifest.FileRecord)

	mu sync.Mutex
}

func NewEncryptor(log logging.Logger, repo manifest.Repository, keys KeyService, uploader Uploader, opts Options) *Encryptor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Suffix == "" {
		opts.Suffix = common.CiphertextSuffix
	}
	return &Encryptor{
		log:      log,
		repo:     repo,
		keys:     keys,
		uploader: uploader,
		opts:     opts,
	}
}

type foundFile struct {
	path string
	size int64
}

// Run executes the full workflow and returns the run summary. Only
// configuration-level failures (unreadable root, manifest errors) abort the
// run; per-file failures are recorded and processing continues.
func (e *Encryptor) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	files, err := e.scan()
	if err != nil {
		return nil, err
	}

	run := &manifest.Run{ID: uuid.NewString(), RootDir: e.opts.RootDir, StartedAt: start}
	if err := e.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("registering run: %w", err)
	}

	for _, f := range files {
		rec := &manifest.FileRecord{RunID: run.ID, Path: f.path, Size: f.size, State: manifest.StatePending}
		if err := e.setRecord(ctx, rec); err != nil {
			return nil, err
		}
	}

	e.log.Info(ctx, "starting encrypt phase", "run_id", run.ID, "files", len(files), "workers", e.opts.Workers)
	if err := e.encryptAll(ctx, run.ID, files); err != nil {
		return nil, err
	}

	// The upload phase re-reads artifacts from disk rather than trusting
	// in-memory state, so it also works after a restart between phases.
	artifacts, err := e.scanArtifacts()
	if err != nil {
		return nil, err
	}

	e.log.Info(ctx, "starting upload phase", "run_id", run.ID, "artifacts", len(artifacts))
	if err := e.uploadAll(ctx, run.ID, artifacts); err != nil {
		return nil, err
	}

	summary, err := e.summarize(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	summary.Duration = time.Since(start)

	return summary, nil
}

// scan enumerates regular files under the root in lexicographic path order,
// excluding ciphertext artifacts and the manifest database files.
func (e *Encryptor) scan() ([]foundFile, error) {
	skip := e.manifestPaths()

	var files []foundFile

	err := filepath.WalkDir(e.opts.RootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if filex.IsArtifact(d.Name(), e.opts.Suffix) {
			return nil
		}
		if _, ok := skip[path]; ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		files = append(files, foundFile{path: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorBadRootDir, err)
	}

	return files, nil
}

func (e *Encryptor) scanArtifacts() ([]string, error) {
	var artifacts []string

	err := filepath.WalkDir(e.opts.RootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if filex.IsArtifact(d.Name(), e.opts.Suffix) {
			artifacts = append(artifacts, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating artifacts: %w", err)
	}

	return artifacts, nil
}

// manifestPaths returns the manifest database path and its SQLite side
// files, resolved the same way the walker reports paths.
func (e *Encryptor) manifestPaths() map[string]struct{} {
	skip := make(map[string]struct{})
	if e.opts.ManifestPath == "" {
		return skip
	}
	for _, ext := range []string{"", "-journal", "-wal", "-shm"} {
		p := e.opts.ManifestPath + ext
		skip[p] = struct{}{}
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = struct{}{}
		}
	}
	return skip
}

func (e *Encryptor) encryptAll(ctx context.Context, runID string, files []foundFile) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return e.encryptOne(ctx, runID, f)
		})
	}

	return g.Wait()
}

// encryptOne advances a single file to its encrypt-phase terminal state.
// It returns an error only for manifest failures or cancellation; per-file
// problems end up in the record.
func (e *Encryptor) encryptOne(ctx context.Context, runID string, f foundFile) error {
	rec := &manifest.FileRecord{RunID: runID, Path: f.path, Size: f.size}

	if f.size == 0 {
		rec.State = manifest.StateSkippedEmpty
		rec.Detail = common.ErrorEmptyFileContent.Error()
		return e.setRecord(ctx, rec)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return e.fail(ctx, rec, "read", err)
	}

	if len(data) > common.MaxPlaintextSize {
		return e.fail(ctx, rec, "encode", common.ErrorPlaintextTooBig)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	if encoded == "" {
		return e.fail(ctx, rec, "encode", common.ErrorEmptyEncoding)
	}

	ciphertext, err := e.keys.Encrypt(ctx, e.opts.KeyID, encoded)
	if err != nil {
		return e.fail(ctx, rec, "encrypt", err)
	}

	artifact := filex.ArtifactFor(f.path, e.opts.Suffix)
	if err := os.WriteFile(artifact, []byte(ciphertext), 0o600); err != nil {
		return e.fail(ctx, rec, "persist", err)
	}

	rec.State = manifest.StateEncrypted
	return e.setRecord(ctx, rec)
}

func (e *Encryptor) uploadAll(ctx context.Context, runID string, artifacts []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, artifact := range artifacts {
		artifact := artifact
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return e.uploadOne(ctx, runID, artifact)
		})
	}

	return g.Wait()
}

func (e *Encryptor) uploadOne(ctx context.Context, runID, artifact string) error {
	source, ok := filex.SourceFor(artifact, e.opts.Suffix)
	if !ok {
		return nil
	}

	rec, err := e.getRecord(ctx, runID, source)
	if err != nil {
		// artifact left behind by an earlier run whose source is gone;
		// not part of this run's contract
		e.log.Warn(ctx, "skipping artifact without a record in this run", "artifact", artifact)
		return nil
	}
	if rec.State != manifest.StateEncrypted {
		return nil
	}

	body, err := os.ReadFile(artifact)
	if err != nil {
		return e.failUpload(ctx, rec, err)
	}

	key, err := filex.ObjectKey(e.opts.RootDir, artifact, e.opts.Prefix)
	if err != nil {
		return e.failUpload(ctx, rec, err)
	}

	if err := e.uploader.Upload(ctx, key, body); err != nil {
		return e.failUpload(ctx, rec, err)
	}

	rec.State = manifest.StateUploaded
	rec.Detail = ""
	return e.setRecord(ctx, rec)
}

func (e *Encryptor) fail(ctx context.Context, rec *manifest.FileRecord, phase string, cause error) error {
	rec.State = manifest.StateFailed
	rec.Detail = fmt.Sprintf("%s: %v", phase, cause)
	e.log.Warn(ctx, "file failed", "path", rec.Path, "phase", phase, "err", cause.Error())
	return e.setRecord(ctx, rec)
}

func (e *Encryptor) failUpload(ctx context.Context, rec *manifest.FileRecord, cause error) error {
	rec.State = manifest.StateUploadFailed
	rec.Detail = fmt.Sprintf("upload: %v", cause)
	e.log.Warn(ctx, "file failed", "path", rec.Path, "phase", "upload", "err", cause.Error())
	return e.setRecord(ctx, rec)
}

func (e *Encryptor) setRecord(ctx context.Context, rec *manifest.FileRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("updating manifest for %s: %w", rec.Path, err)
	}
	if e.OnFile != nil {
		e.OnFile(rec)
	}
	return nil
}

func (e *Encryptor) getRecord(ctx context.Context, runID, path string) (*manifest.FileRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repo.Get(ctx, runID, path)
}

func (e *Encryptor) summarize(ctx context.Context, runID string) (*Summary, error) {
	counts, err := e.repo.CountStates(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("summarizing run: %w", err)
	}

	// a record counts as encrypted even after the upload phase moved it on
	encrypted := counts[manifest.StateEncrypted] +
		counts[manifest.StateUploaded] +
		counts[manifest.StateUploadFailed]

	s := &Summary{
		RunID:         runID,
		SkippedEmpty:  counts[manifest.StateSkippedEmpty],
		Encrypted:     encrypted,
		EncryptFailed: counts[manifest.StateFailed],
		Uploaded:      counts[manifest.StateUploaded],
		UploadFailed:  counts[manifest.StateUploadFailed],
	}
	s.TotalFound = s.SkippedEmpty + s.Encrypted + s.EncryptFailed + counts[manifest.StatePending]

	return s, nil
}

// Cleanup removes local ciphertext artifacts for every file the run
// uploaded successfully. It returns the number of artifacts removed.
func (e *Encryptor) Cleanup(ctx context.Context, runID string) (int, error) {
	uploaded, err := e.repo.ListByState(ctx, runID, manifest.StateUploaded)
	if err != nil {
		return 0, fmt.Errorf("listing uploaded files: %w", err)
	}

	removed := 0
	for _, rec := range uploaded {
		artifact := filex.ArtifactFor(rec.Path, e.opts.Suffix)
		if err := os.Remove(artifact); err != nil {
			e.log.Warn(ctx, "failed to remove artifact", "artifact", artifact, "err", err.Error())
			continue
		}
		removed++
	}

	return removed, nil
}

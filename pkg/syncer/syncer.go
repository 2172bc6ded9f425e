package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/OpenSiFli/SiFliMirrorSync/pkg/cosclient"
	"github.com/OpenSiFli/SiFliMirrorSync/pkg/stager"
)

const defaultConcurrency = 8

// UploadError reports that the staged batch failed on both endpoints.
type UploadError struct {
	Attempts int
	Err      error // failure on the last endpoint tried
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DeleteFailure records one stale key that could not be deleted.
type DeleteFailure struct {
	Key string
	Err error
}

// Result is the outcome of one sync run.
type Result struct {
	Uploaded       int
	Deleted        int
	Endpoint       cosclient.Endpoint // endpoint the upload succeeded on
	ListErr        error              // listing failed, reconciliation skipped
	DeleteFailures []DeleteFailure
}

// Engine uploads a staging tree to a remote prefix and reconciles remote
// state against it.
type Engine struct {
	client      cosclient.Client
	concurrency int
}

func New(client cosclient.Client, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Engine{
		client:      client,
		concurrency: concurrency,
	}
}

// Sync uploads every staged file to prefix, falling back from the primary to
// the accelerated endpoint on failure, then (if deleteRemote is set) deletes
// remote objects under prefix that are absent from the tree.
//
// The fallback re-issues the entire batch, not just the files that failed;
// at most two full-batch attempts are made. Reconciliation runs only after a
// successful upload phase, and its per-key failures are collected in the
// Result rather than failing the run.
func (e *Engine) Sync(ctx context.Context, tree *stager.Tree, prefix string, deleteRemote bool) (*Result, error) {
	prefix = NormalizePrefix(prefix)
	files := tree.Files()

	result := &Result{}

	endpoints := []cosclient.Endpoint{cosclient.EndpointPrimary, cosclient.EndpointAccelerated}
	for i, endpoint := range endpoints {
		e.client.ConfigureEndpoint(endpoint)
		slog.Info("uploading staged files", "endpoint", endpoint, "files", len(files), "prefix", prefix)

		err := e.uploadBatch(ctx, files, prefix)
		if err == nil {
			result.Uploaded = len(files)
			result.Endpoint = endpoint
			break
		}
		if i == len(endpoints)-1 {
			return nil, &UploadError{Attempts: len(endpoints), Err: err}
		}
		slog.Warn("upload failed, retrying full batch on accelerated endpoint", "error", err)
	}

	if deleteRemote {
		e.reconcile(ctx, tree, prefix, result)
	}

	return result, nil
}

func (e *Engine) uploadBatch(ctx context.Context, files []stager.StagedFile, prefix string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, file := range files {
		file := file
		g.Go(func() error {
			slog.Debug("upload", "key", prefix+file.Key)
			return e.client.Upload(ctx, &cosclient.UploadRequest{
				Key:       prefix + file.Key,
				LocalPath: file.Source,
			})
		})
	}

	return g.Wait()
}

// reconcile deletes remote objects under prefix that are not in the staged
// tree. One listing snapshot is taken; deletions are best-effort per key.
func (e *Engine) reconcile(ctx context.Context, tree *stager.Tree, prefix string, result *Result) {
	remoteKeys, err := e.client.ListKeys(ctx, prefix)
	if err != nil {
		slog.Warn("listing remote keys failed, skipping reconciliation", "error", err)
		result.ListErr = fmt.Errorf("list keys: %w", err)
		return
	}

	stale := StaleKeys(remoteKeys, tree.Keys(), prefix)
	if len(stale) == 0 {
		slog.Info("no stale remote objects")
		return
	}

	for _, key := range stale {
		slog.Info("deleting stale remote object", "key", key)
		if err := e.client.Delete(ctx, key); err != nil {
			slog.Warn("delete failed", "key", key, "error", err)
			result.DeleteFailures = append(result.DeleteFailures, DeleteFailure{Key: key, Err: err})
			continue
		}
		result.Deleted++
	}
}

package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/OpenSiFli/SiFliMirrorSync/pkg/cosclient"
	"github.com/OpenSiFli/SiFliMirrorSync/pkg/resolver"
	"github.com/OpenSiFli/SiFliMirrorSync/pkg/stager"
)

func stageFiles(t *testing.T, names ...string) *stager.Tree {
	t.Helper()

	dir := t.TempDir()
	var entries []resolver.Entry
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		entries = append(entries, resolver.Entry{Path: path, Pattern: name})
	}

	tree, err := stager.Stage(entries)
	if err != nil {
		t.Fatalf("stage fixtures: %v", err)
	}
	t.Cleanup(func() { tree.Close() })
	return tree
}

func sortedUploads(m *mockClient, endpoint cosclient.Endpoint) []string {
	keys := append([]string(nil), m.uploads[endpoint]...)
	sort.Strings(keys)
	return keys
}

func TestSyncPrimarySuccess(t *testing.T) {
	tree := stageFiles(t, "a.txt", "b.txt", "c.txt")
	client := newMockClient()

	result, err := New(client, 2).Sync(context.Background(), tree, "rel", false)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if result.Endpoint != cosclient.EndpointPrimary {
		t.Errorf("Endpoint = %s, want %s", result.Endpoint, cosclient.EndpointPrimary)
	}
	if result.Uploaded != 3 {
		t.Errorf("Uploaded = %d, want 3", result.Uploaded)
	}

	want := []string{"rel/a.txt", "rel/b.txt", "rel/c.txt"}
	if got := sortedUploads(client, cosclient.EndpointPrimary); !reflect.DeepEqual(got, want) {
		t.Errorf("uploaded keys = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(client.configCalls, []cosclient.Endpoint{cosclient.EndpointPrimary}) {
		t.Errorf("configCalls = %v, want primary only", client.configCalls)
	}
	if client.listCalls != 0 || len(client.deletes) != 0 {
		t.Errorf("unexpected remote reads/deletes: lists=%d deletes=%v", client.listCalls, client.deletes)
	}
}

func TestSyncFallbackRetriesEntireBatch(t *testing.T) {
	tree := stageFiles(t, "a.txt", "b.txt", "c.txt")
	client := newMockClient()
	client.uploadFunc = failEndpoint(cosclient.EndpointPrimary)

	result, err := New(client, 2).Sync(context.Background(), tree, "rel/", false)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if result.Endpoint != cosclient.EndpointAccelerated {
		t.Errorf("Endpoint = %s, want %s", result.Endpoint, cosclient.EndpointAccelerated)
	}

	// The fallback must re-issue all files, not just the ones that failed.
	want := []string{"rel/a.txt", "rel/b.txt", "rel/c.txt"}
	if got := sortedUploads(client, cosclient.EndpointAccelerated); !reflect.DeepEqual(got, want) {
		t.Errorf("accelerated uploads = %v, want %v", got, want)
	}

	wantCalls := []cosclient.Endpoint{cosclient.EndpointPrimary, cosclient.EndpointAccelerated}
	if !reflect.DeepEqual(client.configCalls, wantCalls) {
		t.Errorf("configCalls = %v, want %v", client.configCalls, wantCalls)
	}
}

func TestSyncBothEndpointsFail(t *testing.T) {
	tree := stageFiles(t, "a.txt")
	client := newMockClient()
	client.uploadFunc = failEndpoint(cosclient.EndpointPrimary, cosclient.EndpointAccelerated)

	_, err := New(client, 1).Sync(context.Background(), tree, "rel/", true)

	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("Sync() error = %v, want *UploadError", err)
	}
	if uploadErr.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", uploadErr.Attempts)
	}

	// Never touch remote state for reconciliation after a failed upload.
	if client.listCalls != 0 || len(client.deletes) != 0 {
		t.Errorf("reconciliation ran after failed upload: lists=%d deletes=%v", client.listCalls, client.deletes)
	}
}

func TestSyncReconcileDeletesStaleOnly(t *testing.T) {
	tree := stageFiles(t, "a.txt", "c.txt")
	client := newMockClient()
	client.remoteKeys = []string{"rel/a.txt", "rel/b.txt", "rel/c.txt"}

	result, err := New(client, 1).Sync(context.Background(), tree, "rel/", true)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if client.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1", client.listCalls)
	}
	if !reflect.DeepEqual(client.deletes, []string{"rel/b.txt"}) {
		t.Errorf("deletes = %v, want [rel/b.txt]", client.deletes)
	}
	if result.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", result.Deleted)
	}
	if len(result.DeleteFailures) != 0 {
		t.Errorf("DeleteFailures = %v, want none", result.DeleteFailures)
	}
}

func TestSyncDeleteDisabled(t *testing.T) {
	tree := stageFiles(t, "a.txt")
	client := newMockClient()
	client.remoteKeys = []string{"rel/a.txt", "rel/stale.txt"}

	result, err := New(client, 1).Sync(context.Background(), tree, "rel/", false)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if client.listCalls != 0 || len(client.deletes) != 0 {
		t.Errorf("remote touched with delete disabled: lists=%d deletes=%v", client.listCalls, client.deletes)
	}
	if result.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0", result.Deleted)
	}
}

func TestSyncDeleteFailuresAreNonFatal(t *testing.T) {
	tree := stageFiles(t, "a.txt")
	client := newMockClient()
	client.remoteKeys = []string{"rel/a.txt", "rel/gone1.txt", "rel/gone2.txt"}
	client.deleteFunc = func(key string) error {
		if key == "rel/gone1.txt" {
			return fmt.Errorf("injected delete failure")
		}
		return nil
	}

	result, err := New(client, 1).Sync(context.Background(), tree, "rel/", true)
	if err != nil {
		t.Fatalf("Sync() error = %v, want nil despite delete failure", err)
	}

	if result.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", result.Deleted)
	}
	if len(result.DeleteFailures) != 1 || result.DeleteFailures[0].Key != "rel/gone1.txt" {
		t.Errorf("DeleteFailures = %v, want one failure for rel/gone1.txt", result.DeleteFailures)
	}
}

func TestSyncListFailureSkipsReconciliation(t *testing.T) {
	tree := stageFiles(t, "a.txt")
	client := newMockClient()
	client.listKeysFunc = func(prefix string) ([]string, error) {
		return nil, fmt.Errorf("injected list failure")
	}

	result, err := New(client, 1).Sync(context.Background(), tree, "rel/", true)
	if err != nil {
		t.Fatalf("Sync() error = %v, want nil", err)
	}

	if len(client.deletes) != 0 {
		t.Errorf("deletes = %v, want none", client.deletes)
	}
	if result.ListErr == nil {
		t.Error("ListErr = nil, want the recorded list failure")
	}
	if len(result.DeleteFailures) != 0 {
		t.Errorf("DeleteFailures = %v, want none for a listing failure", result.DeleteFailures)
	}
}

func TestSyncPrefixNormalization(t *testing.T) {
	for _, prefix := range []string{"rel", "rel/"} {
		t.Run(prefix, func(t *testing.T) {
			tree := stageFiles(t, "a.txt")
			client := newMockClient()
			client.remoteKeys = []string{"rel/a.txt", "rel/stale.txt"}

			result, err := New(client, 1).Sync(context.Background(), tree, prefix, true)
			if err != nil {
				t.Fatalf("Sync() error = %v", err)
			}

			if got := sortedUploads(client, cosclient.EndpointPrimary); !reflect.DeepEqual(got, []string{"rel/a.txt"}) {
				t.Errorf("uploads = %v, want [rel/a.txt]", got)
			}
			if !reflect.DeepEqual(client.deletes, []string{"rel/stale.txt"}) {
				t.Errorf("deletes = %v, want [rel/stale.txt]", client.deletes)
			}
			if result.Deleted != 1 {
				t.Errorf("Deleted = %d, want 1", result.Deleted)
			}
		})
	}
}

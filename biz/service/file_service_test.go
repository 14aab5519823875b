package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yi-nology/filebridge/biz/dal/db"
	"github.com/yi-nology/filebridge/pkg/storage"
	"github.com/yi-nology/filebridge/pkg/transfer"
	"github.com/yi-nology/filebridge/pkg/urlcache"
)

// fakeBackend stores objects in memory and records calls.
type fakeBackend struct {
	mu           sync.Mutex
	objects      map[string][]byte
	failUpload   bool
	failDelete   bool
	cancelUpload context.CancelFunc
	deletes      []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{objects: make(map[string][]byte)}
}

func (b *fakeBackend) key(scope storage.Scope, fileID string) string {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		panic(err)
	}
	return key
}

func (b *fakeBackend) Exists(ctx context.Context, scope storage.Scope, fileID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[b.key(scope, fileID)]
	return ok, nil
}

func (b *fakeBackend) Upload(ctx context.Context, scope storage.Scope, fileID string, data []byte, contentType string) error {
	if b.cancelUpload != nil {
		b.cancelUpload()
		return ctx.Err()
	}
	if b.failUpload {
		return errors.New("simulated upload failure")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[b.key(scope, fileID)] = append([]byte(nil), data...)
	return nil
}

func (b *fakeBackend) Download(ctx context.Context, scope storage.Scope, fileID string) (*storage.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[b.key(scope, fileID)]
	if !ok {
		return nil, fmt.Errorf("%w (key = %s)", storage.ErrObjectNotFound, b.key(scope, fileID))
	}
	return &storage.Object{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
	}, nil
}

func (b *fakeBackend) Delete(ctx context.Context, scope storage.Scope, fileID string) error {
	if b.failDelete {
		return errors.New("simulated delete failure")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := b.key(scope, fileID)
	delete(b.objects, key)
	b.deletes = append(b.deletes, key)
	return nil
}

func (b *fakeBackend) Type() string { return "fake" }

func (b *fakeBackend) stored(scope storage.Scope, fileID string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[b.key(scope, fileID)]
	return data, ok
}

// signingBackend adds presigned-URL support on top of fakeBackend.
type signingBackend struct {
	*fakeBackend
	signs int
}

func (b *signingBackend) SignDownloadURL(ctx context.Context, scope storage.Scope, fileID, fileName string, expiry time.Duration) (string, error) {
	b.signs++
	return fmt.Sprintf("https://signed.example/%s?n=%d", b.key(scope, fileID), b.signs), nil
}

// recordingIdentity records workspace checks and optionally rejects them.
type recordingIdentity struct {
	checks []string
	err    error
}

func (r *recordingIdentity) CheckWorkspace(ctx context.Context, workspaceID, domainID string) error {
	r.checks = append(r.checks, workspaceID+"/"+domainID)
	return r.err
}

func newTestService(t *testing.T, backend storage.Backend, identity IdentityChecker) (*Service, *gorm.DB) {
	t.Helper()
	dbConn := db.SetupTestDB(t)
	t.Cleanup(func() { db.CleanupTestDB(t, dbConn) })
	coordinator := transfer.New(backend, 64*1024)
	urls := urlcache.New(nil, time.Minute)
	return NewService(dbConn, backend, coordinator, urls, identity), dbConn
}

func workspaceInput(name string, body io.Reader) *FileAddInput {
	return &FileAddInput{
		Name:          name,
		ResourceGroup: storage.ScopeWorkspace,
		DomainID:      "domain-1",
		WorkspaceID:   "workspace-42",
		ContentType:   "application/octet-stream",
		Body:          body,
	}
}

func TestService_AddFile(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		backend := newFakeBackend()
		identity := &recordingIdentity{}
		svc, _ := newTestService(t, backend, identity)

		payload := bytes.Repeat([]byte("x"), 3*1024*1024)
		file, err := svc.AddFile(ctx, workspaceInput("archive.tar.gz", bytes.NewReader(payload)))
		if err != nil {
			t.Fatalf("AddFile failed: %v", err)
		}

		if !strings.HasPrefix(file.FileID, "file-") {
			t.Errorf("Expected generated file_id, got '%s'", file.FileID)
		}
		if file.FileType != "gz" {
			t.Errorf("Expected file_type 'gz', got '%s'", file.FileType)
		}
		if file.ProjectID != "*" || file.UserID != "*" {
			t.Errorf("Expected wildcard project/user ids, got '%s'/'%s'", file.ProjectID, file.UserID)
		}

		stored, ok := backend.stored(storage.ScopeWorkspace, file.FileID)
		if !ok {
			t.Fatal("Expected object to be stored")
		}
		if len(stored) != len(payload) {
			t.Errorf("Expected %d stored bytes, got %d", len(payload), len(stored))
		}
		if len(identity.checks) != 1 || identity.checks[0] != "workspace-42/domain-1" {
			t.Errorf("Expected one workspace check, got %v", identity.checks)
		}
	})

	t.Run("UploadFailureRollsBackRecord", func(t *testing.T) {
		backend := newFakeBackend()
		backend.failUpload = true
		svc, _ := newTestService(t, backend, nil)

		_, err := svc.AddFile(ctx, workspaceInput("doomed.bin", bytes.NewReader([]byte("data"))))
		if !errors.Is(err, ErrFileUploadFailed) {
			t.Fatalf("Expected ErrFileUploadFailed, got %v", err)
		}

		files, err := svc.ListFiles(ctx, db.ListFilter{})
		if err != nil {
			t.Fatalf("ListFiles failed: %v", err)
		}
		if len(files) != 0 {
			t.Errorf("Expected no surviving records after rollback, got %d", len(files))
		}
	})

	t.Run("CanceledContextStillRollsBack", func(t *testing.T) {
		backend := newFakeBackend()
		svc, _ := newTestService(t, backend, nil)

		uploadCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		backend.cancelUpload = cancel

		_, err := svc.AddFile(uploadCtx, workspaceInput("cut-off.bin", bytes.NewReader([]byte("data"))))
		if !errors.Is(err, ErrFileUploadFailed) {
			t.Fatalf("Expected ErrFileUploadFailed, got %v", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected the cancellation cause to surface, got %v", err)
		}

		// The rollback must not ride the dead upload context.
		files, err := svc.ListFiles(context.Background(), db.ListFilter{})
		if err != nil {
			t.Fatalf("ListFiles failed: %v", err)
		}
		if len(files) != 0 {
			t.Errorf("Expected rollback to remove the record despite cancellation, got %d records", len(files))
		}
	})

	t.Run("IdentityRejection", func(t *testing.T) {
		backend := newFakeBackend()
		identity := &recordingIdentity{err: ErrWorkspaceNotFound}
		svc, _ := newTestService(t, backend, identity)

		_, err := svc.AddFile(ctx, workspaceInput("nope.txt", bytes.NewReader([]byte("x"))))
		if !errors.Is(err, ErrWorkspaceNotFound) {
			t.Fatalf("Expected ErrWorkspaceNotFound, got %v", err)
		}
		files, _ := svc.ListFiles(ctx, db.ListFilter{})
		if len(files) != 0 {
			t.Error("Expected no record after identity rejection")
		}
	})

	t.Run("MissingScopeIDs", func(t *testing.T) {
		svc, _ := newTestService(t, newFakeBackend(), nil)
		_, err := svc.AddFile(ctx, &FileAddInput{
			Name:          "x.txt",
			ResourceGroup: storage.ScopeWorkspace,
			DomainID:      "domain-1",
			Body:          bytes.NewReader([]byte("x")),
		})
		if err == nil || !strings.Contains(err.Error(), "workspace_id") {
			t.Errorf("Expected workspace_id requirement error, got %v", err)
		}
	})

	t.Run("UnsupportedScope", func(t *testing.T) {
		svc, _ := newTestService(t, newFakeBackend(), nil)
		_, err := svc.AddFile(ctx, &FileAddInput{
			Name:          "x.txt",
			ResourceGroup: "GALAXY",
			Body:          bytes.NewReader([]byte("x")),
		})
		if !errors.Is(err, storage.ErrUnsupportedScope) {
			t.Errorf("Expected ErrUnsupportedScope, got %v", err)
		}
	})

	t.Run("SystemScopeNeedsNoIDs", func(t *testing.T) {
		backend := newFakeBackend()
		svc, _ := newTestService(t, backend, nil)
		file, err := svc.AddFile(ctx, &FileAddInput{
			Name:          "bootstrap.yaml",
			ResourceGroup: storage.ScopeSystem,
			Body:          bytes.NewReader([]byte("a: 1")),
		})
		if err != nil {
			t.Fatalf("AddFile failed: %v", err)
		}
		if _, ok := backend.stored(storage.ScopeSystem, file.FileID); !ok {
			t.Error("Expected object stored under public prefix")
		}
	})
}

func TestService_UpdateFile(t *testing.T) {
	ctx := context.Background()

	t.Run("TagsAndReference", func(t *testing.T) {
		svc, _ := newTestService(t, newFakeBackend(), nil)
		file, err := svc.AddFile(ctx, workspaceInput("tagged.txt", bytes.NewReader([]byte("x"))))
		if err != nil {
			t.Fatalf("AddFile failed: %v", err)
		}

		resourceType := "inventory.Asset"
		resourceID := "asset-9"
		updated, err := svc.UpdateFile(ctx, file.FileID, db.ScopeFilter{}, &FileUpdateInput{
			Tags:         map[string]string{"team": "core"},
			ResourceType: &resourceType,
			ResourceID:   &resourceID,
		})
		if err != nil {
			t.Fatalf("UpdateFile failed: %v", err)
		}
		if updated.Tags["team"] != "core" {
			t.Errorf("Expected tag to be stored, got %v", updated.Tags)
		}
		if updated.Reference.ResourceType != "inventory.Asset" || updated.Reference.ResourceID != "asset-9" {
			t.Errorf("Expected reference update, got %+v", updated.Reference)
		}
		if updated.ResourceGroup != string(storage.ScopeWorkspace) {
			t.Errorf("Scope must not change, got '%s'", updated.ResourceGroup)
		}
	})

	t.Run("ProjectAttachOnDomainFileRejected", func(t *testing.T) {
		svc, _ := newTestService(t, newFakeBackend(), nil)
		file, err := svc.AddFile(ctx, &FileAddInput{
			Name:          "domain.txt",
			ResourceGroup: storage.ScopeDomain,
			DomainID:      "domain-1",
			Body:          bytes.NewReader([]byte("x")),
		})
		if err != nil {
			t.Fatalf("AddFile failed: %v", err)
		}

		projectID := "project-1"
		_, err = svc.UpdateFile(ctx, file.FileID, db.ScopeFilter{}, &FileUpdateInput{ProjectID: &projectID})
		if !errors.Is(err, ErrChangeScope) {
			t.Errorf("Expected ErrChangeScope, got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, _ := newTestService(t, newFakeBackend(), nil)
		_, err := svc.UpdateFile(ctx, "file-missing", db.ScopeFilter{}, &FileUpdateInput{})
		if !errors.Is(err, ErrFileNotFound) {
			t.Errorf("Expected ErrFileNotFound, got %v", err)
		}
	})
}

func TestService_DeleteFile(t *testing.T) {
	ctx := context.Background()

	t.Run("ObjectThenRecord", func(t *testing.T) {
		backend := newFakeBackend()
		svc, _ := newTestService(t, backend, nil)
		file, err := svc.AddFile(ctx, workspaceInput("gone.txt", bytes.NewReader([]byte("x"))))
		if err != nil {
			t.Fatalf("AddFile failed: %v", err)
		}

		if err := svc.DeleteFile(ctx, file.FileID, db.ScopeFilter{}); err != nil {
			t.Fatalf("DeleteFile failed: %v", err)
		}
		if _, ok := backend.stored(storage.ScopeWorkspace, file.FileID); ok {
			t.Error("Expected object to be removed")
		}
		if _, err := svc.GetFile(ctx, file.FileID, db.ScopeFilter{}); !errors.Is(err, ErrFileNotFound) {
			t.Errorf("Expected record to be removed, got %v", err)
		}
	})

	t.Run("ObjectDeleteFailureKeepsRecord", func(t *testing.T) {
		backend := newFakeBackend()
		svc, _ := newTestService(t, backend, nil)
		file, err := svc.AddFile(ctx, workspaceInput("stuck.txt", bytes.NewReader([]byte("x"))))
		if err != nil {
			t.Fatalf("AddFile failed: %v", err)
		}

		backend.failDelete = true
		err = svc.DeleteFile(ctx, file.FileID, db.ScopeFilter{})
		if !errors.Is(err, ErrFileDeleteFailed) {
			t.Fatalf("Expected ErrFileDeleteFailed, got %v", err)
		}
		if _, err := svc.GetFile(ctx, file.FileID, db.ScopeFilter{}); err != nil {
			t.Errorf("Expected record to survive failed object delete, got %v", err)
		}
	})

	t.Run("StaleObjectStillDeletes", func(t *testing.T) {
		backend := newFakeBackend()
		svc, _ := newTestService(t, backend, nil)
		file, err := svc.AddFile(ctx, workspaceInput("stale.txt", bytes.NewReader([]byte("x"))))
		if err != nil {
			t.Fatalf("AddFile failed: %v", err)
		}

		// Object disappears out of band; delete of a missing object succeeds.
		backend.mu.Lock()
		backend.objects = make(map[string][]byte)
		backend.mu.Unlock()

		if err := svc.DeleteFile(ctx, file.FileID, db.ScopeFilter{}); err != nil {
			t.Fatalf("DeleteFile of stale record failed: %v", err)
		}
		if _, err := svc.GetFile(ctx, file.FileID, db.ScopeFilter{}); !errors.Is(err, ErrFileNotFound) {
			t.Errorf("Expected record to be removed, got %v", err)
		}
	})
}

func TestService_DownloadFile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newFakeBackend(), nil)

	payload := bytes.Repeat([]byte("payload-"), 128*1024)
	file, err := svc.AddFile(ctx, workspaceInput("round.bin", bytes.NewReader(payload)))
	if err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}

	t.Run("RoundTrip", func(t *testing.T) {
		meta, stream, err := svc.DownloadFile(ctx, file.FileID, db.ScopeFilter{})
		if err != nil {
			t.Fatalf("DownloadFile failed: %v", err)
		}
		defer stream.Close()

		if meta.Name != "round.bin" {
			t.Errorf("Expected name 'round.bin', got '%s'", meta.Name)
		}
		got, err := io.ReadAll(stream)
		if err != nil {
			t.Fatalf("Reading stream failed: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("Downloaded %d bytes, expected %d identical bytes", len(got), len(payload))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, _, err := svc.DownloadFile(ctx, "file-missing", db.ScopeFilter{})
		if !errors.Is(err, ErrFileNotFound) {
			t.Errorf("Expected ErrFileNotFound, got %v", err)
		}
	})

	t.Run("ScopeFilterHides", func(t *testing.T) {
		_, _, err := svc.DownloadFile(ctx, file.FileID, db.ScopeFilter{DomainID: "other-domain"})
		if !errors.Is(err, ErrFileNotFound) {
			t.Errorf("Expected ErrFileNotFound under foreign scope, got %v", err)
		}
	})
}

func TestService_ObjectPresence(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	svc, _ := newTestService(t, backend, nil)

	file, err := svc.AddFile(ctx, workspaceInput("present.txt", bytes.NewReader([]byte("x"))))
	if err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}

	t.Run("TrueAfterAdd", func(t *testing.T) {
		present, err := backend.Exists(ctx, storage.ScopeWorkspace, file.FileID)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if !present {
			t.Error("Expected object to exist after add")
		}
	})

	t.Run("FalseAfterDelete", func(t *testing.T) {
		if err := svc.DeleteFile(ctx, file.FileID, db.ScopeFilter{}); err != nil {
			t.Fatalf("DeleteFile failed: %v", err)
		}
		present, err := backend.Exists(ctx, storage.ScopeWorkspace, file.FileID)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if present {
			t.Error("Expected object to be gone after delete")
		}
	})
}

func TestService_GetDownloadURL(t *testing.T) {
	ctx := context.Background()

	t.Run("SignedAndCached", func(t *testing.T) {
		backend := &signingBackend{fakeBackend: newFakeBackend()}
		svc, _ := newTestService(t, backend, nil)
		file, err := svc.AddFile(ctx, workspaceInput("signed.txt", bytes.NewReader([]byte("x"))))
		if err != nil {
			t.Fatalf("AddFile failed: %v", err)
		}

		first, err := svc.GetDownloadURL(ctx, file.FileID, db.ScopeFilter{})
		if err != nil {
			t.Fatalf("GetDownloadURL failed: %v", err)
		}
		second, err := svc.GetDownloadURL(ctx, file.FileID, db.ScopeFilter{})
		if err != nil {
			t.Fatalf("GetDownloadURL failed: %v", err)
		}
		if first != second {
			t.Errorf("Expected cached URL, got '%s' then '%s'", first, second)
		}
		if backend.signs != 1 {
			t.Errorf("Expected one signing call, got %d", backend.signs)
		}
	})

	t.Run("UnsupportedBackend", func(t *testing.T) {
		svc, _ := newTestService(t, newFakeBackend(), nil)
		file, err := svc.AddFile(ctx, workspaceInput("plain.txt", bytes.NewReader([]byte("x"))))
		if err != nil {
			t.Fatalf("AddFile failed: %v", err)
		}
		_, err = svc.GetDownloadURL(ctx, file.FileID, db.ScopeFilter{})
		if !errors.Is(err, ErrDownloadURLNotSupported) {
			t.Errorf("Expected ErrDownloadURLNotSupported, got %v", err)
		}
	})

	t.Run("StaleObjectRejected", func(t *testing.T) {
		backend := &signingBackend{fakeBackend: newFakeBackend()}
		svc, _ := newTestService(t, backend, nil)
		file, err := svc.AddFile(ctx, workspaceInput("vanished.txt", bytes.NewReader([]byte("x"))))
		if err != nil {
			t.Fatalf("AddFile failed: %v", err)
		}

		// Object disappears out of band; no URL may be signed for it.
		backend.mu.Lock()
		backend.objects = make(map[string][]byte)
		backend.mu.Unlock()

		_, err = svc.GetDownloadURL(ctx, file.FileID, db.ScopeFilter{})
		if !errors.Is(err, storage.ErrObjectNotFound) {
			t.Errorf("Expected ErrObjectNotFound for a missing object, got %v", err)
		}
		if backend.signs != 0 {
			t.Errorf("Expected no signing call for a missing object, got %d", backend.signs)
		}
	})

	t.Run("NilCacheDefaults", func(t *testing.T) {
		backend := &signingBackend{fakeBackend: newFakeBackend()}
		dbConn := db.SetupTestDB(t)
		defer db.CleanupTestDB(t, dbConn)
		svc := NewService(dbConn, backend, transfer.New(backend, 0), nil, nil)

		file, err := svc.AddFile(ctx, workspaceInput("uncached.txt", bytes.NewReader([]byte("x"))))
		if err != nil {
			t.Fatalf("AddFile failed: %v", err)
		}
		url, err := svc.GetDownloadURL(ctx, file.FileID, db.ScopeFilter{})
		if err != nil {
			t.Fatalf("GetDownloadURL without an injected cache failed: %v", err)
		}
		if url == "" {
			t.Error("Expected a signed URL")
		}
		if err := svc.DeleteFile(ctx, file.FileID, db.ScopeFilter{}); err != nil {
			t.Fatalf("DeleteFile without an injected cache failed: %v", err)
		}
	})
}

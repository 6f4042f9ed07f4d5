package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"inkwell/api/internal/store"
)

func TestCreateVersionSnapshotsDocument(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	var captured store.Version
	var capturedMax int
	fs.insertVersionCappedFn = func(_ context.Context, v store.Version, max int) error {
		captured = v
		capturedMax = max
		return nil
	}
	fs.getVersionFn = func(_ context.Context, id string) (store.Version, error) {
		if id == captured.ID {
			return captured, nil
		}
		return store.Version{}, sql.ErrNoRows
	}
	svc, _, _ := newTestService(fs)

	v, err := svc.CreateVersion(context.Background(), owner, "doc_1")
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	if capturedMax != maxVersions {
		t.Fatalf("expected cap %d, got %d", maxVersions, capturedMax)
	}
	if v.Title != "Notes" || v.DocumentID != "doc_1" || v.CreatedBy != owner.UserID {
		t.Fatalf("unexpected version %+v", v)
	}
}

func TestCreateVersionRequiresAccess(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	grantFixture(fs, "doc_1", viewer.UserID, "viewer")
	svc, _, _ := newTestService(fs)
	ctx := context.Background()

	if _, err := svc.CreateVersion(ctx, viewer, "doc_1"); err != nil {
		t.Fatalf("viewer snapshot: %v", err)
	}

	_, err := svc.CreateVersion(ctx, Identity{UserID: "usr_stranger"}, "doc_1")
	wantDomainCode(t, err, "FORBIDDEN")
}

func TestAutoCreateVersionSkipsWhenFresh(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	var gotInterval time.Duration
	fs.insertVersionIfStaleFn = func(_ context.Context, _ store.Version, interval time.Duration) (bool, error) {
		gotInterval = interval
		return false, nil
	}
	svc, _, _ := newTestService(fs)

	v, err := svc.AutoCreateVersion(context.Background(), owner, "doc_1")
	if err != nil {
		t.Fatalf("auto version: %v", err)
	}
	if v != nil {
		t.Fatal("fresh history should yield no new version")
	}
	if gotInterval != minAutoVersionInterval {
		t.Fatalf("expected interval %v, got %v", minAutoVersionInterval, gotInterval)
	}
}

func TestAutoCreateVersionInsertsWhenStale(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	var captured store.Version
	fs.insertVersionIfStaleFn = func(_ context.Context, v store.Version, _ time.Duration) (bool, error) {
		captured = v
		return true, nil
	}
	fs.getVersionFn = func(_ context.Context, id string) (store.Version, error) {
		return captured, nil
	}
	svc, _, _ := newTestService(fs)

	v, err := svc.AutoCreateVersion(context.Background(), owner, "doc_1")
	if err != nil {
		t.Fatalf("auto version: %v", err)
	}
	if v == nil || v.Title != "Notes" {
		t.Fatalf("expected snapshot, got %+v", v)
	}
}

func TestGetVersionRejectsForeignVersion(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	fs.getVersionFn = func(_ context.Context, id string) (store.Version, error) {
		if id == "ver_other" {
			return store.Version{ID: id, DocumentID: "doc_other"}, nil
		}
		return store.Version{}, sql.ErrNoRows
	}
	svc, _, _ := newTestService(fs)
	ctx := context.Background()

	_, err := svc.GetVersion(ctx, owner, "doc_1", "ver_other")
	wantDomainCode(t, err, "NOT_FOUND")

	_, err = svc.GetVersion(ctx, owner, "doc_1", "ver_missing")
	wantDomainCode(t, err, "NOT_FOUND")
}

func TestRestoreVersionWritesBackupFirst(t *testing.T) {
	doc := baseDoc()
	fs := &fakeStore{}
	target := store.Version{ID: "ver_1", DocumentID: "doc_1", Title: "Old title", Content: `{"type":"doc","content":[]}`}
	fs.getDocumentFn = func(context.Context, string) (store.Document, error) { return doc, nil }
	fs.getVersionFn = func(_ context.Context, id string) (store.Version, error) {
		if id == target.ID {
			return target, nil
		}
		return store.Version{}, sql.ErrNoRows
	}
	var restoredFrom, backup store.Version
	fs.restoreVersionFn = func(_ context.Context, v store.Version, b store.Version) error {
		restoredFrom = v
		backup = b
		doc.Title = v.Title
		doc.Content = v.Content
		return nil
	}
	svc, _, _ := newTestService(fs)

	got, err := svc.RestoreVersion(context.Background(), owner, "doc_1", "ver_1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got.Title != "Old title" {
		t.Fatalf("document should take the version's title, got %q", got.Title)
	}
	if restoredFrom.ID != "ver_1" {
		t.Fatalf("unexpected restore source %+v", restoredFrom)
	}
	if backup.Title != "Notes" || backup.CreatedBy != owner.UserID {
		t.Fatalf("backup should capture pre-restore state, got %+v", backup)
	}
}

func TestDeleteVersionRequiresOwnerRole(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	grantFixture(fs, "doc_1", editor.UserID, "editor")
	fs.getVersionFn = func(_ context.Context, id string) (store.Version, error) {
		return store.Version{ID: id, DocumentID: "doc_1"}, nil
	}
	svc, _, _ := newTestService(fs)
	ctx := context.Background()

	err := svc.DeleteVersion(ctx, editor, "doc_1", "ver_1")
	wantDomainCode(t, err, "FORBIDDEN")

	if err := svc.DeleteVersion(ctx, owner, "doc_1", "ver_1"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestCompareVersions(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	paragraph := func(text string) string {
		return `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"` + text + `"}]}]}`
	}
	versions := map[string]store.Version{
		"ver_a": {ID: "ver_a", DocumentID: "doc_1", Title: "Notes", Content: paragraph("alpha")},
		"ver_b": {ID: "ver_b", DocumentID: "doc_1", Title: "Plans", Content: paragraph("beta")},
	}
	fs.getVersionFn = func(_ context.Context, id string) (store.Version, error) {
		if v, ok := versions[id]; ok {
			return v, nil
		}
		return store.Version{}, sql.ErrNoRows
	}
	svc, _, _ := newTestService(fs)

	diff, err := svc.CompareVersions(context.Background(), owner, "doc_1", "ver_a", "ver_b")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !diff.TitleChanged || !diff.ContentChanged {
		t.Fatalf("expected both change flags, got %+v", diff)
	}
	if diff.LinesAdded != 1 || diff.LinesRemoved != 1 {
		t.Fatalf("expected one line swapped, got +%d -%d", diff.LinesAdded, diff.LinesRemoved)
	}

	same, err := svc.CompareVersions(context.Background(), owner, "doc_1", "ver_a", "ver_a")
	if err != nil {
		t.Fatalf("compare identical: %v", err)
	}
	if same.TitleChanged || same.ContentChanged || same.LinesAdded != 0 || same.LinesRemoved != 0 {
		t.Fatalf("identical versions should show no changes, got %+v", same)
	}
}

func TestLineDelta(t *testing.T) {
	added, removed := lineDelta("a\nb\nc", "a\nc\nd\nd")
	if added != 2 || removed != 1 {
		t.Fatalf("expected +2 -1, got +%d -%d", added, removed)
	}

	added, removed = lineDelta("", "x")
	if added != 1 || removed != 1 {
		// The empty string still contributes one empty line.
		t.Fatalf("expected +1 -1, got +%d -%d", added, removed)
	}
}

func TestCleanupVersionsEvicts(t *testing.T) {
	fs := &fakeStore{}
	var gotMax int
	fs.evictAllVersionsBeyondFn = func(_ context.Context, max int) (int64, error) {
		gotMax = max
		return 3, nil
	}
	svc, _, _ := newTestService(fs)

	svc.CleanupVersions(context.Background())
	if gotMax != maxVersions {
		t.Fatalf("expected eviction beyond %d, got %d", maxVersions, gotMax)
	}
}

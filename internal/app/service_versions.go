package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"inkwell/api/internal/export"
	"inkwell/api/internal/logger"
	"inkwell/api/internal/rbac"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

const (
	// maxVersions bounds the history per document. Inserting past the
	// cap evicts the oldest versions in the same transaction.
	maxVersions = 50

	// minAutoVersionInterval gates the auto snapshot: if a version
	// newer than this exists, the auto path is a no-op.
	minAutoVersionInterval = 5 * time.Minute
)

// CreateVersion snapshots the document's current title and content.
// Snapshotting reads the document, so any collaborator may do it.
func (s *Service) CreateVersion(ctx context.Context, identity Identity, docID string) (store.Version, error) {
	doc, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer)
	if err != nil {
		return store.Version{}, err
	}

	v := store.Version{
		ID:         util.NewID("ver"),
		DocumentID: docID,
		Title:      doc.Title,
		Content:    doc.Content,
		CreatedBy:  identity.UserID,
	}
	if err := s.store.InsertVersionCapped(ctx, v, maxVersions); err != nil {
		return store.Version{}, err
	}
	return s.store.GetVersion(ctx, v.ID)
}

// AutoCreateVersion snapshots only when the latest version is older
// than minAutoVersionInterval. The staleness check and insert are one
// statement, so concurrent auto saves produce at most one version.
func (s *Service) AutoCreateVersion(ctx context.Context, identity Identity, docID string) (*store.Version, error) {
	doc, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer)
	if err != nil {
		return nil, err
	}

	v := store.Version{
		ID:         util.NewID("ver"),
		DocumentID: docID,
		Title:      doc.Title,
		Content:    doc.Content,
		CreatedBy:  identity.UserID,
	}
	inserted, err := s.store.InsertVersionIfStale(ctx, v, minAutoVersionInterval)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}

	// The cap still applies to auto snapshots.
	if n, err := s.store.CountVersions(ctx, docID); err == nil && n > maxVersions {
		if _, err := s.store.EvictAllVersionsBeyond(ctx, maxVersions); err != nil {
			logger.Sugar.Warnw("version eviction failed", "document", docID, "error", err)
		}
	}

	created, err := s.store.GetVersion(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Service) ListVersions(ctx context.Context, identity Identity, docID string) ([]store.Version, error) {
	if _, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(ctx, docID)
	if err != nil {
		return nil, err
	}
	if versions == nil {
		versions = []store.Version{}
	}
	return versions, nil
}

func (s *Service) CountVersions(ctx context.Context, identity Identity, docID string) (int, error) {
	if _, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer); err != nil {
		return 0, err
	}
	return s.store.CountVersions(ctx, docID)
}

func (s *Service) GetVersion(ctx context.Context, identity Identity, docID, versionID string) (store.Version, error) {
	if _, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer); err != nil {
		return store.Version{}, err
	}
	return s.getDocumentVersion(ctx, docID, versionID)
}

func (s *Service) getDocumentVersion(ctx context.Context, docID, versionID string) (store.Version, error) {
	v, err := s.store.GetVersion(ctx, versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Version{}, errNotFound("version not found")
	}
	if err != nil {
		return store.Version{}, err
	}
	if v.DocumentID != docID {
		return store.Version{}, errNotFound("version not found")
	}
	return v, nil
}

// RestoreVersion replaces the document's title and content with the
// version's, after writing a backup snapshot of the pre-restore state
// in the same transaction.
func (s *Service) RestoreVersion(ctx context.Context, identity Identity, docID, versionID string) (store.Document, error) {
	doc, _, err := s.requireRole(ctx, identity, docID, rbac.RoleEditor)
	if err != nil {
		return store.Document{}, err
	}
	v, err := s.getDocumentVersion(ctx, docID, versionID)
	if err != nil {
		return store.Document{}, err
	}

	backup := store.Version{
		ID:         util.NewID("ver"),
		DocumentID: docID,
		Title:      doc.Title,
		Content:    doc.Content,
		CreatedBy:  identity.UserID,
	}
	if err := s.store.RestoreVersion(ctx, v, backup); err != nil {
		return store.Document{}, err
	}

	restored, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return store.Document{}, err
	}
	s.indexDocument(restored)
	return restored, nil
}

func (s *Service) DeleteVersion(ctx context.Context, identity Identity, docID, versionID string) error {
	if _, _, err := s.requireRole(ctx, identity, docID, rbac.RoleOwner); err != nil {
		return err
	}
	if _, err := s.getDocumentVersion(ctx, docID, versionID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("version not found")
	}
	return nil
}

// VersionSummary is a version without its content payload.
type VersionSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// VersionDiff compares two versions of the same document.
type VersionDiff struct {
	From           VersionSummary `json:"from"`
	To             VersionSummary `json:"to"`
	TitleChanged   bool           `json:"titleChanged"`
	ContentChanged bool           `json:"contentChanged"`
	LinesAdded     int            `json:"linesAdded"`
	LinesRemoved   int            `json:"linesRemoved"`
}

// CompareVersions diffs the plain-text renderings of two versions.
// Line counts are multiset differences, not a positional diff.
func (s *Service) CompareVersions(ctx context.Context, identity Identity, docID, fromID, toID string) (VersionDiff, error) {
	if _, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer); err != nil {
		return VersionDiff{}, err
	}
	from, err := s.getDocumentVersion(ctx, docID, fromID)
	if err != nil {
		return VersionDiff{}, err
	}
	to, err := s.getDocumentVersion(ctx, docID, toID)
	if err != nil {
		return VersionDiff{}, err
	}

	diff := VersionDiff{
		From:           summarizeVersion(from),
		To:             summarizeVersion(to),
		TitleChanged:   from.Title != to.Title,
		ContentChanged: from.Content != to.Content,
	}
	if diff.ContentChanged {
		diff.LinesAdded, diff.LinesRemoved = lineDelta(versionText(from), versionText(to))
	}
	return diff, nil
}

func summarizeVersion(v store.Version) VersionSummary {
	return VersionSummary{ID: v.ID, Title: v.Title, CreatedBy: v.CreatedBy, CreatedAt: v.CreatedAt}
}

// versionText renders the version's content tree as plain text,
// falling back to the raw content for trees that do not parse.
func versionText(v store.Version) string {
	node, err := export.ParseDocument([]byte(v.Content))
	if err != nil {
		return v.Content
	}
	return export.ToText(node)
}

func lineDelta(from, to string) (added, removed int) {
	counts := map[string]int{}
	for _, line := range strings.Split(from, "\n") {
		counts[line]++
	}
	for _, line := range strings.Split(to, "\n") {
		counts[line]--
	}
	for _, n := range counts {
		if n > 0 {
			removed += n
		} else {
			added -= n
		}
	}
	return added, removed
}

// CleanupVersions trims every document's history back to the cap. It
// runs on a timer from main; failures are logged, not returned.
func (s *Service) CleanupVersions(ctx context.Context) {
	evicted, err := s.store.EvictAllVersionsBeyond(ctx, maxVersions)
	if err != nil {
		logger.Sugar.Warnw("version cleanup failed", "error", err)
		return
	}
	if evicted > 0 {
		logger.Sugar.Infow("version cleanup", "evicted", evicted)
	}
}

package app

import (
	"context"
	"errors"

	"inkwell/api/internal/export"
	"inkwell/api/internal/rbac"
)

// ExportDocument renders a document's content tree in the requested
// format. Any role may export, including read-only viewers.
func (s *Service) ExportDocument(ctx context.Context, identity Identity, docID string, format export.Format, opts export.Options) (*export.Result, error) {
	doc, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer)
	if err != nil {
		return nil, err
	}

	result, err := export.Render(doc.Title, []byte(doc.Content), format, opts)
	if errors.Is(err, export.ErrMalformedTree) {
		return nil, errValidation("document content is not a valid content tree", nil)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExportVersion renders a historical version instead of the live
// document.
func (s *Service) ExportVersion(ctx context.Context, identity Identity, docID, versionID string, format export.Format, opts export.Options) (*export.Result, error) {
	if _, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	v, err := s.getDocumentVersion(ctx, docID, versionID)
	if err != nil {
		return nil, err
	}

	result, err := export.Render(v.Title, []byte(v.Content), format, opts)
	if errors.Is(err, export.ErrMalformedTree) {
		return nil, errValidation("version content is not a valid content tree", nil)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

package app

import (
	"context"
	"database/sql"
	"errors"

	"inkwell/api/internal/rbac"
	"inkwell/api/internal/store"
)

// Access describes what a user may do with a document. The owner holds
// RoleOwner implicitly and never appears in the collaborator table.
type Access struct {
	Role    rbac.Role `json:"role"`
	IsOwner bool      `json:"isOwner"`
	Granted bool      `json:"granted"`
}

func (s *Service) resolveAccess(ctx context.Context, doc store.Document, userID string) (Access, error) {
	if doc.OwnerID == userID {
		return Access{Role: rbac.RoleOwner, IsOwner: true, Granted: true}, nil
	}
	grant, err := s.store.GetCollaborator(ctx, doc.ID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Access{}, nil
	}
	if err != nil {
		return Access{}, err
	}
	role, ok := rbac.ParseRole(grant.Role)
	if !ok {
		return Access{}, nil
	}
	return Access{Role: role, Granted: true}, nil
}

// requireRole loads the document and checks the caller holds at least
// min. Missing and soft-deleted documents read as NotFound; an
// existing document without a grant reads as Forbidden.
func (s *Service) requireRole(ctx context.Context, identity Identity, docID string, min rbac.Role) (store.Document, Access, error) {
	if identity.anonymous() {
		return store.Document{}, Access{}, errUnauthorized("sign in first")
	}

	doc, err := s.store.GetDocument(ctx, docID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, Access{}, errNotFound("document not found")
	}
	if err != nil {
		return store.Document{}, Access{}, err
	}
	if doc.Deleted {
		return store.Document{}, Access{}, errNotFound("document not found")
	}

	access, err := s.resolveAccess(ctx, doc, identity.UserID)
	if err != nil {
		return store.Document{}, Access{}, err
	}
	if !access.Granted {
		return store.Document{}, Access{}, errForbidden("no access to this document")
	}
	if !access.Role.Meets(min) {
		return store.Document{}, Access{}, errForbidden("requires " + min.String() + " access")
	}
	return doc, access, nil
}

// requireOwner checks direct ownership. Unlike requireRole it accepts
// soft-deleted documents, so trash operations can use it.
func (s *Service) requireOwner(ctx context.Context, identity Identity, docID string) (store.Document, error) {
	if identity.anonymous() {
		return store.Document{}, errUnauthorized("sign in first")
	}

	doc, err := s.store.GetDocument(ctx, docID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, errNotFound("document not found")
	}
	if err != nil {
		return store.Document{}, err
	}
	if doc.OwnerID != identity.UserID {
		if doc.Deleted {
			return store.Document{}, errNotFound("document not found")
		}
		return store.Document{}, errForbidden("only the owner may do this")
	}
	return doc, nil
}

// CheckAccess reports the caller's effective access to a document.
func (s *Service) CheckAccess(ctx context.Context, identity Identity, docID string) (Access, error) {
	if identity.anonymous() {
		return Access{}, errUnauthorized("sign in first")
	}
	doc, err := s.store.GetDocument(ctx, docID)
	if errors.Is(err, sql.ErrNoRows) {
		return Access{}, errNotFound("document not found")
	}
	if err != nil {
		return Access{}, err
	}
	if doc.Deleted && doc.OwnerID != identity.UserID {
		return Access{}, errNotFound("document not found")
	}
	return s.resolveAccess(ctx, doc, identity.UserID)
}

// ---- collaborators ----

type AddCollaboratorInput struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (s *Service) AddCollaborator(ctx context.Context, identity Identity, docID string, in AddCollaboratorInput) (store.Collaborator, error) {
	doc, _, err := s.requireRole(ctx, identity, docID, rbac.RoleOwner)
	if err != nil {
		return store.Collaborator{}, err
	}

	role, ok := rbac.ParseRole(in.Role)
	if !ok {
		return store.Collaborator{}, errValidation("unknown role "+in.Role, nil)
	}

	target, err := s.resolveUser(ctx, in.UserID, in.Email)
	if err != nil {
		return store.Collaborator{}, err
	}
	if target.ID == doc.OwnerID {
		return store.Collaborator{}, errValidation("the owner already has full access", nil)
	}

	created, err := s.store.InsertCollaborator(ctx, store.Collaborator{
		DocumentID: docID,
		UserID:     target.ID,
		Role:       role.String(),
	})
	if err != nil {
		return store.Collaborator{}, err
	}
	if !created {
		return store.Collaborator{}, errConflict("user is already a collaborator")
	}

	grant, err := s.store.GetCollaborator(ctx, docID, target.ID)
	if err != nil {
		return store.Collaborator{}, err
	}
	grant.DisplayName = target.DisplayName
	grant.Email = target.Email
	return grant, nil
}

func (s *Service) UpdateCollaboratorRole(ctx context.Context, identity Identity, docID, userID, roleName string) error {
	if _, _, err := s.requireRole(ctx, identity, docID, rbac.RoleOwner); err != nil {
		return err
	}
	role, ok := rbac.ParseRole(roleName)
	if !ok {
		return errValidation("unknown role "+roleName, nil)
	}
	updated, err := s.store.UpdateCollaboratorRole(ctx, docID, userID, role.String())
	if err != nil {
		return err
	}
	if !updated {
		return errNotFound("collaborator not found")
	}
	return nil
}

// RemoveCollaborator revokes a grant. The owner may remove anyone; a
// collaborator may remove only themselves.
func (s *Service) RemoveCollaborator(ctx context.Context, identity Identity, docID, userID string) error {
	doc, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer)
	if err != nil {
		return err
	}
	if doc.OwnerID != identity.UserID && userID != identity.UserID {
		return errForbidden("only the owner may remove other collaborators")
	}

	removed, err := s.store.DeleteCollaborator(ctx, docID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return errNotFound("collaborator not found")
	}
	if err := s.presence.Remove(ctx, docID, userID); err != nil {
		return err
	}
	return nil
}

func (s *Service) ListCollaborators(ctx context.Context, identity Identity, docID string) ([]store.Collaborator, error) {
	if _, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	grants, err := s.store.ListCollaborators(ctx, docID)
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = []store.Collaborator{}
	}
	return grants, nil
}

// TransferOwnership makes newOwner the document owner and demotes the
// previous owner to an editor grant. Any grant newOwner held is
// absorbed by ownership.
func (s *Service) TransferOwnership(ctx context.Context, identity Identity, docID, newOwnerID string) (store.Document, error) {
	doc, access, err := s.requireRole(ctx, identity, docID, rbac.RoleOwner)
	if err != nil {
		return store.Document{}, err
	}
	if !access.IsOwner {
		return store.Document{}, errForbidden("only the owner may transfer ownership")
	}
	if newOwnerID == identity.UserID {
		return store.Document{}, errValidation("cannot transfer a document to yourself", nil)
	}

	if _, err := s.store.GetUserByID(ctx, newOwnerID); errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, errNotFound("user not found")
	} else if err != nil {
		return store.Document{}, err
	}

	if err := s.store.TransferDocumentOwner(ctx, docID, newOwnerID, doc.OwnerID); err != nil {
		return store.Document{}, err
	}

	updated, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return store.Document{}, err
	}
	s.indexDocument(updated)
	return updated, nil
}

func (s *Service) resolveUser(ctx context.Context, userID, email string) (store.User, error) {
	switch {
	case userID != "":
		user, err := s.store.GetUserByID(ctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, errNotFound("user not found")
		}
		return user, err
	case email != "":
		user, err := s.store.GetUserByEmail(ctx, email)
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, errNotFound("user not found")
		}
		return user, err
	default:
		return store.User{}, errValidation("userId or email is required", nil)
	}
}

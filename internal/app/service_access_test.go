package app

import (
	"context"
	"database/sql"
	"testing"

	"inkwell/api/internal/rbac"
	"inkwell/api/internal/store"
)

func TestCheckAccessResolvesRoles(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	grantFixture(fs, "doc_1", editor.UserID, "editor")
	svc, _, _ := newTestService(fs)
	ctx := context.Background()

	access, err := svc.CheckAccess(ctx, owner, "doc_1")
	if err != nil {
		t.Fatalf("owner access: %v", err)
	}
	if !access.IsOwner || access.Role != rbac.RoleOwner {
		t.Fatalf("expected implicit owner role, got %+v", access)
	}

	access, err = svc.CheckAccess(ctx, editor, "doc_1")
	if err != nil {
		t.Fatalf("editor access: %v", err)
	}
	if access.IsOwner || access.Role != rbac.RoleEditor || !access.Granted {
		t.Fatalf("expected editor grant, got %+v", access)
	}

	access, err = svc.CheckAccess(ctx, Identity{UserID: "usr_stranger"}, "doc_1")
	if err != nil {
		t.Fatalf("stranger access: %v", err)
	}
	if access.Granted {
		t.Fatalf("stranger should have no grant, got %+v", access)
	}
}

func TestAddCollaborator(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	fs.getUserByEmailFn = func(_ context.Context, email string) (store.User, error) {
		if email == "ed@example.com" {
			return store.User{ID: editor.UserID, Email: email, DisplayName: "Editor"}, nil
		}
		return store.User{}, sql.ErrNoRows
	}
	fs.getUserByIDFn = func(_ context.Context, id string) (store.User, error) {
		switch id {
		case editor.UserID:
			return store.User{ID: id, DisplayName: "Editor"}, nil
		case owner.UserID:
			return store.User{ID: id, DisplayName: "Owner"}, nil
		}
		return store.User{}, sql.ErrNoRows
	}
	var insertedGrant store.Collaborator
	fs.insertCollaboratorFn = func(_ context.Context, grant store.Collaborator) (bool, error) {
		insertedGrant = grant
		return true, nil
	}
	fs.getCollaboratorFn = func(_ context.Context, docID, userID string) (store.Collaborator, error) {
		if insertedGrant.UserID == userID {
			return insertedGrant, nil
		}
		return store.Collaborator{}, sql.ErrNoRows
	}
	svc, _, _ := newTestService(fs)
	ctx := context.Background()

	grant, err := svc.AddCollaborator(ctx, owner, "doc_1", AddCollaboratorInput{Email: "ed@example.com", Role: "editor"})
	if err != nil {
		t.Fatalf("add by email: %v", err)
	}
	if grant.UserID != editor.UserID || grant.Role != "editor" {
		t.Fatalf("unexpected grant %+v", grant)
	}

	_, err = svc.AddCollaborator(ctx, owner, "doc_1", AddCollaboratorInput{UserID: owner.UserID, Role: "viewer"})
	wantDomainCode(t, err, "VALIDATION_ERROR")

	_, err = svc.AddCollaborator(ctx, owner, "doc_1", AddCollaboratorInput{UserID: "usr_ghost", Role: "viewer"})
	wantDomainCode(t, err, "NOT_FOUND")

	_, err = svc.AddCollaborator(ctx, owner, "doc_1", AddCollaboratorInput{UserID: editor.UserID, Role: "reviewer"})
	wantDomainCode(t, err, "VALIDATION_ERROR")

	_, err = svc.AddCollaborator(ctx, owner, "doc_1", AddCollaboratorInput{Role: "viewer"})
	wantDomainCode(t, err, "VALIDATION_ERROR")
}

func TestAddCollaboratorDuplicateConflicts(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	fs.getUserByIDFn = func(_ context.Context, id string) (store.User, error) {
		return store.User{ID: id}, nil
	}
	fs.insertCollaboratorFn = func(context.Context, store.Collaborator) (bool, error) {
		return false, nil
	}
	svc, _, _ := newTestService(fs)

	_, err := svc.AddCollaborator(context.Background(), owner, "doc_1", AddCollaboratorInput{UserID: editor.UserID, Role: "viewer"})
	wantDomainCode(t, err, "CONFLICT")
}

func TestAddCollaboratorRequiresOwnerRole(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	grantFixture(fs, "doc_1", editor.UserID, "editor")
	svc, _, _ := newTestService(fs)

	_, err := svc.AddCollaborator(context.Background(), editor, "doc_1", AddCollaboratorInput{UserID: viewer.UserID, Role: "viewer"})
	wantDomainCode(t, err, "FORBIDDEN")
}

func TestRemoveCollaborator(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	fs.getCollaboratorFn = func(_ context.Context, _, userID string) (store.Collaborator, error) {
		switch userID {
		case editor.UserID:
			return store.Collaborator{Role: "editor"}, nil
		case viewer.UserID:
			return store.Collaborator{Role: "viewer"}, nil
		}
		return store.Collaborator{}, sql.ErrNoRows
	}
	var removed []string
	fs.deleteCollaboratorFn = func(_ context.Context, _, userID string) (bool, error) {
		removed = append(removed, userID)
		return true, nil
	}
	svc, _, _ := newTestService(fs)
	ctx := context.Background()

	// A collaborator may only remove themselves.
	err := svc.RemoveCollaborator(ctx, editor, "doc_1", viewer.UserID)
	wantDomainCode(t, err, "FORBIDDEN")

	if err := svc.RemoveCollaborator(ctx, editor, "doc_1", editor.UserID); err != nil {
		t.Fatalf("self removal: %v", err)
	}
	if err := svc.RemoveCollaborator(ctx, owner, "doc_1", viewer.UserID); err != nil {
		t.Fatalf("owner removal: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removals, got %v", removed)
	}
}

func TestUpdateCollaboratorRole(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	fs.updateCollaboratorRoleFn = func(_ context.Context, _, userID, role string) (bool, error) {
		return userID == editor.UserID, nil
	}
	svc, _, _ := newTestService(fs)
	ctx := context.Background()

	if err := svc.UpdateCollaboratorRole(ctx, owner, "doc_1", editor.UserID, "viewer"); err != nil {
		t.Fatalf("demote: %v", err)
	}

	err := svc.UpdateCollaboratorRole(ctx, owner, "doc_1", "usr_ghost", "viewer")
	wantDomainCode(t, err, "NOT_FOUND")

	err = svc.UpdateCollaboratorRole(ctx, owner, "doc_1", editor.UserID, "superuser")
	wantDomainCode(t, err, "VALIDATION_ERROR")
}

func TestTransferOwnership(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	fs.getUserByIDFn = func(_ context.Context, id string) (store.User, error) {
		if id == editor.UserID {
			return store.User{ID: id}, nil
		}
		return store.User{}, sql.ErrNoRows
	}
	var gotDoc, gotNew, gotPrev string
	fs.transferOwnerFn = func(_ context.Context, docID, newOwnerID, prevOwnerID string) error {
		gotDoc, gotNew, gotPrev = docID, newOwnerID, prevOwnerID
		return nil
	}
	svc, _, _ := newTestService(fs)
	ctx := context.Background()

	if _, err := svc.TransferOwnership(ctx, owner, "doc_1", editor.UserID); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if gotDoc != "doc_1" || gotNew != editor.UserID || gotPrev != owner.UserID {
		t.Fatalf("unexpected transfer args %s %s %s", gotDoc, gotNew, gotPrev)
	}

	_, err := svc.TransferOwnership(ctx, owner, "doc_1", owner.UserID)
	wantDomainCode(t, err, "VALIDATION_ERROR")

	_, err = svc.TransferOwnership(ctx, owner, "doc_1", "usr_ghost")
	wantDomainCode(t, err, "NOT_FOUND")
}

func TestTransferOwnershipRejectsNonOwner(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	// An 'owner'-level grant is not document ownership.
	grantFixture(fs, "doc_1", editor.UserID, "owner")
	svc, _, _ := newTestService(fs)

	_, err := svc.TransferOwnership(context.Background(), editor, "doc_1", viewer.UserID)
	wantDomainCode(t, err, "FORBIDDEN")
}

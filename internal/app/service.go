package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"inkwell/api/internal/auth"
	"inkwell/api/internal/authpw"
	"inkwell/api/internal/config"
	"inkwell/api/internal/logger"
	"inkwell/api/internal/presence"
	"inkwell/api/internal/rbac"
	"inkwell/api/internal/search"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

// Identity is the authenticated caller, as yielded by the identity
// provider. The zero value means "no identity".
type Identity struct {
	UserID      string
	DisplayName string
}

func (id Identity) anonymous() bool {
	return id.UserID == ""
}

const defaultContent = `{"type":"doc","content":[]}`

type dataStore interface {
	Ping(context.Context) error

	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)

	GetFolder(context.Context, string) (store.Folder, error)

	InsertDocument(context.Context, store.Document) error
	GetDocument(context.Context, string) (store.Document, error)
	ListDocumentsForUser(ctx context.Context, userID string, folderID *string, includeDeleted bool) ([]store.Document, error)
	ListDeletedDocumentsByOwner(context.Context, string) ([]store.Document, error)
	UpdateDocument(context.Context, string, store.DocumentPatch) error
	SetDocumentDeleted(context.Context, string, bool) error
	DeleteDocumentCascade(context.Context, string) error
	TransferDocumentOwner(ctx context.Context, docID, newOwnerID, prevOwnerID string) error

	GetCollaborator(context.Context, string, string) (store.Collaborator, error)
	ListCollaborators(context.Context, string) ([]store.Collaborator, error)
	InsertCollaborator(context.Context, store.Collaborator) (bool, error)
	UpdateCollaboratorRole(ctx context.Context, docID, userID, role string) (bool, error)
	DeleteCollaborator(ctx context.Context, docID, userID string) (bool, error)

	InsertVersionCapped(context.Context, store.Version, int) error
	InsertVersionIfStale(context.Context, store.Version, time.Duration) (bool, error)
	GetVersion(context.Context, string) (store.Version, error)
	ListVersions(context.Context, string) ([]store.Version, error)
	CountVersions(context.Context, string) (int, error)
	DeleteVersion(context.Context, string) (bool, error)
	RestoreVersion(ctx context.Context, v store.Version, backup store.Version) error
	EvictAllVersionsBeyond(context.Context, int) (int64, error)
}

type presenceStore interface {
	Record(ctx context.Context, docID string, hb presence.Heartbeat) error
	ListActive(ctx context.Context, docID string) ([]presence.Heartbeat, error)
	Remove(ctx context.Context, docID, userID string) error
	ClearDocument(ctx context.Context, docID string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexDocument(doc search.DocumentRecord)
	DeleteDocument(id string)
	ReindexAllFromPG()
}

type Service struct {
	cfg      config.Config
	store    dataStore
	presence presenceStore
	search   searchService
	accounts *authpw.Service
}

func New(cfg config.Config, dataStore dataStore, presenceStore presenceStore, searchService searchService, accounts *authpw.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		presence: presenceStore,
		search:   searchService,
		accounts: accounts,
	}
}

// Bootstrap runs one-time startup work.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search != nil {
		s.search.ReindexAllFromPG()
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ---- auth ----

type AuthResponse struct {
	Token       string    `json:"token"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (*AuthResponse, error) {
	user, err := s.accounts.SignUp(ctx, req)
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			return nil, errConflict("email already registered")
		}
		return nil, errValidation(err.Error(), nil)
	}
	return s.issueToken(user)
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (*AuthResponse, error) {
	user, err := s.accounts.SignIn(ctx, req)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return nil, errUnauthorized("invalid email or password")
		}
		return nil, errValidation(err.Error(), nil)
	}
	return s.issueToken(user)
}

func (s *Service) issueToken(user store.User) (*AuthResponse, error) {
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  util.NewID(""),
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Token:       token,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		ExpiresAt:   expiresAt,
	}, nil
}

// IdentityFromToken resolves a bearer token to an Identity. An empty
// token yields the anonymous identity without error.
func (s *Service) IdentityFromToken(token string) (Identity, error) {
	if token == "" {
		return Identity{}, nil
	}
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Identity{}, errUnauthorized("invalid or expired token")
	}
	return Identity{UserID: claims.Sub, DisplayName: claims.Name}, nil
}

// ---- documents ----

type CreateDocumentInput struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	FolderID *string `json:"folderId"`
}

func (s *Service) CreateDocument(ctx context.Context, identity Identity, in CreateDocumentInput) (store.Document, error) {
	if identity.anonymous() {
		return store.Document{}, errUnauthorized("sign in to create documents")
	}

	if in.FolderID != nil {
		if err := s.checkFolderOwnership(ctx, *in.FolderID, identity.UserID); err != nil {
			return store.Document{}, err
		}
	}

	title := in.Title
	if title == "" {
		title = "Untitled document"
	}
	content := in.Content
	if content == "" {
		content = defaultContent
	}

	doc := store.Document{
		ID:       util.NewID("doc"),
		Title:    title,
		Content:  content,
		OwnerID:  identity.UserID,
		FolderID: in.FolderID,
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return store.Document{}, err
	}

	created, err := s.store.GetDocument(ctx, doc.ID)
	if err != nil {
		return store.Document{}, err
	}
	s.indexDocument(created)
	return created, nil
}

// GetDocument is access-filtered. The owner may read their own
// soft-deleted document (the trash view needs it); everyone else sees
// NotFound.
func (s *Service) GetDocument(ctx context.Context, identity Identity, docID string) (store.Document, error) {
	if identity.anonymous() {
		return store.Document{}, errUnauthorized("sign in to read documents")
	}

	doc, err := s.store.GetDocument(ctx, docID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, errNotFound("document not found")
	}
	if err != nil {
		return store.Document{}, err
	}

	if doc.Deleted {
		if doc.OwnerID == identity.UserID {
			return doc, nil
		}
		return store.Document{}, errNotFound("document not found")
	}

	access, err := s.resolveAccess(ctx, doc, identity.UserID)
	if err != nil {
		return store.Document{}, err
	}
	if !access.Granted {
		return store.Document{}, errForbidden("no access to this document")
	}
	return doc, nil
}

func (s *Service) ListDocuments(ctx context.Context, identity Identity, folderID *string, includeDeleted bool) ([]store.Document, error) {
	if identity.anonymous() {
		return nil, errUnauthorized("sign in to list documents")
	}
	docs, err := s.store.ListDocumentsForUser(ctx, identity.UserID, folderID, includeDeleted)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return docs, nil
}

func (s *Service) SearchDocuments(ctx context.Context, identity Identity, query string) (search.Response, error) {
	if identity.anonymous() {
		return search.Response{}, errUnauthorized("sign in to search documents")
	}

	resp := s.search.Search(search.Query{Text: query, UserID: identity.UserID})

	// The Meilisearch path returns hits regardless of who may read
	// them; keep only documents the caller can access.
	filtered := make([]search.Result, 0, len(resp.Results))
	for _, hit := range resp.Results {
		doc, err := s.store.GetDocument(ctx, hit.ID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return search.Response{}, err
		}
		if doc.Deleted {
			continue
		}
		access, err := s.resolveAccess(ctx, doc, identity.UserID)
		if err != nil {
			return search.Response{}, err
		}
		if !access.Granted {
			continue
		}
		filtered = append(filtered, hit)
	}
	resp.Results = filtered
	resp.Total = len(filtered)
	return resp, nil
}

type UpdateDocumentInput struct {
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	FolderID  *string `json:"folderId"`
	SetFolder bool    `json:"-"`
}

func (s *Service) UpdateDocument(ctx context.Context, identity Identity, docID string, in UpdateDocumentInput) (store.Document, error) {
	_, _, err := s.requireRole(ctx, identity, docID, rbac.RoleEditor)
	if err != nil {
		return store.Document{}, err
	}

	patch := store.DocumentPatch{Title: in.Title, Content: in.Content}
	if in.SetFolder {
		if in.FolderID != nil {
			if err := s.checkFolderOwnership(ctx, *in.FolderID, identity.UserID); err != nil {
				return store.Document{}, err
			}
		}
		patch.FolderID = in.FolderID
		patch.SetFolderID = true
	}

	if !patch.Empty() {
		if err := s.store.UpdateDocument(ctx, docID, patch); err != nil {
			return store.Document{}, err
		}
	}

	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return store.Document{}, err
	}
	if patch.Title != nil {
		s.indexDocument(doc)
	}
	return doc, nil
}

func (s *Service) RenameDocument(ctx context.Context, identity Identity, docID, title string) (store.Document, error) {
	if title == "" {
		return store.Document{}, errValidation("title must not be empty", nil)
	}
	return s.UpdateDocument(ctx, identity, docID, UpdateDocumentInput{Title: &title})
}

// MoveDocument reparents a document; a nil folderID moves it to the
// root. The target folder must exist and belong to the mover.
func (s *Service) MoveDocument(ctx context.Context, identity Identity, docID string, folderID *string) (store.Document, error) {
	return s.UpdateDocument(ctx, identity, docID, UpdateDocumentInput{FolderID: folderID, SetFolder: true})
}

// DuplicateDocument copies content, title, and placement into a new
// document owned by the caller. Reading the source for duplication is
// owner-only.
func (s *Service) DuplicateDocument(ctx context.Context, identity Identity, docID string) (store.Document, error) {
	doc, err := s.requireOwner(ctx, identity, docID)
	if err != nil {
		return store.Document{}, err
	}
	if doc.Deleted {
		return store.Document{}, errNotFound("document not found")
	}

	copyDoc := store.Document{
		ID:       util.NewID("doc"),
		Title:    doc.Title + " (copy)",
		Content:  doc.Content,
		OwnerID:  identity.UserID,
		FolderID: doc.FolderID,
	}
	if err := s.store.InsertDocument(ctx, copyDoc); err != nil {
		return store.Document{}, err
	}

	created, err := s.store.GetDocument(ctx, copyDoc.ID)
	if err != nil {
		return store.Document{}, err
	}
	s.indexDocument(created)
	return created, nil
}

// DeleteDocument soft-deletes. Repeating it is a no-op.
func (s *Service) DeleteDocument(ctx context.Context, identity Identity, docID string) error {
	doc, err := s.requireOwner(ctx, identity, docID)
	if err != nil {
		return err
	}
	if doc.Deleted {
		return nil
	}
	if err := s.store.SetDocumentDeleted(ctx, docID, true); err != nil {
		return err
	}
	s.search.DeleteDocument(docID)
	return nil
}

// RestoreDocument clears the soft-delete flag. Repeating it is a no-op.
func (s *Service) RestoreDocument(ctx context.Context, identity Identity, docID string) (store.Document, error) {
	doc, err := s.requireOwner(ctx, identity, docID)
	if err != nil {
		return store.Document{}, err
	}
	if doc.Deleted {
		if err := s.store.SetDocumentDeleted(ctx, docID, false); err != nil {
			return store.Document{}, err
		}
	}
	restored, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return store.Document{}, err
	}
	s.indexDocument(restored)
	return restored, nil
}

// PermanentlyDeleteDocument removes the document and every dependent
// row: versions, collaborator grants, presence heartbeats, and the
// search index entry.
func (s *Service) PermanentlyDeleteDocument(ctx context.Context, identity Identity, docID string) error {
	if _, err := s.requireOwner(ctx, identity, docID); err != nil {
		return err
	}
	return s.purgeDocument(ctx, docID)
}

// EmptyTrash permanently deletes every soft-deleted document owned by
// the caller. Returns how many documents were purged.
func (s *Service) EmptyTrash(ctx context.Context, identity Identity) (int, error) {
	if identity.anonymous() {
		return 0, errUnauthorized("sign in to empty trash")
	}

	docs, err := s.store.ListDeletedDocumentsByOwner(ctx, identity.UserID)
	if err != nil {
		return 0, err
	}
	for _, doc := range docs {
		if err := s.purgeDocument(ctx, doc.ID); err != nil {
			return 0, err
		}
	}
	return len(docs), nil
}

func (s *Service) purgeDocument(ctx context.Context, docID string) error {
	if err := s.store.DeleteDocumentCascade(ctx, docID); err != nil {
		return err
	}
	if err := s.presence.ClearDocument(ctx, docID); err != nil {
		// Presence is ephemeral; stale keys expire on their own.
		logger.Sugar.Warnf("clear presence for %s: %v", docID, err)
	}
	s.search.DeleteDocument(docID)
	return nil
}

func (s *Service) checkFolderOwnership(ctx context.Context, folderID, userID string) error {
	folder, err := s.store.GetFolder(ctx, folderID)
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound("folder not found")
	}
	if err != nil {
		return err
	}
	if folder.OwnerID != userID {
		return errForbidden("folder belongs to another user")
	}
	return nil
}

func (s *Service) indexDocument(doc store.Document) {
	if doc.Deleted {
		return
	}
	s.search.IndexDocument(search.DocumentRecord{ID: doc.ID, Title: doc.Title, OwnerID: doc.OwnerID})
}

// ---- presence ----

type PresenceInput struct {
	Cursor        int `json:"cursor"`
	SelectionFrom int `json:"selectionFrom"`
	SelectionTo   int `json:"selectionTo"`
}

func (s *Service) RecordPresence(ctx context.Context, identity Identity, docID string, in PresenceInput) error {
	if _, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer); err != nil {
		return err
	}
	return s.presence.Record(ctx, docID, presence.Heartbeat{
		UserID:        identity.UserID,
		DisplayName:   identity.DisplayName,
		Cursor:        in.Cursor,
		SelectionFrom: in.SelectionFrom,
		SelectionTo:   in.SelectionTo,
	})
}

func (s *Service) ListPresence(ctx context.Context, identity Identity, docID string) ([]presence.Heartbeat, error) {
	if _, _, err := s.requireRole(ctx, identity, docID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	active, err := s.presence.ListActive(ctx, docID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		active = []presence.Heartbeat{}
	}
	return active, nil
}

func (s *Service) LeavePresence(ctx context.Context, identity Identity, docID string) error {
	if identity.anonymous() {
		return errUnauthorized("sign in first")
	}
	return s.presence.Remove(ctx, docID, identity.UserID)
}

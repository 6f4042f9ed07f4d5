package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM users WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ---- folders ----

func (s *PostgresStore) GetFolder(ctx context.Context, id string) (Folder, error) {
	var folder Folder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, parent_id, created_at
		FROM folders WHERE id = $1
	`, id).Scan(&folder.ID, &folder.Name, &folder.OwnerID, &folder.ParentID, &folder.CreatedAt)
	if err != nil {
		return Folder{}, err
	}
	return folder, nil
}

// ---- documents ----

const documentColumns = `id, title, content, owner_id, folder_id, deleted, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.OwnerID, &doc.FolderID, &doc.Deleted, &doc.CreatedAt, &doc.UpdatedAt)
	return doc, err
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, owner_id, folder_id)
		VALUES ($1, $2, $3, $4, $5)
	`, doc.ID, doc.Title, doc.Content, doc.OwnerID, doc.FolderID)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument returns the row regardless of the deleted flag; callers
// decide who may see soft-deleted documents.
func (s *PostgresStore) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// ListDocumentsForUser merges owned documents with collaborations,
// most recently updated first. includeDeleted adds only the caller's
// own soft-deleted documents; collaborations never include them.
func (s *PostgresStore) ListDocumentsForUser(ctx context.Context, userID string, folderID *string, includeDeleted bool) ([]Document, error) {
	query := `
		SELECT ` + documentColumns + ` FROM documents d
		WHERE (
			(d.owner_id = $1 AND ($2 OR NOT d.deleted))
			OR (NOT d.deleted AND EXISTS (
				SELECT 1 FROM collaborators c
				WHERE c.document_id = d.id AND c.user_id = $1
			))
		)
	`
	args := []any{userID, includeDeleted}
	if folderID != nil {
		query += ` AND d.folder_id = $3`
		args = append(args, *folderID)
	}
	query += ` ORDER BY d.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) ListDeletedDocumentsByOwner(ctx context.Context, ownerID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE owner_id = $1 AND deleted
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list deleted documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateDocument applies a patch, touching only the named fields, and
// bumps updated_at.
func (s *PostgresStore) UpdateDocument(ctx context.Context, id string, patch DocumentPatch) error {
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	argN := 1

	if patch.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", argN))
		args = append(args, *patch.Title)
		argN++
	}
	if patch.Content != nil {
		sets = append(sets, fmt.Sprintf("content = $%d", argN))
		args = append(args, *patch.Content)
		argN++
	}
	if patch.SetFolderID {
		sets = append(sets, fmt.Sprintf("folder_id = $%d", argN))
		args = append(args, patch.FolderID)
		argN++
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = $%d", strings.Join(sets, ", "), argN)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetDocumentDeleted(ctx context.Context, id string, deleted bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET deleted = $2, updated_at = NOW() WHERE id = $1
	`, id, deleted)
	if err != nil {
		return fmt.Errorf("set document deleted: %w", err)
	}
	return nil
}

// DeleteDocumentCascade removes the document together with its
// versions and collaborator grants in one transaction. Presence lives
// in Redis and is cleared by the caller.
func (s *PostgresStore) DeleteDocumentCascade(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM versions WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collaborators WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("delete collaborators: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return tx.Commit()
}

// TransferDocumentOwner reassigns ownership, drops any grant held by
// the new owner, and demotes the previous owner to an editor grant,
// all in one transaction.
func (s *PostgresStore) TransferDocumentOwner(ctx context.Context, docID, newOwnerID, prevOwnerID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET owner_id = $2, updated_at = NOW() WHERE id = $1
	`, docID, newOwnerID); err != nil {
		return fmt.Errorf("reassign owner: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM collaborators WHERE document_id = $1 AND user_id = $2
	`, docID, newOwnerID); err != nil {
		return fmt.Errorf("drop new owner grant: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collaborators (document_id, user_id, role)
		VALUES ($1, $2, 'editor')
		ON CONFLICT (document_id, user_id) DO UPDATE SET role = 'editor'
	`, docID, prevOwnerID); err != nil {
		return fmt.Errorf("demote previous owner: %w", err)
	}
	return tx.Commit()
}

// ---- collaborators ----

func (s *PostgresStore) GetCollaborator(ctx context.Context, docID, userID string) (Collaborator, error) {
	var c Collaborator
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, user_id, role, created_at
		FROM collaborators WHERE document_id = $1 AND user_id = $2
	`, docID, userID).Scan(&c.DocumentID, &c.UserID, &c.Role, &c.CreatedAt)
	if err != nil {
		return Collaborator{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListCollaborators(ctx context.Context, docID string) ([]Collaborator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.document_id, c.user_id, u.display_name, u.email, c.role, c.created_at
		FROM collaborators c
		JOIN users u ON u.id = c.user_id
		WHERE c.document_id = $1
		ORDER BY c.created_at ASC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	defer rows.Close()

	var collaborators []Collaborator
	for rows.Next() {
		var c Collaborator
		if err := rows.Scan(&c.DocumentID, &c.UserID, &c.DisplayName, &c.Email, &c.Role, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		collaborators = append(collaborators, c)
	}
	return collaborators, rows.Err()
}

// InsertCollaborator returns false when a grant already exists for the
// (document, user) pair.
func (s *PostgresStore) InsertCollaborator(ctx context.Context, c Collaborator) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO collaborators (document_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id, user_id) DO NOTHING
	`, c.DocumentID, c.UserID, c.Role)
	if err != nil {
		return false, fmt.Errorf("insert collaborator: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert collaborator: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UpdateCollaboratorRole(ctx context.Context, docID, userID, role string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE collaborators SET role = $3 WHERE document_id = $1 AND user_id = $2
	`, docID, userID, role)
	if err != nil {
		return false, fmt.Errorf("update collaborator role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update collaborator role: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteCollaborator(ctx context.Context, docID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM collaborators WHERE document_id = $1 AND user_id = $2
	`, docID, userID)
	if err != nil {
		return false, fmt.Errorf("delete collaborator: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete collaborator: %w", err)
	}
	return affected > 0, nil
}

// ---- versions ----

const versionColumns = `id, document_id, title, content, created_by, created_at`

func scanVersion(row interface{ Scan(...any) error }) (Version, error) {
	var v Version
	err := row.Scan(&v.ID, &v.DocumentID, &v.Title, &v.Content, &v.CreatedBy, &v.CreatedAt)
	return v, err
}

// InsertVersionCapped inserts a snapshot and, in the same transaction,
// evicts the oldest rows beyond cap for that document.
func (s *PostgresStore) InsertVersionCapped(ctx context.Context, v Version, cap int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO versions (id, document_id, title, content, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, v.ID, v.DocumentID, v.Title, v.Content, v.CreatedBy); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM versions WHERE id IN (
			SELECT id FROM versions
			WHERE document_id = $1
			ORDER BY created_at DESC, id DESC
			OFFSET $2
		)
	`, v.DocumentID, cap); err != nil {
		return fmt.Errorf("evict versions: %w", err)
	}
	return tx.Commit()
}

// InsertVersionIfStale atomically inserts a snapshot only when the
// document has no version newer than interval. The check and the
// insert are a single statement, so concurrent calls inside the same
// window cannot both pass the gate.
func (s *PostgresStore) InsertVersionIfStale(ctx context.Context, v Version, interval time.Duration) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO versions (id, document_id, title, content, created_by)
		SELECT $1, $2, $3, $4, $5
		WHERE NOT EXISTS (
			SELECT 1 FROM versions
			WHERE document_id = $2 AND created_at > NOW() - $6::interval
		)
	`, v.ID, v.DocumentID, v.Title, v.Content, v.CreatedBy, fmt.Sprintf("%f seconds", interval.Seconds()))
	if err != nil {
		return false, fmt.Errorf("conditional insert version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("conditional insert version: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, id string) (Version, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM versions WHERE id = $1`, id)
	return scanVersion(row)
}

func (s *PostgresStore) ListVersions(ctx context.Context, docID string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+versionColumns+` FROM versions
		WHERE document_id = $1
		ORDER BY created_at DESC, id DESC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *PostgresStore) CountVersions(ctx context.Context, docID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM versions WHERE document_id = $1`, docID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count versions: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) DeleteVersion(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM versions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete version: %w", err)
	}
	return affected > 0, nil
}

// RestoreVersion writes the chosen snapshot's title and content back
// onto the document, recording backup (the pre-restore state) first so
// the restore itself can be undone. One transaction.
func (s *PostgresStore) RestoreVersion(ctx context.Context, v Version, backup Version) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO versions (id, document_id, title, content, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, backup.ID, backup.DocumentID, backup.Title, backup.Content, backup.CreatedBy); err != nil {
		return fmt.Errorf("insert pre-restore backup: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET title = $2, content = $3, updated_at = NOW() WHERE id = $1
	`, v.DocumentID, v.Title, v.Content); err != nil {
		return fmt.Errorf("apply restored snapshot: %w", err)
	}
	return tx.Commit()
}

// EvictAllVersionsBeyond trims every document's version set to cap,
// oldest first. Used by the periodic maintenance pass as a safety net.
func (s *PostgresStore) EvictAllVersionsBeyond(ctx context.Context, cap int) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM versions WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY document_id
					ORDER BY created_at DESC, id DESC
				) AS rank
				FROM versions
			) ranked
			WHERE ranked.rank > $1
		)
	`, cap)
	if err != nil {
		return 0, fmt.Errorf("evict surplus versions: %w", err)
	}
	return result.RowsAffected()
}

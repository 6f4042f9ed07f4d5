package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestUpdateDocumentPatchesOnlyNamedFields(t *testing.T) {
	s, mock := newMockStore(t)
	title := "Renamed"

	mock.ExpectExec(`UPDATE documents SET updated_at = NOW\(\), title = \$1 WHERE id = \$2`).
		WithArgs(title, "doc_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateDocument(context.Background(), "doc_1", DocumentPatch{Title: &title})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDocumentMoveToRoot(t *testing.T) {
	s, mock := newMockStore(t)

	// SetFolderID with a nil FolderID clears placement.
	mock.ExpectExec(`UPDATE documents SET updated_at = NOW\(\), folder_id = \$1 WHERE id = \$2`).
		WithArgs(nil, "doc_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateDocument(context.Background(), "doc_1", DocumentPatch{SetFolderID: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCollaboratorReportsConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO collaborators`).
		WithArgs("doc_1", "usr_2", "editor").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := s.InsertCollaborator(context.Background(), Collaborator{
		DocumentID: "doc_1", UserID: "usr_2", Role: "editor",
	})
	require.NoError(t, err)
	assert.False(t, created, "duplicate grant must not report as created")
}

func TestInsertVersionCappedEvictsInSameTx(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO versions`).
		WithArgs("ver_1", "doc_1", "Title", "{}", "usr_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM versions WHERE id IN`).
		WithArgs("doc_1", 50).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := s.InsertVersionCapped(context.Background(), Version{
		ID: "ver_1", DocumentID: "doc_1", Title: "Title", Content: "{}", CreatedBy: "usr_1",
	}, 50)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertVersionIfStale(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO versions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := s.InsertVersionIfStale(context.Background(), Version{
		ID: "ver_1", DocumentID: "doc_1", Title: "T", Content: "{}", CreatedBy: "usr_1",
	}, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, created)

	// Gate closed: the conditional insert touches no rows.
	mock.ExpectExec(`INSERT INTO versions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = s.InsertVersionIfStale(context.Background(), Version{
		ID: "ver_2", DocumentID: "doc_1", Title: "T", Content: "{}", CreatedBy: "usr_1",
	}, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestRestoreVersionWritesBackupFirst(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO versions`).
		WithArgs("ver_backup", "doc_1", "Current title", `{"cur":1}`, "usr_9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE documents SET title = \$2, content = \$3`).
		WithArgs("doc_1", "Old title", `{"old":1}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RestoreVersion(context.Background(),
		Version{ID: "ver_old", DocumentID: "doc_1", Title: "Old title", Content: `{"old":1}`},
		Version{ID: "ver_backup", DocumentID: "doc_1", Title: "Current title", Content: `{"cur":1}`, CreatedBy: "usr_9"},
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferDocumentOwner(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE documents SET owner_id = \$2`).
		WithArgs("doc_1", "usr_new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM collaborators`).
		WithArgs("doc_1", "usr_new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO collaborators`).
		WithArgs("doc_1", "usr_old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.TransferDocumentOwner(context.Background(), "doc_1", "usr_new", "usr_old")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocumentCascadeOrder(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM versions WHERE document_id`).
		WithArgs("doc_1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM collaborators WHERE document_id`).
		WithArgs("doc_1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM documents WHERE id`).
		WithArgs("doc_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteDocumentCascade(context.Background(), "doc_1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDocumentsForUser(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "title", "content", "owner_id", "folder_id", "deleted", "created_at", "updated_at"}).
		AddRow("doc_2", "Newer", "{}", "usr_1", nil, false, now, now).
		AddRow("doc_1", "Older", "{}", "usr_2", nil, false, now.Add(-time.Hour), now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT .+ FROM documents d`).
		WithArgs("usr_1", false).
		WillReturnRows(rows)

	docs, err := s.ListDocumentsForUser(context.Background(), "usr_1", nil, false)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc_2", docs[0].ID)
	assert.Equal(t, "doc_1", docs[1].ID)
}

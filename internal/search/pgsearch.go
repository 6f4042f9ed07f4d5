package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch implements Searcher with a title match in PostgreSQL as
// the fallback when Meilisearch is not configured or unhealthy. It
// restricts hits to documents the querying user can access.
type PgSearch struct {
	db *sql.DB
}

// NewPgSearch creates a PostgreSQL title searcher.
func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

// Search matches document titles case-insensitively, newest first,
// limited to non-deleted documents owned by or shared with the user.
func (p *PgSearch) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := p.db.Query(`
		SELECT d.id, d.title, d.owner_id, COUNT(*) OVER () AS total
		FROM documents d
		WHERE NOT d.deleted
			AND d.title ILIKE '%' || $1 || '%'
			AND (
				d.owner_id = $2
				OR EXISTS (
					SELECT 1 FROM collaborators c
					WHERE c.document_id = d.id AND c.user_id = $2
				)
			)
		ORDER BY d.updated_at DESC
		LIMIT $3 OFFSET $4
	`, q.Text, q.UserID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pg title search: %w", err)
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.OwnerID, &total); err != nil {
			return nil, 0, fmt.Errorf("scan search hit: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords reads every live document for reindexing into
// Meilisearch.
func (p *PgSearch) LoadAllRecords() ([]DocumentRecord, error) {
	rows, err := p.db.Query(`SELECT id, title, owner_id FROM documents WHERE NOT deleted`)
	if err != nil {
		return nil, fmt.Errorf("load documents for reindex: %w", err)
	}
	defer rows.Close()

	var records []DocumentRecord
	for rows.Next() {
		var rec DocumentRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.OwnerID); err != nil {
			return nil, fmt.Errorf("scan document record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

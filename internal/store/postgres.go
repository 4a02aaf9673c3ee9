package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

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

func (s *PostgresStore) CreateAnonymousUser(ctx context.Context, user AnonymousUser) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO anonymous_users (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, user.ID)
	if err != nil {
		return fmt.Errorf("insert anonymous user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnonymousUser(ctx context.Context, userID string) (AnonymousUser, error) {
	var user AnonymousUser
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at FROM anonymous_users WHERE id=$1
	`, userID).Scan(&user.ID, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AnonymousUser{}, ErrNotFound
	}
	if err != nil {
		return AnonymousUser{}, fmt.Errorf("lookup anonymous user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, original_filename, stored_filename, original_type, share_hash, page_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.UserID, item.OriginalFilename, item.StoredFilename, item.OriginalType, item.ShareHash, item.PageCount)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, user_id, original_filename, stored_filename, original_type, share_hash, share_password_hash, page_count, created_at, updated_at`

func scanDocument(row *sql.Row) (Document, error) {
	var item Document
	err := row.Scan(
		&item.ID, &item.UserID, &item.OriginalFilename, &item.StoredFilename,
		&item.OriginalType, &item.ShareHash, &item.SharePasswordHash,
		&item.PageCount, &item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("scan document: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, documentID)
	return scanDocument(row)
}

func (s *PostgresStore) GetDocumentByShareHash(ctx context.Context, shareHash string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE share_hash=$1`, shareHash)
	return scanDocument(row)
}

func (s *PostgresStore) ListDocumentsByUser(ctx context.Context, userID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE user_id=$1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		var item Document
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.OriginalFilename, &item.StoredFilename,
			&item.OriginalType, &item.ShareHash, &item.SharePasswordHash,
			&item.PageCount, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SearchDocumentsByFilename(ctx context.Context, userID, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE user_id=$1 AND original_filename ILIKE '%' || $2 || '%'
		ORDER BY updated_at DESC
		LIMIT $3
	`, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		var item Document
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.OriginalFilename, &item.StoredFilename,
			&item.OriginalType, &item.ShareHash, &item.SharePasswordHash,
			&item.PageCount, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetSharePassword(ctx context.Context, documentID string, passwordHash *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET share_password_hash=$2, updated_at=NOW() WHERE id=$1
	`, documentID, passwordHash)
	if err != nil {
		return fmt.Errorf("set share password: %w", err)
	}
	return nil
}

// UpsertAnnotation stores the canonical scene snapshot for one page,
// replacing any previous snapshot for that page.
func (s *PostgresStore) UpsertAnnotation(ctx context.Context, item Annotation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO annotations (id, document_id, page_number, annotation_data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id, page_number)
		DO UPDATE SET annotation_data=EXCLUDED.annotation_data, updated_at=NOW()
	`, item.ID, item.DocumentID, item.PageNumber, item.Data)
	if err != nil {
		return fmt.Errorf("upsert annotation: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE documents SET updated_at=NOW() WHERE id=$1`, item.DocumentID); err != nil {
		return fmt.Errorf("touch document: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnnotations(ctx context.Context, documentID string) ([]Annotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, page_number, annotation_data, created_at, updated_at
		FROM annotations
		WHERE document_id=$1
		ORDER BY page_number
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	items := make([]Annotation, 0)
	for rows.Next() {
		var item Annotation
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.PageNumber, &item.Data, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return items, nil
}

package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
)

// SQLBlobRepository keeps attachment bytes in the blobs table, addressed by
// file ID. Page records refer to blobs by ID only.
type SQLBlobRepository struct {
	db *sqlx.DB
}

// NewSQLBlobRepository creates a new SQLBlobRepository.
func NewSQLBlobRepository(db *sqlx.DB) *SQLBlobRepository {
	return &SQLBlobRepository{db: db}
}

// PutBlob reads content to the end and stores it under blob.FileID.
func (r *SQLBlobRepository) PutBlob(ctx context.Context, blob Blob, content io.Reader) error {
	body, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("failed to read blob %s: %w", blob.FileID, err)
	}
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO blobs (file_id, file_name, mime_type, length, uploaded_at, content) VALUES (?, ?, ?, ?, ?, ?)`,
			blob.FileID, blob.FileName, blob.MimeType, int64(len(body)), blob.UploadedAt, body)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("blob %s: %w", blob.FileID, ErrDuplicate)
			}
			return fmt.Errorf("failed to upload blob %s: %w", blob.FileID, err)
		}
		return nil
	})
}

// StatBlob returns blob metadata without its content.
func (r *SQLBlobRepository) StatBlob(ctx context.Context, fileID string) (*Blob, error) {
	var blob Blob
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return getBlobMeta(ctx, tx, fileID, &blob)
	})
	if err != nil {
		return nil, err
	}
	return &blob, nil
}

// GetBlob returns blob metadata and the full content.
func (r *SQLBlobRepository) GetBlob(ctx context.Context, fileID string) (*Blob, []byte, error) {
	var (
		blob    Blob
		content []byte
	)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := getBlobMeta(ctx, tx, fileID, &blob); err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &content, `SELECT content FROM blobs WHERE file_id = ?`, fileID); err != nil {
			return fmt.Errorf("failed to download blob %s: %w", fileID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &blob, content, nil
}

// DeleteBlob removes a blob. It returns ErrNotFound when nothing was deleted.
func (r *SQLBlobRepository) DeleteBlob(ctx context.Context, fileID string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE file_id = ?`, fileID)
		if err != nil {
			return fmt.Errorf("failed to delete blob %s: %w", fileID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("blob %s: %w", fileID, ErrNotFound)
		}
		return nil
	})
}

func getBlobMeta(ctx context.Context, tx *sqlx.Tx, fileID string, blob *Blob) error {
	query := `SELECT file_id, file_name, mime_type, length, uploaded_at FROM blobs WHERE file_id = ?`
	if err := tx.GetContext(ctx, blob, query, fileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get blob %s: %w", fileID, err)
	}
	return nil
}

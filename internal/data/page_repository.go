package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLPageRepository stores pages and their attachment metadata using sqlx.
type SQLPageRepository struct {
	db *sqlx.DB
}

// NewSQLPageRepository creates a new SQLPageRepository.
func NewSQLPageRepository(db *sqlx.DB) *SQLPageRepository {
	return &SQLPageRepository{db: db}
}

type attachmentRow struct {
	PageID int64 `db:"page_id"`
	Attachment
}

const pageColumns = `id, name, content, last_modified_utc`

const attachmentColumns = `page_id, file_id, file_name, mime_type, last_modified_utc`

// ListPages retrieves every page ordered by name, attachments included.
func (r *SQLPageRepository) ListPages(ctx context.Context) ([]Page, error) {
	var pages []Page
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &pages, `SELECT `+pageColumns+` FROM pages ORDER BY name`); err != nil {
			return fmt.Errorf("failed to list pages: %w", err)
		}
		var rows []attachmentRow
		query := `SELECT ` + attachmentColumns + ` FROM page_attachments ORDER BY page_id, position`
		if err := tx.SelectContext(ctx, &rows, query); err != nil {
			return fmt.Errorf("failed to list attachments: %w", err)
		}
		byPage := make(map[int64][]Attachment)
		for _, row := range rows {
			byPage[row.PageID] = append(byPage[row.PageID], row.Attachment)
		}
		for i := range pages {
			pages[i].Attachments = byPage[pages[i].ID]
			if pages[i].Attachments == nil {
				pages[i].Attachments = []Attachment{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []Page{}
	}
	return pages, nil
}

// GetPageByName retrieves a page by case-insensitive name.
func (r *SQLPageRepository) GetPageByName(ctx context.Context, name string) (*Page, error) {
	return r.getPage(ctx, `SELECT `+pageColumns+` FROM pages WHERE name = ? COLLATE NOCASE`, name)
}

// GetPageByID retrieves a page by its ID.
func (r *SQLPageRepository) GetPageByID(ctx context.Context, id int64) (*Page, error) {
	return r.getPage(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
}

func (r *SQLPageRepository) getPage(ctx context.Context, query string, arg interface{}) (*Page, error) {
	var page Page
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &page, query, arg); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to get page: %w", err)
		}
		attachments, err := loadAttachments(ctx, tx, page.ID)
		if err != nil {
			return err
		}
		page.Attachments = attachments
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// InsertPage creates a page together with its attachment list and returns
// the store-assigned ID.
func (r *SQLPageRepository) InsertPage(ctx context.Context, page *Page) (int64, error) {
	var id int64
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx,
			`INSERT INTO pages (name, content, last_modified_utc) VALUES (:name, :content, :last_modified_utc)`, page)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("page '%s': %w", page.Name, ErrDuplicate)
			}
			return fmt.Errorf("failed to execute create page query: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get inserted page id: %w", err)
		}
		return replaceAttachments(ctx, tx, id, page.Attachments)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdatePage replaces an existing page record, including its full
// attachment list.
func (r *SQLPageRepository) UpdatePage(ctx context.Context, page Page) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `UPDATE pages SET name = :name, content = :content, last_modified_utc = :last_modified_utc WHERE id = :id`
		result, err := tx.NamedExecContext(ctx, query, page)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("page '%s': %w", page.Name, ErrDuplicate)
			}
			return fmt.Errorf("failed to update page: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("no page found to update with id %d: %w", page.ID, ErrNotFound)
		}
		return replaceAttachments(ctx, tx, page.ID, page.Attachments)
	})
}

// DeletePage removes a page from the database by its ID. Attachment
// metadata rows go with it; blobs are not touched.
func (r *SQLPageRepository) DeletePage(ctx context.Context, id int64) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete page: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("no page found to delete with id %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func loadAttachments(ctx context.Context, tx *sqlx.Tx, pageID int64) ([]Attachment, error) {
	var rows []attachmentRow
	query := `SELECT ` + attachmentColumns + ` FROM page_attachments WHERE page_id = ? ORDER BY position`
	if err := tx.SelectContext(ctx, &rows, query, pageID); err != nil {
		return nil, fmt.Errorf("failed to load attachments for page %d: %w", pageID, err)
	}
	attachments := make([]Attachment, 0, len(rows))
	for _, row := range rows {
		attachments = append(attachments, row.Attachment)
	}
	return attachments, nil
}

func replaceAttachments(ctx context.Context, tx *sqlx.Tx, pageID int64, attachments []Attachment) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM page_attachments WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("failed to clear attachments for page %d: %w", pageID, err)
	}
	for i, a := range attachments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO page_attachments (page_id, position, file_id, file_name, mime_type, last_modified_utc) VALUES (?, ?, ?, ?, ?, ?)`,
			pageID, i, a.FileID, a.FileName, a.MimeType, a.LastModifiedUTC)
		if err != nil {
			return fmt.Errorf("failed to store attachment %s: %w", a.FileID, err)
		}
	}
	return nil
}

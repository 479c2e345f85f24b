package service

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"markwiki/internal/data"
	"markwiki/internal/logger"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// DefaultHomePage is the name of the page that can never be deleted.
const DefaultHomePage = "home-page"

// PageRepository defines the interface for database operations on pages.
type PageRepository interface {
	ListPages(ctx context.Context) ([]data.Page, error)
	GetPageByName(ctx context.Context, name string) (*data.Page, error)
	GetPageByID(ctx context.Context, id int64) (*data.Page, error)
	InsertPage(ctx context.Context, page *data.Page) (int64, error)
	UpdatePage(ctx context.Context, page data.Page) error
	DeletePage(ctx context.Context, id int64) error
}

// BlobRepository defines the interface for attachment content storage.
type BlobRepository interface {
	PutBlob(ctx context.Context, blob data.Blob, content io.Reader) error
	GetBlob(ctx context.Context, fileID string) (*data.Blob, []byte, error)
	DeleteBlob(ctx context.Context, fileID string) error
}

// Renderer converts Markdown to safe HTML and strips markup from text.
type Renderer interface {
	Render(markdown string) (template.HTML, error)
	SanitizeText(s string) string
}

// PageServicer defines the interface for interacting with pages.
type PageServicer interface {
	HomePage() string
	NormalizeName(name string) string
	ListAllPages(ctx context.Context) ([]data.Page, error)
	GetPage(ctx context.Context, name string) (*data.Page, error)
	SavePage(ctx context.Context, input PageInput) (*data.Page, error)
	DeletePage(ctx context.Context, id int64, protectedName string) error
	DeleteAttachment(ctx context.Context, pageID int64, fileID string) (*data.Page, error)
	GetFile(ctx context.Context, fileID string) (*data.Blob, []byte, error)
	RenderPage(page *data.Page) (template.HTML, error)
}

// Upload is a file submitted together with a page save.
type Upload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// PageInput is the already-decoded add/edit form.
type PageInput struct {
	ID         *int64  `json:"id"`
	Name       string  `json:"name"`
	Content    string  `json:"content"`
	Attachment *Upload `json:"-"`
}

// Validate checks that name and content are present.
func (in PageInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Content = strings.TrimSpace(in.Content)
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required.Error("Name is required")),
		validation.Field(&in.Content, validation.Required.Error("Content is required")),
	)
}

// PageService provides business logic for managing pages and attachments.
type PageService struct {
	pages    PageRepository
	blobs    BlobRepository
	list     *pageListCache
	renderer Renderer
	log      logger.Logger

	homePage string
	listTTL  time.Duration
	now      func() time.Time
	newID    func() string
}

// Option configures a PageService.
type Option func(*PageService)

// WithHomePage sets the protected home page name. The name is normalized
// like any stored page name.
func WithHomePage(name string) Option {
	return func(s *PageService) {
		if name != "" {
			s.homePage = name
		}
	}
}

// WithClock replaces the time source for modification stamps.
func WithClock(now func() time.Time) Option {
	return func(s *PageService) { s.now = now }
}

// WithIDGenerator replaces the attachment file ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *PageService) { s.newID = gen }
}

// WithListTTL sets how long the page listing stays cached.
func WithListTTL(ttl time.Duration) Option {
	return func(s *PageService) { s.listTTL = ttl }
}

// NewPageService creates a new PageService with the given dependencies.
func NewPageService(pages PageRepository, blobs BlobRepository, listCache ListCache, renderer Renderer, log logger.Logger, opts ...Option) *PageService {
	s := &PageService{
		pages:    pages,
		blobs:    blobs,
		renderer: renderer,
		log:      log,
		homePage: DefaultHomePage,
		listTTL:  DefaultListTTL,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if home := s.NormalizeName(s.homePage); home != "" {
		s.homePage = home
	} else {
		s.homePage = DefaultHomePage
	}
	s.list = newPageListCache(listCache, s.listTTL, log)
	return s
}

// HomePage returns the protected home page name.
func (s *PageService) HomePage() string {
	return s.homePage
}

// NormalizeName returns the canonical stored form of a page name.
func (s *PageService) NormalizeName(name string) string {
	return normalizeName(name, s.renderer.SanitizeText)
}

// ListAllPages returns every page ordered by name. The listing is served
// from cache when present; each call returns its own copy.
func (s *PageService) ListAllPages(ctx context.Context) ([]data.Page, error) {
	if pages, ok := s.list.load(); ok {
		return pages, nil
	}
	gen := s.list.snapshot()
	pages, err := s.pages.ListPages(ctx)
	if err != nil {
		s.log.Error(err, "Failed to list pages")
		return nil, storeError("list pages", err)
	}
	s.list.store(gen, pages)
	return pages, nil
}

// GetPage looks a page up by case-insensitive name. A missing page is
// reported as nil with no error.
func (s *PageService) GetPage(ctx context.Context, name string) (*data.Page, error) {
	page, err := s.pages.GetPageByName(ctx, name)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, nil
		}
		s.log.Error(err, fmt.Sprintf("Failed to load page '%s'", name))
		return nil, storeError("get page", err)
	}
	return page, nil
}

// SavePage creates a page, or updates it in place when input.ID names an
// existing page. An attachment, if any, is uploaded and appended. Content
// is stored verbatim.
func (s *PageService) SavePage(ctx context.Context, input PageInput) (*data.Page, error) {
	if err := fromValidation(input.Validate()); err != nil {
		return nil, err
	}
	name := s.NormalizeName(input.Name)
	if name == "" {
		return nil, fieldError("name", "Name is required")
	}
	// The sanitizer escapes characters such as & and ' into entities,
	// which have no place in a page URL.
	if strings.ContainsRune(name, '&') {
		return nil, fieldError("name", "Name may not contain &, quotes or angle brackets")
	}

	var existing *data.Page
	if input.ID != nil {
		page, err := s.pages.GetPageByID(ctx, *input.ID)
		switch {
		case err == nil:
			existing = page
		case errors.Is(err, data.ErrNotFound):
		default:
			s.log.Error(err, fmt.Sprintf("There is an exception in trying to save page name '%s'", input.Name))
			return nil, storeError("save page", err)
		}
	}
	if existing != nil && strings.EqualFold(existing.Name, s.homePage) && name != s.homePage {
		return nil, fieldError("name", fmt.Sprintf("You cannot modify home page name. Please keep it %s", s.homePage))
	}

	now := s.now().UTC()
	attachment, err := s.upload(ctx, input.Attachment, now)
	if err != nil {
		s.log.Error(err, fmt.Sprintf("Failed to upload attachment for page '%s'", name))
		return nil, storeError("upload attachment", err)
	}

	var saved data.Page
	if existing == nil {
		saved = data.Page{Name: name, Content: input.Content, LastModifiedUTC: now, Attachments: []data.Attachment{}}
		if attachment != nil {
			saved.Attachments = append(saved.Attachments, *attachment)
		}
		saved.ID, err = s.pages.InsertPage(ctx, &saved)
	} else {
		saved = existing.With(name, input.Content, now)
		if attachment != nil {
			saved.Attachments = append(saved.Attachments, *attachment)
		}
		err = s.pages.UpdatePage(ctx, saved)
	}
	if err != nil {
		s.discardUpload(ctx, attachment)
		if errors.Is(err, data.ErrDuplicate) {
			return nil, fmt.Errorf("page '%s': %w", name, ErrConflict)
		}
		s.log.Error(err, fmt.Sprintf("There is an exception in trying to save page name '%s'", input.Name))
		return nil, storeError("save page", err)
	}

	s.list.invalidate()
	return &saved, nil
}

// upload stores the attachment blob. It returns nil when there is nothing
// to attach.
func (s *PageService) upload(ctx context.Context, up *Upload, now time.Time) (*data.Attachment, error) {
	if up == nil || strings.TrimSpace(up.FileName) == "" || up.Content == nil {
		return nil, nil
	}
	attachment := data.Attachment{
		FileID:          s.newID(),
		FileName:        up.FileName,
		MimeType:        up.ContentType,
		LastModifiedUTC: now,
	}
	blob := data.Blob{
		FileID:     attachment.FileID,
		FileName:   attachment.FileName,
		MimeType:   attachment.MimeType,
		UploadedAt: now,
	}
	if err := s.blobs.PutBlob(ctx, blob, up.Content); err != nil {
		return nil, err
	}
	return &attachment, nil
}

// discardUpload removes a blob whose page record could not be written.
func (s *PageService) discardUpload(ctx context.Context, attachment *data.Attachment) {
	if attachment == nil {
		return
	}
	if err := s.blobs.DeleteBlob(ctx, attachment.FileID); err != nil && !errors.Is(err, data.ErrNotFound) {
		s.log.Error(err, fmt.Sprintf("Orphaned attachment blob %s", attachment.FileID))
	}
}

// DeletePage deletes a page and its attachment blobs. The page named
// protectedName is never deleted. Blobs are removed before the record; a
// blob that is already gone counts as removed, so a failed delete can be
// retried. Blobs removed before a failure are not restored.
func (s *PageService) DeletePage(ctx context.Context, id int64, protectedName string) error {
	log := s.log.With(map[string]interface{}{"page_id": id})

	page, err := s.pages.GetPageByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			log.Warn(fmt.Sprintf("Delete operation fails because page id %d cannot be found in the database", id))
			return fmt.Errorf("page %d: %w", id, ErrNotFound)
		}
		log.Error(err, "Failed to load page for deletion")
		return storeError("delete page", err)
	}
	if strings.EqualFold(page.Name, protectedName) {
		log.Warn(fmt.Sprintf("Page id %d is a home page and delete operation on home page is not allowed", id))
		return ErrProtectedPage
	}

	for _, a := range page.Attachments {
		if err := s.blobs.DeleteBlob(ctx, a.FileID); err != nil && !errors.Is(err, data.ErrNotFound) {
			log.Error(err, fmt.Sprintf("Failed to delete attachment blob %s", a.FileID))
			return storeError("delete page attachments", err)
		}
	}

	if err := s.pages.DeletePage(ctx, id); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return fmt.Errorf("page %d: %w", id, ErrNotFound)
		}
		log.Error(err, "Attachment blobs were deleted but the page record was not")
		return storeError("delete page", err)
	}

	s.list.invalidate()
	return nil
}

// DeleteAttachment removes one attachment blob and its metadata entry. The
// returned page is nil only when the page itself does not exist. Only file
// IDs the page references are touched. The blob is deleted first; if the
// metadata update then fails the blob stays gone.
func (s *PageService) DeleteAttachment(ctx context.Context, pageID int64, fileID string) (*data.Page, error) {
	log := s.log.With(map[string]interface{}{"page_id": pageID, "file_id": fileID})

	page, err := s.pages.GetPageByID(ctx, pageID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			log.Warn(fmt.Sprintf("Delete attachment operation fails because page id %d cannot be found in the database", pageID))
			return nil, fmt.Errorf("page %d: %w", pageID, ErrNotFound)
		}
		log.Error(err, "Failed to load page for attachment deletion")
		return nil, storeError("delete attachment", err)
	}

	referenced := false
	for _, a := range page.Attachments {
		if strings.EqualFold(a.FileID, fileID) {
			referenced = true
			break
		}
	}

	if !referenced {
		log.Warn("Attachment is not referenced by this page")
		return page, fmt.Errorf("attachment %s: %w", fileID, ErrNotFound)
	}

	if err := s.blobs.DeleteBlob(ctx, fileID); err != nil {
		if !errors.Is(err, data.ErrNotFound) {
			log.Error(err, "We cannot delete this file attachment")
			return page, storeError("delete attachment", err)
		}
		log.Warn("Attachment blob already gone; removing the dangling reference")
	}

	updated := page.With(page.Name, page.Content, page.LastModifiedUTC)
	kept := updated.Attachments[:0]
	for _, a := range updated.Attachments {
		if !strings.EqualFold(a.FileID, fileID) {
			kept = append(kept, a)
		}
	}
	updated.Attachments = kept

	if err := s.pages.UpdatePage(ctx, updated); err != nil {
		log.Error(err, fmt.Sprintf("Delete attachment works but updating the page (id %d) attachment list fails", pageID))
		return &updated, storeError("delete attachment", err)
	}

	s.list.invalidate()
	return &updated, nil
}

// GetFile returns blob metadata and content. A missing blob is reported
// as nil with no error.
func (s *PageService) GetFile(ctx context.Context, fileID string) (*data.Blob, []byte, error) {
	blob, content, err := s.blobs.GetBlob(ctx, fileID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, nil, nil
		}
		s.log.Error(err, fmt.Sprintf("Failed to download attachment %s", fileID))
		return nil, nil, storeError("get file", err)
	}
	return blob, content, nil
}

// RenderPage converts the page content to sanitised HTML.
func (s *PageService) RenderPage(page *data.Page) (template.HTML, error) {
	return s.renderer.Render(page.Content)
}

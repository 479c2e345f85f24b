package handler

import (
	"errors"
	"fmt"
	"markwiki/internal/data"
	"markwiki/internal/logger"
	"markwiki/internal/middleware"
	"markwiki/internal/service"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// PageHandler holds the dependencies for the page handlers.
type PageHandler struct {
	pageService service.PageServicer
	view        middleware.Renderer
	log         logger.Logger
	maxUpload   int64
}

// NewPageHandler creates a new PageHandler with the given dependencies.
// maxUpload bounds the size of an add-page request body; zero means no limit.
func NewPageHandler(ps service.PageServicer, v middleware.Renderer, log logger.Logger, maxUpload int64) *PageHandler {
	return &PageHandler{
		pageService: ps,
		view:        v,
		log:         log,
		maxUpload:   maxUpload,
	}
}

// editForm is the state of the add/edit form.
type editForm struct {
	ID      int64
	Name    string
	Content string
}

func pageURL(name string) string {
	return "/" + url.PathEscape(name)
}

func editURL(name string) string {
	return "/edit?pageName=" + url.QueryEscape(name)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]interface{}) *middleware.AppError {
	data["UserInfo"] = middleware.GetUserInfo(r.Context())
	if _, ok := data["Pages"]; !ok {
		pages, err := h.pageService.ListAllPages(r.Context())
		if err != nil {
			return middleware.NewAppError(err, "Failed to retrieve pages")
		}
		data["Pages"] = pages
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.view.Render(w, name, data); err != nil {
		// The status line is already out; only log.
		h.log.Error(err, fmt.Sprintf("Failed to render %s", name))
	}
	return nil
}

// homeHandler shows the home page, or sends the visitor to create it.
func (h *PageHandler) homeHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	return h.showPage(w, r, h.pageService.HomePage())
}

// viewHandler retrieves the page name from the URL and renders the page.
func (h *PageHandler) viewHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	return h.showPage(w, r, chi.URLParam(r, "pageName"))
}

func (h *PageHandler) showPage(w http.ResponseWriter, r *http.Request, name string) *middleware.AppError {
	page, err := h.pageService.GetPage(r.Context(), name)
	if err != nil {
		return middleware.NewAppError(err, "Failed to load page")
	}
	if page == nil {
		home := h.pageService.HomePage()
		if strings.EqualFold(name, home) {
			http.Redirect(w, r, "/new-page?pageName="+url.QueryEscape(home), http.StatusFound)
			return nil
		}
		return &middleware.AppError{
			Error:   fmt.Errorf("page %q: %w", name, service.ErrNotFound),
			Message: fmt.Sprintf("Page %s not found", name),
			Code:    http.StatusNotFound,
		}
	}

	html, err := h.pageService.RenderPage(page)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render page", Code: http.StatusInternalServerError}
	}
	return h.render(w, r, http.StatusOK, "page.html", map[string]interface{}{
		"Page": page,
		"HTML": html,
	})
}

// newPageHandler displays an empty form for a page that does not exist yet.
func (h *PageHandler) newPageHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	requested := strings.TrimSpace(r.URL.Query().Get("pageName"))
	if requested == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil
	}
	name := service.KebabCase(requested)
	if name == "" {
		return &middleware.AppError{Error: errors.New("empty page name"), Message: "Page name is invalid", Code: http.StatusBadRequest}
	}

	existing, err := h.pageService.GetPage(r.Context(), name)
	if err != nil {
		return middleware.NewAppError(err, "Failed to load page")
	}
	if existing != nil {
		return &middleware.AppError{
			Error:   fmt.Errorf("page %q: %w", name, service.ErrConflict),
			Message: "Page already exists",
			Code:    http.StatusBadRequest,
		}
	}

	return h.render(w, r, http.StatusOK, "edit.html", map[string]interface{}{
		"Form":   editForm{Name: name},
		"Errors": map[string]string{},
	})
}

// editHandler displays the form for editing a page.
func (h *PageHandler) editHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	name := r.URL.Query().Get("pageName")
	page, err := h.pageService.GetPage(r.Context(), name)
	if err != nil {
		return middleware.NewAppError(err, "Failed to load page")
	}
	if page == nil {
		return &middleware.AppError{
			Error:   fmt.Errorf("page %q: %w", name, service.ErrNotFound),
			Message: fmt.Sprintf("Page %s not found", name),
			Code:    http.StatusNotFound,
		}
	}

	return h.render(w, r, http.StatusOK, "edit.html", map[string]interface{}{
		"Form":      editForm{ID: page.ID, Name: page.Name, Content: page.Content},
		"Page":      page,
		"CanDelete": !strings.EqualFold(page.Name, h.pageService.HomePage()),
		"Errors":    map[string]string{},
	})
}

// attachmentHandler streams a stored attachment.
func (h *PageHandler) attachmentHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		return &middleware.AppError{Error: errors.New("missing fileId"), Message: "Attachment not found", Code: http.StatusNotFound}
	}
	blob, content, err := h.pageService.GetFile(r.Context(), fileID)
	if err != nil {
		return middleware.NewAppError(err, "Failed to load attachment")
	}
	if blob == nil {
		return &middleware.AppError{
			Error:   fmt.Errorf("attachment %q: %w", fileID, service.ErrNotFound),
			Message: "Attachment not found",
			Code:    http.StatusNotFound,
		}
	}

	h.log.Info(fmt.Sprintf("Attachment %s - %s", blob.FileID, blob.FileName))
	contentType := blob.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": blob.FileName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "sandbox")
	if _, err := w.Write(content); err != nil {
		h.log.Error(err, fmt.Sprintf("Failed to write attachment %s", blob.FileID))
	}
	return nil
}

// saveHandler handles the form submission for creating or updating a page.
func (h *PageHandler) saveHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &middleware.AppError{Error: err, Message: "Upload is too large", Code: http.StatusRequestEntityTooLarge}
		}
		return &middleware.AppError{Error: err, Message: "Malformed form submission", Code: http.StatusBadRequest}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	input := service.PageInput{
		Name:    r.FormValue("name"),
		Content: r.FormValue("content"),
	}
	form := editForm{Name: input.Name, Content: input.Content}
	if raw := strings.TrimSpace(r.FormValue("id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return &middleware.AppError{Error: err, Message: "Invalid page id", Code: http.StatusBadRequest}
		}
		input.ID = &id
		form.ID = id
	}

	file, header, err := r.FormFile("attachment")
	switch {
	case err == nil:
		defer file.Close()
		input.Attachment = &service.Upload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     file,
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return &middleware.AppError{Error: err, Message: "Failed to read attachment", Code: http.StatusBadRequest}
	}

	page, err := h.pageService.SavePage(r.Context(), input)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			return h.render(w, r, http.StatusBadRequest, "edit.html", map[string]interface{}{
				"Form":   form,
				"Errors": verr.Fields,
			})
		case errors.Is(err, service.ErrConflict):
			return h.render(w, r, http.StatusConflict, "edit.html", map[string]interface{}{
				"Form":   form,
				"Errors": map[string]string{"name": "A page with this name already exists"},
			})
		}
		return middleware.NewAppError(err, "Problem in saving page")
	}

	http.Redirect(w, r, pageURL(page.Name), http.StatusSeeOther)
	return nil
}

// deletePageHandler deletes the page named by the form id and returns to
// the home page whatever the outcome.
func (h *PageHandler) deletePageHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	raw := r.PostFormValue("id")
	if raw == "" {
		h.log.Warn("Unable to delete page because form Id is missing")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.log.Warn(fmt.Sprintf("Unable to delete page because form Id %q is not a number", raw))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil
	}

	home := h.pageService.HomePage()
	if err := h.pageService.DeletePage(r.Context(), id, home); err != nil {
		h.log.Error(err, fmt.Sprintf("Error in deleting page id %d", id))
	}
	http.Redirect(w, r, pageURL(home), http.StatusSeeOther)
	return nil
}

// deleteAttachmentHandler removes one attachment and returns to the editor.
func (h *PageHandler) deleteAttachmentHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	fileID := r.PostFormValue("id")
	if fileID == "" {
		h.log.Warn("Unable to delete attachment because form Id is missing")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil
	}
	rawPageID := r.PostFormValue("pageId")
	pageID, err := strconv.ParseInt(rawPageID, 10, 64)
	if err != nil {
		h.log.Warn("Unable to delete attachment because form PageId is missing")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil
	}

	page, err := h.pageService.DeleteAttachment(r.Context(), pageID, fileID)
	if err != nil {
		h.log.Error(err, fmt.Sprintf("Error in deleting page attachment id %s", fileID))
		http.Redirect(w, r, redirectAfterFailedDetach(page), http.StatusSeeOther)
		return nil
	}
	http.Redirect(w, r, editURL(page.Name), http.StatusSeeOther)
	return nil
}

func redirectAfterFailedDetach(page *data.Page) string {
	if page == nil {
		return "/"
	}
	return pageURL(page.Name)
}

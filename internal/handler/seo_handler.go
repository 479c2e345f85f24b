package handler

import (
	"encoding/xml"
	"fmt"
	"markwiki/internal/logger"
	"markwiki/internal/service"
	"net/http"
	"net/url"
	"strings"
)

const sitemapDateFormat = "2006-01-02"

// SeoHandler holds dependencies for SEO-related handlers.
type SeoHandler struct {
	pageService service.PageServicer
	baseURL     string
	log         logger.Logger
}

// NewSeoHandler creates a new SeoHandler. baseURL is the public origin of
// the wiki, such as "https://wiki.example.com".
func NewSeoHandler(ps service.PageServicer, baseURL string, log logger.Logger) *SeoHandler {
	return &SeoHandler{pageService: ps, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

// robotsHandler serves robots.txt pointing crawlers at the sitemap.
func (h *SeoHandler) robotsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "User-agent: *")
	fmt.Fprintln(w, "Allow: /")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Sitemap: %s/sitemap.xml\n", h.baseURL)
}

type sitemapURL struct {
	XMLName xml.Name `xml:"url"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// sitemapHandler generates and serves a dynamic sitemap.xml.
func (h *SeoHandler) sitemapHandler(w http.ResponseWriter, r *http.Request) {
	pages, err := h.pageService.ListAllPages(r.Context())
	if err != nil {
		h.log.Error(err, "Failed to retrieve pages for sitemap")
		http.Error(w, "Failed to retrieve pages for sitemap", http.StatusInternalServerError)
		return
	}

	sitemap := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, len(pages)),
	}
	for i, page := range pages {
		sitemap.URLs[i] = sitemapURL{
			Loc:     h.baseURL + "/" + url.PathEscape(page.Name),
			LastMod: page.LastModifiedUTC.Format(sitemapDateFormat),
		}
	}

	out, err := xml.MarshalIndent(sitemap, "", "  ")
	if err != nil {
		h.log.Error(err, "Failed to generate sitemap XML")
		http.Error(w, "Failed to generate sitemap XML", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(xml.Header))
	w.Write(out)
}

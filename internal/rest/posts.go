package rest

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dfryer1193/cms/api"
	"github.com/dfryer1193/cms/blog/domain"
	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 10
	maxLimit     = 100
	indexLimit   = 1000
)

// PostsHandler serves published artifacts and their catalog metadata
type PostsHandler struct {
	catalog    domain.PostCatalog
	publishDir string
}

func NewPostsHandler(catalog domain.PostCatalog, publishDir string) *PostsHandler {
	return &PostsHandler{
		catalog:    catalog,
		publishDir: publishDir,
	}
}

func (h *PostsHandler) GetPosts(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultLimit)
	if err != nil || limit <= 0 || limit > maxLimit {
		c.JSON(http.StatusBadRequest, api.Error{Error: fmt.Sprintf("limit must be between 1 and %d", maxLimit)})
		return
	}

	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, api.Error{Error: "offset must be a non-negative integer"})
		return
	}

	entries, err := h.catalog.ListEntries(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, api.Error{Error: "failed to list posts"})
		return
	}

	posts := make([]api.Post, 0, len(entries))
	for _, e := range entries {
		posts = append(posts, toAPIPost(e))
	}

	c.JSON(http.StatusOK, api.PostList{Posts: posts, Limit: limit, Offset: offset})
}

func (h *PostsHandler) GetPost(c *gin.Context) {
	entry, ok := h.lookup(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, toAPIPost(entry))
}

// GetArtifact serves the published HTML file of a post
func (h *PostsHandler) GetArtifact(c *gin.Context) {
	entry, ok := h.lookup(c)
	if !ok {
		return
	}

	// HTMLPath comes from our own publish run, but never leave the publish directory
	if entry.HTMLPath != filepath.Base(entry.HTMLPath) {
		c.JSON(http.StatusNotFound, api.Error{Error: "post not found"})
		return
	}

	c.File(filepath.Join(h.publishDir, entry.HTMLPath))
}

// GetIndex renders a plain list of links to every published post
func (h *PostsHandler) GetIndex(c *gin.Context) {
	entries, err := h.catalog.ListEntries(c.Request.Context(), indexLimit, 0)
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "failed to list posts")
		return
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>posts</title></head>\n<body>\n<ul>\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "<li><a href=\"/posts/%s\">%s</a> <time>%s</time></li>\n",
			html.EscapeString(e.Slug),
			html.EscapeString(e.Title),
			e.Published.Format("2006-01-02 15:04"),
		)
	}
	b.WriteString("</ul>\n</body>\n</html>\n")

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(b.String()))
}

func (h *PostsHandler) lookup(c *gin.Context) (*domain.CatalogEntry, bool) {
	slug := c.Param("slug")

	entry, err := h.catalog.GetEntry(c.Request.Context(), slug)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, api.Error{Error: "post not found"})
		return nil, false
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, api.Error{Error: "failed to get post"})
		return nil, false
	}

	return entry, true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func toAPIPost(e *domain.CatalogEntry) api.Post {
	return api.Post{
		Slug:      e.Slug,
		Title:     e.Title,
		Snippet:   e.Snippet,
		URL:       "/posts/" + e.Slug,
		Published: e.Published,
	}
}

package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// IngestDocumentRequest submits one document for indexing.
type IngestDocumentRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// IngestDocument extracts, chunks, and indexes a document.
func (h *Handler) IngestDocument(c echo.Context) error {
	var req IngestDocumentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	ctx := c.Request().Context()

	result, err := h.service.IngestDocument(ctx, []byte(req.Content), req.Name)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, result)
}

// SearchRequest queries the indexed corpus.
type SearchRequest struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

// Search answers an ad-hoc corpus query.
func (h *Handler) Search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}

	ctx := c.Request().Context()

	hits, err := h.service.Search(ctx, req.Query, req.TopK, req.Filters)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"query": req.Query,
		"hits":  hits,
	})
}

package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platewatch/platewatch-backend/internal/http/response"
	"github.com/platewatch/platewatch-backend/internal/services"
)

type SearchHandler struct {
	search *services.SearchService
}

func NewSearchHandler(search *services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// GET /search?name=...&grade=&boro=&cuisine=&sort=&page=&per_page=
func (h *SearchHandler) Search(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_name", fmt.Errorf("query parameter 'name' is required"))
		return
	}

	q := services.SearchQuery{
		Name:    name,
		Grade:   c.Query("grade"),
		Boro:    c.Query("boro"),
		Cuisine: c.Query("cuisine"),
		Sort:    c.Query("sort"),
		Page:    queryInt(c, "page", 1),
		PerPage: queryInt(c, "per_page", 0),
	}

	results, err := h.search.Search(c.Request.Context(), q)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"results": results,
		"page":    q.Page,
		"count":   len(results),
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

package web

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paperdex/paperdex/internal/database"
	"github.com/paperdex/paperdex/internal/models"
)

// maxEditBody bounds a manual-edit request body.
const maxEditBody = 1 << 20

// listPapers returns the filtered paper list as JSON.
func (s *WebServer) listPapers(c *gin.Context) {
	filter := parseFilter(c)
	papers, err := s.DB.ListPapers(filter)
	if err != nil {
		log.Printf("[WEB] failed to list papers: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"papers": papers, "count": len(papers)})
}

// getPaper returns one paper by its BibTeX key.
func (s *WebServer) getPaper(c *gin.Context) {
	paperID := c.Param("id")
	paper, err := s.DB.GetPaperByID(paperID)
	if err != nil {
		log.Printf("[WEB] failed to fetch paper '%s': %v", paperID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	if paper == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
		return
	}
	c.JSON(http.StatusOK, paper)
}

// updatePaper applies a manual edit. The body uses the same partial-merge
// shape a classification reply does; the edit is attributed to the web app
// rather than a model alias.
func (s *WebServer) updatePaper(c *gin.Context) {
	paperID := c.Param("id")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEditBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
		return
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty update"})
		return
	}

	changed, err := s.DB.ApplyClassification(paperID, fields, models.ChangedByWebApp)
	if err != nil {
		log.Printf("[WEB] failed to update paper '%s': %v", paperID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	if !changed {
		c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
		return
	}
	log.Printf("[WEB] paper '%s' updated manually", paperID)
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// getStats returns catalog-wide counters as JSON.
func (s *WebServer) getStats(c *gin.Context) {
	stats, err := s.DB.GetStats()
	if err != nil {
		log.Printf("[WEB] failed to compute stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// batchRequest is the body of the classify/verify trigger endpoints.
type batchRequest struct {
	Mode    string `json:"mode"`
	PaperID string `json:"paper_id"`
}

func (s *WebServer) parseBatchRequest(c *gin.Context) (database.SelectMode, string, bool) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
		return "", "", false
	}
	if req.Mode == "" {
		req.Mode = string(database.SelectRemaining)
	}
	return database.SelectMode(req.Mode), req.PaperID, true
}

// startClassify triggers a background classification run.
func (s *WebServer) startClassify(c *gin.Context) {
	mode, paperID, ok := s.parseBatchRequest(c)
	if !ok {
		return
	}
	if err := s.Runner.StartClassify(mode, paperID); err != nil {
		s.batchStartError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"started": "classification", "mode": string(mode)})
}

// startVerify triggers a background verification run.
func (s *WebServer) startVerify(c *gin.Context) {
	mode, paperID, ok := s.parseBatchRequest(c)
	if !ok {
		return
	}
	if err := s.Runner.StartVerify(mode, paperID); err != nil {
		s.batchStartError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"started": "verification", "mode": string(mode)})
}

func (s *WebServer) batchStartError(c *gin.Context, err error) {
	if errors.Is(err, ErrBatchBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// cancelBatch requests cooperative shutdown of the running batch.
func (s *WebServer) cancelBatch(c *gin.Context) {
	if !s.Runner.Cancel() {
		c.JSON(http.StatusConflict, gin.H{"error": "no batch run in progress"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// batchStatus reports live batch progress.
func (s *WebServer) batchStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Runner.Status())
}

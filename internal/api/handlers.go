package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nonibytes/pipeq/pipeq"
	"github.com/nonibytes/pipeq/pipeq/query"
)

func (s *Server) collection(c *gin.Context) (*pipeq.Collection, bool) {
	name := c.Param("collection")
	col, ok := s.collections[name]
	if !ok {
		fail(c, http.StatusNotFound, "unknown collection: "+name)
		return nil, false
	}
	return col, true
}

func (s *Server) params(c *gin.Context) (query.Params, bool) {
	params, err := query.Parse(c.Request.URL.RawQuery)
	if err != nil {
		fail(c, http.StatusBadRequest, "malformed query string: "+err.Error())
		return nil, false
	}
	return params, true
}

func (s *Server) handleList(c *gin.Context) {
	col, ok := s.collection(c)
	if !ok {
		return
	}
	params, ok := s.params(c)
	if !ok {
		return
	}
	res, err := col.List(c.Request.Context(), params)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"count":       res.Count,
		"currentPage": res.CurrentPage,
		"totalPages":  res.TotalPages,
		"pageSize":    res.PageSize,
		"data":        res.Items,
	})
}

func (s *Server) handleExplain(c *gin.Context) {
	col, ok := s.collection(c)
	if !ok {
		return
	}
	params, ok := s.params(c)
	if !ok {
		return
	}
	out, err := col.Compile(params)
	if err != nil {
		s.respondError(c, err)
		return
	}
	issues := make([]string, len(out.Issues))
	for i, is := range out.Issues {
		issues[i] = is.String()
	}
	// encoded up front so a failure can still set the status
	b, err := json.Marshal(gin.H{
		"status":        "success",
		"pipeline":      out.Pipeline,
		"countPipeline": out.CountPipeline,
		"page":          out.Page,
		"limit":         out.Limit,
		"explain":       out.ExplainSteps,
		"issues":        issues,
	})
	if err != nil {
		s.respondError(c, fmt.Errorf("encode explain: %w", err))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

func (s *Server) handleCreate(c *gin.Context) {
	col, ok := s.collection(c)
	if !ok {
		return
	}
	body, ok := s.body(c)
	if !ok {
		return
	}
	id, err := col.InsertJSON(c.Request.Context(), body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	doc, err := col.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": doc})
}

func (s *Server) handleUpdate(c *gin.Context) {
	col, ok := s.collection(c)
	if !ok {
		return
	}
	body, ok := s.body(c)
	if !ok {
		return
	}
	doc, err := col.UpdateJSON(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": doc})
}

// body reads a bounded, non-empty request body.
func (s *Server) body(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		fail(c, http.StatusBadRequest, "cannot read request body")
		return nil, false
	}
	if len(body) == 0 {
		fail(c, http.StatusBadRequest, "request body is empty")
		return nil, false
	}
	return body, true
}

func (s *Server) handleGet(c *gin.Context) {
	col, ok := s.collection(c)
	if !ok {
		return
	}
	doc, err := col.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": doc})
}

func (s *Server) handleDelete(c *gin.Context) {
	col, ok := s.collection(c)
	if !ok {
		return
	}
	id := c.Param("id")
	existed, err := col.Delete(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !existed {
		s.respondError(c, pipeq.NotFoundError(col.Name(), id))
		return
	}
	c.Status(http.StatusNoContent)
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "fail", "message": msg})
}

// respondError maps pipeq error kinds to HTTP statuses. Internal failures
// are logged and reported without detail.
func (s *Server) respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case pipeq.IsKind(err, pipeq.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case pipeq.IsKind(err, pipeq.ErrValidation),
		pipeq.IsKind(err, pipeq.ErrTypeMismatch),
		pipeq.IsKind(err, pipeq.ErrSchema):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal server error")
	}
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mwiater/manara/internal/chat"
	"github.com/mwiater/manara/internal/rag"
	"github.com/mwiater/manara/internal/schema"
)

// APIError is the error body of every failed request.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// AnswerRequest is the body of POST /api/v1/answer.
type AnswerRequest struct {
	Query   string        `json:"query"`
	History []rag.Message `json:"history,omitempty"`
}

// AnswerResponse is the reply to POST /api/v1/answer.
type AnswerResponse struct {
	Answer    string   `json:"answer"`
	Kind      rag.Kind `json:"kind"`
	RequestID string   `json:"requestId"`
}

// RetrieveRequest is the body of POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
	TopN  int    `json:"topN,omitempty"`
}

// RetrieveResponse is the reply to POST /api/v1/retrieve.
type RetrieveResponse struct {
	Passages  []rag.Passage `json:"passages"`
	RequestID string        `json:"requestId"`
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": APIError{Code: code, Message: message, RequestID: requestID(c)}})
}

// bind reads the body, validates it against def and decodes it into dst.
func (s *Server) bind(c *gin.Context, def schema.Definition, dst any) bool {
	body, err := s.readBody(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, "body_too_large", err.Error())
			return false
		}
		abort(c, http.StatusBadRequest, "bad_body", err.Error())
		return false
	}
	if err := def.Validate(body); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func (s *Server) answer(c *gin.Context) {
	var req AnswerRequest
	if !s.bind(c, schema.Answer(), &req) {
		return
	}
	reply := s.svc.Ask(c.Request.Context(), req.Query, req.History)
	if reply.Err != nil {
		s.opts.Logger.Warn("answer degraded", "kind", reply.Kind, "err", reply.Err, "request_id", requestID(c))
	}
	c.JSON(http.StatusOK, AnswerResponse{Answer: reply.Text, Kind: reply.Kind, RequestID: requestID(c)})
}

func (s *Server) retrieve(c *gin.Context) {
	var req RetrieveRequest
	if !s.bind(c, schema.Retrieve(), &req) {
		return
	}
	if req.K > 0 && req.TopN > req.K {
		abort(c, http.StatusBadRequest, "invalid_request", "topN cannot exceed k")
		return
	}
	passages, err := s.svc.Retrieve(c.Request.Context(), req.Query, req.K, req.TopN)
	if err != nil {
		status, code := retrieveFailure(err)
		s.opts.Logger.Error("retrieve failed", "err", err, "request_id", requestID(c))
		abort(c, status, code, err.Error())
		return
	}
	if passages == nil {
		passages = []rag.Passage{}
	}
	c.JSON(http.StatusOK, RetrieveResponse{Passages: passages, RequestID: requestID(c)})
}

// retrieveFailure maps a stage error to a response status.
func retrieveFailure(err error) (int, string) {
	stage, ok := rag.StageOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal"
	}
	switch stage {
	case rag.StageConfig:
		return http.StatusServiceUnavailable, "not_ready"
	case rag.StageEmbed, rag.StageRerank, rag.StageSearch:
		return http.StatusBadGateway, string(stage) + "_failed"
	default:
		return http.StatusInternalServerError, string(stage) + "_failed"
	}
}

func (s *Server) quickActions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"actions": chat.QuickActions})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

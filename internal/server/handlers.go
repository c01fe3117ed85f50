package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/policyrag/internal/models"
	"github.com/hyperjump/policyrag/internal/storage"
)

type queryRequest struct {
	Query string `json:"query"`
}

type retrieveResponse struct {
	Context string       `json:"context"`
	Hits    []models.Hit `json:"hits"`
}

func decodeQuery(r *http.Request) (string, error) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", err
	}
	return req.Query, nil
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	query, err := decodeQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	s.logger.Debug("ask request", zap.String("query", query))
	res, err := s.asker.Run(r.Context(), query)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		if res == nil {
			s.respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.respondJSON(w, http.StatusBadGateway, res)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	query, err := decodeQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	s.logger.Debug("retrieve request", zap.String("query", query))
	res, err := s.retriever.RetrieveHits(r.Context(), query)
	if err != nil {
		s.logger.Error("retrieve failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	hits := res.Hits
	if hits == nil {
		hits = []models.Hit{}
	}
	s.respondJSON(w, http.StatusOK, retrieveResponse{Context: res.Context, Hits: hits})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// The body is optional and ignored; ingestion always reads the configured source directory.
	_, _ = io.Copy(io.Discard, r.Body)
	dir := s.config.Source.Directory
	s.logger.Debug("ingest request", zap.String("dir", dir))
	report, err := s.ingester.IngestDirectory(r.Context(), dir)
	if err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrDimensionMismatch) {
			status = http.StatusConflict
		}
		s.respondJSON(w, status, map[string]interface{}{"error": err.Error(), "report": report})
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := storage.CollectStatus(r.Context(), s.store, s.config)
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

package search

import (
	"context"

	"go.uber.org/zap"

	"docket/api/internal/logger"
	"docket/api/internal/metrics"
)

// Service is the facade that tries Meilisearch first and falls back to
// Postgres matching.
type Service struct {
	meili *Meili
	pg    *Postgres
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pg *Postgres) *Service {
	return &Service{meili: meili, pg: pg}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			metrics.SearchQueries.WithLabelValues("meili").Inc()
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		logger.Warn("meilisearch error, falling back to postgres", zap.Error(err))
	}

	metrics.SearchQueries.WithLabelValues("postgres").Inc()
	results, total, err := s.pg.Search(q)
	if err != nil {
		logger.Error("postgres search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Backend reports which engine a query issued right now would hit.
func (s *Service) Backend() string {
	if s.meili != nil && s.meili.Healthy() {
		return "meili"
	}
	return "postgres"
}

// IndexDocument indexes a document (fire-and-forget to Meilisearch).
func (s *Service) IndexDocument(rec DocumentRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDocument(rec); err != nil {
			metrics.SearchIndexErrors.Inc()
			logger.Warn("index document failed", zap.String("id", rec.ID), zap.Error(err))
		}
	}()
}

// DeleteDocument removes a document from the search index (fire-and-forget).
func (s *Service) DeleteDocument(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDocument(id); err != nil {
			metrics.SearchIndexErrors.Inc()
			logger.Warn("delete document from index failed", zap.String("id", id), zap.Error(err))
		}
	}()
}

// ReindexAll reads every document from Postgres and pushes the set to
// Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pg == nil {
		return
	}
	records, err := s.pg.LoadAllRecords(ctx)
	if err != nil {
		logger.Warn("reindex load failed", zap.Error(err))
		return
	}
	if len(records) == 0 {
		return
	}
	if err := s.meili.IndexDocuments(records); err != nil {
		metrics.SearchIndexErrors.Inc()
		logger.Warn("reindex failed", zap.Error(err))
		return
	}
	logger.Info("search reindex complete", zap.Int("documents", len(records)))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

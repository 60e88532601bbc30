// Package app wires the MSA linking engine, the document store, search,
// file storage and the dashboard assembly behind a single service type.
package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"docket/api/internal/blob"
	"docket/api/internal/cache"
	"docket/api/internal/config"
	"docket/api/internal/linking"
	"docket/api/internal/logger"
	"docket/api/internal/metrics"
	"docket/api/internal/msa"
	"docket/api/internal/search"
	"docket/api/internal/store"
	"docket/api/internal/util"
)

const defaultPageSize = 100

// Cache keys for the derived snapshots. Any write invalidates both.
const (
	snapshotBuckets  = "buckets"
	snapshotInsights = "insights"
)

type CreateDocumentInput struct {
	Category      string          `json:"category"`
	Title         string          `json:"title"`
	Client        string          `json:"client"`
	MSANumber     string          `json:"msa_number"`
	PONumber      string          `json:"po_number"`
	InvoiceNumber string          `json:"invoice_number"`
	LinkedTo      string          `json:"linked_to"`
	FilePath      string          `json:"file_path"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       *time.Time      `json:"due_date"`
	Status        string          `json:"status"`
}

// UpdateDocumentInput carries a partial edit. Nil fields are left untouched.
type UpdateDocumentInput struct {
	Category      *string          `json:"category"`
	Title         *string          `json:"title"`
	Client        *string          `json:"client"`
	MSANumber     *string          `json:"msa_number"`
	PONumber      *string          `json:"po_number"`
	InvoiceNumber *string          `json:"invoice_number"`
	LinkedTo      *string          `json:"linked_to"`
	FilePath      *string          `json:"file_path"`
	Amount        *decimal.Decimal `json:"amount"`
	DueDate       *time.Time       `json:"due_date"`
	Status        *string          `json:"status"`
}

type RecordAlertInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Level       string `json:"level"`
	DocumentID  string `json:"document_id"`
}

// ReconcileReport summarizes one explicit reconciliation pass.
type ReconcileReport struct {
	RunID          string        `json:"run_id"`
	Changed        bool          `json:"changed"`
	ChangesApplied int           `json:"changes_applied"`
	Documents      int           `json:"documents"`
	Duration       time.Duration `json:"duration"`
}

type HealthStatus struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Search   string `json:"search"`
	Files    string `json:"files"`
}

var allowedAlertLevels = map[string]struct{}{
	"info":     {},
	"warning":  {},
	"critical": {},
}

type dataStore interface {
	ListDocuments(ctx context.Context) ([]store.Document, error)
	ListDocumentsPage(ctx context.Context, skip, limit int) ([]store.Document, error)
	ListDocumentsByCategories(ctx context.Context, categories []string, createdBefore *time.Time) ([]store.Document, error)
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	InsertDocument(ctx context.Context, item store.Document) error
	UpdateDocument(ctx context.Context, item store.Document) error
	DeleteDocument(ctx context.Context, documentID string) (bool, error)
	ApplyFieldChanges(ctx context.Context, changes []store.FieldChange) error
	CountDocuments(ctx context.Context, category, status string, createdBefore *time.Time) (int, error)
	SumAmountsByCategories(ctx context.Context, categories []string, createdFrom, createdBefore time.Time) (decimal.Decimal, error)
	SumInvoicedAgainst(ctx context.Context, poNumber string) (decimal.Decimal, error)
	CategoryCounts(ctx context.Context) ([]store.CategoryCount, error)
	InsertException(ctx context.Context, item store.Exception) error
	ResolveException(ctx context.Context, exceptionID string) (bool, error)
	CountOpenExceptions(ctx context.Context, raisedBefore *time.Time) (int, error)
	ListRecentExceptions(ctx context.Context, limit int) ([]store.Exception, error)
	InsertAlert(ctx context.Context, item store.Alert) error
	AcknowledgeAlert(ctx context.Context, alertID string) (bool, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]store.Alert, error)
	Ping(ctx context.Context) error
}

type poCalculator interface {
	TotalInvoiced(ctx context.Context, po store.Document) (decimal.Decimal, error)
	Consumption(ctx context.Context, po store.Document) (linking.Consumption, error)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexDocument(rec search.DocumentRecord)
	DeleteDocument(id string)
	Backend() string
}

type fileStore interface {
	UploadDocumentFile(ctx context.Context, documentID, filename string, reader io.Reader, size int64, contentType string) (string, error)
	PresignedURL(ctx context.Context, objectKey string) (string, error)
	Delete(ctx context.Context, objectKey string) error
	ListProcessingReceipts(ctx context.Context) ([]blob.ProcessingReceipt, error)
}

type Service struct {
	cfg    config.Config
	store  dataStore
	po     poCalculator
	search searchService
	files  fileStore
	cache  *cache.Cache
	now    func() time.Time
}

// New builds the service. searchService and fileStore may be nil when the
// corresponding backend is not configured; snapshots may be nil to run
// without a cache.
func New(cfg config.Config, dataStore *store.PostgresStore, searchService *search.Service, fileStore *blob.Store, snapshots *cache.Cache) *Service {
	s := &Service{
		cfg:   cfg,
		store: dataStore,
		po:    linking.NewCalculator(dataStore),
		cache: snapshots,
		now:   func() time.Time { return time.Now().UTC() },
	}
	if searchService != nil {
		s.search = searchService
	}
	if fileStore != nil {
		s.files = fileStore
	}
	return s
}

// ReconcileInterval is the cadence the daemon runs the reconciliation pass on.
func (s *Service) ReconcileInterval() time.Duration {
	minutes := s.cfg.Reconcile.IntervalMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

func (s *Service) CreateDocument(ctx context.Context, input CreateDocumentInput) (store.Document, error) {
	category := strings.TrimSpace(input.Category)
	title := strings.TrimSpace(input.Title)
	if category == "" {
		return store.Document{}, validationError("category is required")
	}
	if title == "" {
		return store.Document{}, validationError("title is required")
	}
	if input.Amount.IsNegative() {
		return store.Document{}, validationError("amount must not be negative")
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = "Pending"
	}

	now := s.now()
	doc := store.Document{
		ID:            uuid.NewString(),
		Category:      normalizeCategory(category, input.Client),
		Title:         title,
		Client:        strings.TrimSpace(input.Client),
		MSANumber:     msa.Normalize(input.MSANumber),
		PONumber:      strings.TrimSpace(input.PONumber),
		InvoiceNumber: strings.TrimSpace(input.InvoiceNumber),
		LinkedTo:      strings.TrimSpace(input.LinkedTo),
		FilePath:      strings.TrimSpace(input.FilePath),
		Amount:        input.Amount,
		DueDate:       input.DueDate,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return store.Document{}, err
	}
	metrics.DocumentsCreated.Inc()
	s.invalidateSnapshots(ctx)
	if s.search != nil {
		s.search.IndexDocument(searchRecord(doc))
	}
	logger.Info("document created",
		zap.String("id", doc.ID),
		zap.String("category", doc.Category),
		zap.String("msa_number", doc.MSANumber))
	return doc, nil
}

func (s *Service) Document(ctx context.Context, documentID string) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, notFound("document")
	}
	return doc, err
}

func (s *Service) ListDocuments(ctx context.Context, skip, limit int) ([]store.Document, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	return s.store.ListDocumentsPage(ctx, skip, limit)
}

func (s *Service) UpdateDocument(ctx context.Context, documentID string, input UpdateDocumentInput) (store.Document, error) {
	doc, err := s.Document(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}

	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category == "" {
			return store.Document{}, validationError("category must not be blank")
		}
		doc.Category = category
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return store.Document{}, validationError("title must not be blank")
		}
		doc.Title = title
	}
	if input.Client != nil {
		doc.Client = strings.TrimSpace(*input.Client)
	}
	if input.MSANumber != nil {
		doc.MSANumber = msa.Normalize(*input.MSANumber)
	}
	if input.PONumber != nil {
		doc.PONumber = strings.TrimSpace(*input.PONumber)
	}
	if input.InvoiceNumber != nil {
		doc.InvoiceNumber = strings.TrimSpace(*input.InvoiceNumber)
	}
	if input.LinkedTo != nil {
		doc.LinkedTo = strings.TrimSpace(*input.LinkedTo)
	}
	if input.FilePath != nil {
		doc.FilePath = strings.TrimSpace(*input.FilePath)
	}
	if input.Amount != nil {
		if input.Amount.IsNegative() {
			return store.Document{}, validationError("amount must not be negative")
		}
		doc.Amount = *input.Amount
	}
	if input.DueDate != nil {
		doc.DueDate = input.DueDate
	}
	if input.Status != nil {
		doc.Status = strings.TrimSpace(*input.Status)
	}
	doc.UpdatedAt = s.now()

	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return store.Document{}, err
	}
	s.invalidateSnapshots(ctx)
	if s.search != nil {
		s.search.IndexDocument(searchRecord(doc))
	}
	return doc, nil
}

func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	doc, err := s.Document(ctx, documentID)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound("document")
	}
	s.invalidateSnapshots(ctx)
	if s.search != nil {
		s.search.DeleteDocument(documentID)
	}
	// Only clean up objects we put there ourselves; file_path can also hold
	// an external reference.
	if s.files != nil && strings.HasPrefix(doc.FilePath, "documents/") {
		if err := s.files.Delete(ctx, doc.FilePath); err != nil {
			logger.Warn("delete stored file failed",
				zap.String("id", documentID), zap.Error(err))
		}
	}
	return nil
}

// MSABuckets groups every linkable document under its canonical MSA number.
// Served from the snapshot cache when fresh.
func (s *Service) MSABuckets(ctx context.Context) (msa.BucketSet, error) {
	var cached msa.BucketSet
	if hit, _ := s.cache.Get(ctx, snapshotBuckets, &cached); hit {
		return cached, nil
	}

	docs, _, err := s.reconciledDocuments(ctx)
	if err != nil {
		return msa.BucketSet{}, err
	}
	set := msa.BuildBuckets(docs, s.now())
	metrics.BucketsTracked.Set(float64(len(set.Buckets)))
	metrics.UnlinkedDocuments.Set(float64(len(set.Unlinked)))
	if err := s.cache.Set(ctx, snapshotBuckets, set); err != nil {
		logger.Warn("cache buckets snapshot failed", zap.Error(err))
	}
	return set, nil
}

func (s *Service) UnlinkedDocuments(ctx context.Context) ([]store.Document, error) {
	docs, _, err := s.reconciledDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return msa.UnlinkedDocuments(docs), nil
}

// UnlinkedAlerts derives a warning for every linkable document that cannot
// be tied to an MSA. Nothing is persisted.
func (s *Service) UnlinkedAlerts(ctx context.Context) ([]store.Alert, error) {
	unlinked, err := s.UnlinkedDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return msa.UnlinkedAlerts(unlinked, s.now()), nil
}

// RunReconciliation loads every document, rewrites stale msa_number/title
// fields in one transaction and reports what changed. The daemon calls this
// on an interval; concurrent passes are safe, last write wins.
func (s *Service) RunReconciliation(ctx context.Context) (ReconcileReport, error) {
	runID := xid.New().String()
	started := time.Now()

	docs, applied, err := s.reconciledDocuments(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return ReconcileReport{RunID: runID}, err
	}

	duration := time.Since(started)
	metrics.ReconcileRuns.WithLabelValues("ok").Inc()
	metrics.ReconcileDuration.Observe(duration.Seconds())

	report := ReconcileReport{
		RunID:          runID,
		Changed:        applied > 0,
		ChangesApplied: applied,
		Documents:      len(docs),
		Duration:       duration,
	}
	logger.Info("reconciliation run finished",
		zap.String("run_id", report.RunID),
		zap.Int("documents", report.Documents),
		zap.Int("changes", report.ChangesApplied),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// POConsumption reports how much of a purchase order's cap the invoices
// raised against it have consumed.
func (s *Service) POConsumption(ctx context.Context, documentID string) (linking.Consumption, error) {
	doc, err := s.Document(ctx, documentID)
	if err != nil {
		return linking.Consumption{}, err
	}
	if doc.Category != store.CategoryClientPO && doc.Category != store.CategoryVendorPO {
		return linking.Consumption{}, validationError("document is not a purchase order")
	}
	return s.po.Consumption(ctx, doc)
}

// SearchDocuments runs the query through the search facade and hydrates the
// hits from the store. Hits whose rows are already gone are skipped.
func (s *Service) SearchDocuments(ctx context.Context, query string, limit int) ([]store.Document, error) {
	if s.search == nil {
		return []store.Document{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	resp := s.search.Search(search.Query{Text: query, Limit: limit})
	docs := make([]store.Document, 0, len(resp.Results))
	for _, hit := range resp.Results {
		doc, err := s.store.GetDocument(ctx, hit.ID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Service) AttachDocumentFile(ctx context.Context, documentID, filename string, reader io.Reader, size int64, contentType string) (store.Document, error) {
	if s.files == nil {
		return store.Document{}, domainError(http.StatusServiceUnavailable, "FILES_DISABLED", "file storage is not configured", nil)
	}
	if strings.TrimSpace(filename) == "" {
		return store.Document{}, validationError("filename is required")
	}
	doc, err := s.Document(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}

	key, err := s.files.UploadDocumentFile(ctx, documentID, filename, reader, size, contentType)
	if err != nil {
		return store.Document{}, err
	}
	doc.FilePath = key
	doc.UpdatedAt = s.now()
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return store.Document{}, err
	}
	s.invalidateSnapshots(ctx)
	if s.search != nil {
		s.search.IndexDocument(searchRecord(doc))
	}
	return doc, nil
}

func (s *Service) DocumentFileURL(ctx context.Context, documentID string) (string, error) {
	if s.files == nil {
		return "", domainError(http.StatusServiceUnavailable, "FILES_DISABLED", "file storage is not configured", nil)
	}
	doc, err := s.Document(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc.FilePath == "" {
		return "", notFound("document file")
	}
	return s.files.PresignedURL(ctx, doc.FilePath)
}

func (s *Service) RaiseException(ctx context.Context, documentID, message string) (store.Exception, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return store.Exception{}, validationError("message is required")
	}
	if _, err := s.Document(ctx, documentID); err != nil {
		return store.Exception{}, err
	}

	exc := store.Exception{
		ID:         util.NewID("exc"),
		DocumentID: documentID,
		Message:    message,
		RaisedAt:   s.now(),
	}
	if err := s.store.InsertException(ctx, exc); err != nil {
		return store.Exception{}, err
	}
	s.invalidateSnapshots(ctx)
	return exc, nil
}

func (s *Service) ResolveException(ctx context.Context, exceptionID string) error {
	changed, err := s.store.ResolveException(ctx, exceptionID)
	if err != nil {
		return err
	}
	if !changed {
		return notFound("exception")
	}
	s.invalidateSnapshots(ctx)
	return nil
}

func (s *Service) RecordAlert(ctx context.Context, input RecordAlertInput) (store.Alert, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.Alert{}, validationError("title is required")
	}
	level := strings.ToLower(strings.TrimSpace(input.Level))
	if level == "" {
		level = "info"
	}
	if _, ok := allowedAlertLevels[level]; !ok {
		return store.Alert{}, validationError("level must be one of: info, warning, critical")
	}

	alert := store.Alert{
		ID:          util.NewID("alr"),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Level:       level,
		Timestamp:   s.now(),
		DocumentID:  strings.TrimSpace(input.DocumentID),
	}
	if err := s.store.InsertAlert(ctx, alert); err != nil {
		return store.Alert{}, err
	}
	s.invalidateSnapshots(ctx)
	return alert, nil
}

func (s *Service) AcknowledgeAlert(ctx context.Context, alertID string) error {
	changed, err := s.store.AcknowledgeAlert(ctx, alertID)
	if err != nil {
		return err
	}
	if !changed {
		return notFound("alert")
	}
	s.invalidateSnapshots(ctx)
	return nil
}

func (s *Service) Health(ctx context.Context) HealthStatus {
	hs := HealthStatus{
		OK:       true,
		Database: "ok",
		Cache:    "disabled",
		Search:   "disabled",
		Files:    "disabled",
	}
	if err := s.store.Ping(ctx); err != nil {
		hs.OK = false
		hs.Database = err.Error()
	}
	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			hs.Cache = err.Error()
		} else {
			hs.Cache = "ok"
		}
	}
	if s.search != nil {
		hs.Search = s.search.Backend()
	}
	if s.files != nil {
		hs.Files = "ok"
	}
	return hs
}

// reconciledDocuments is the read path behind buckets, unlinked listings and
// the dashboard: load everything, run the reconciliation pass, persist any
// corrections in one transaction and hand back the corrected snapshot.
func (s *Service) reconciledDocuments(ctx context.Context) ([]store.Document, int, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, 0, err
	}
	reconciled, changes := msa.Reconcile(docs)
	if len(changes) == 0 {
		return reconciled, 0, nil
	}
	if err := s.store.ApplyFieldChanges(ctx, changes); err != nil {
		return nil, 0, err
	}
	metrics.ReconcileChanges.Add(float64(len(changes)))
	s.invalidateSnapshots(ctx)
	s.reindexChanged(reconciled, changes)
	return reconciled, len(changes), nil
}

func (s *Service) reindexChanged(docs []store.Document, changes []store.FieldChange) {
	if s.search == nil || len(changes) == 0 {
		return
	}
	touched := make(map[string]struct{}, len(changes))
	for _, change := range changes {
		touched[change.DocumentID] = struct{}{}
	}
	for _, doc := range docs {
		if _, ok := touched[doc.ID]; ok {
			s.search.IndexDocument(searchRecord(doc))
		}
	}
}

func (s *Service) invalidateSnapshots(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

// Clients on the agreement programs get their PO paperwork filed as service
// agreements regardless of the submitted category.
var agreementClients = map[string]struct{}{
	"google llc":       {},
	"platform clients": {},
	"emb global":       {},
}

func normalizeCategory(category, client string) string {
	if category != store.CategoryClientPO && category != store.CategoryVendorPO {
		return category
	}
	if _, ok := agreementClients[strings.ToLower(client)]; ok {
		return store.CategoryServiceAgreement
	}
	return category
}

func searchRecord(doc store.Document) search.DocumentRecord {
	return search.DocumentRecord{
		ID:            doc.ID,
		Title:         doc.Title,
		Client:        doc.Client,
		Category:      doc.Category,
		Status:        doc.Status,
		MSANumber:     doc.MSANumber,
		PONumber:      doc.PONumber,
		InvoiceNumber: doc.InvoiceNumber,
	}
}

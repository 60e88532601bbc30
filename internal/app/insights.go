package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"docket/api/internal/blob"
	"docket/api/internal/logger"
	"docket/api/internal/msa"
	"docket/api/internal/store"
)

const (
	// Comparison window for the KPI deltas.
	previousPeriod = 30 * 24 * time.Hour

	// Estimate used for receipts that carry no measured duration.
	defaultProcessingMinutes = 3.0

	trendMonths = 6
	recentLimit = 10
)

// KPIMetric is one dashboard headline number. Values are raw; rendering
// (units, rounding, arrows) is up to the consumer.
type KPIMetric struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Delta  float64 `json:"delta"`
	Helper string  `json:"helper"`
}

// TrendPoint is one month of the client/vendor volume trend, in thousands.
type TrendPoint struct {
	Month  string `json:"month"`
	Client int    `json:"client"`
	Vendor int    `json:"vendor"`
}

type CategorySplit struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type DashboardInsights struct {
	KPIs             []KPIMetric       `json:"kpis"`
	UtilizationTrend []TrendPoint      `json:"utilization_trend"`
	CategorySplit    []CategorySplit   `json:"category_split"`
	Alerts           []store.Alert     `json:"alerts"`
	Exceptions       []store.Exception `json:"exceptions"`
}

// DashboardInsights assembles the full dashboard: KPI headline numbers, the
// six-month volume trend, the category split, current alerts (derived
// unlinked warnings first, then the most recent persisted ones) and open
// exceptions. Served from the snapshot cache when fresh.
func (s *Service) DashboardInsights(ctx context.Context) (DashboardInsights, error) {
	var cached DashboardInsights
	if hit, _ := s.cache.Get(ctx, snapshotInsights, &cached); hit {
		return cached, nil
	}

	docs, _, err := s.reconciledDocuments(ctx)
	if err != nil {
		return DashboardInsights{}, err
	}
	now := s.now()

	kpis, err := s.buildKPIs(ctx, now)
	if err != nil {
		return DashboardInsights{}, err
	}
	trend, err := s.utilizationTrend(ctx, now)
	if err != nil {
		return DashboardInsights{}, err
	}
	split, err := s.categorySplit(ctx)
	if err != nil {
		return DashboardInsights{}, err
	}

	alerts := msa.UnlinkedAlerts(msa.UnlinkedDocuments(docs), now)
	stored, err := s.store.ListRecentAlerts(ctx, recentLimit)
	if err != nil {
		return DashboardInsights{}, err
	}
	alerts = append(alerts, stored...)

	exceptions, err := s.store.ListRecentExceptions(ctx, recentLimit)
	if err != nil {
		return DashboardInsights{}, err
	}

	insights := DashboardInsights{
		KPIs:             kpis,
		UtilizationTrend: trend,
		CategorySplit:    split,
		Alerts:           alerts,
		Exceptions:       exceptions,
	}
	if err := s.cache.Set(ctx, snapshotInsights, insights); err != nil {
		logger.Warn("cache insights snapshot failed", zap.Error(err))
	}
	return insights, nil
}

func (s *Service) buildKPIs(ctx context.Context, now time.Time) ([]KPIMetric, error) {
	prevCutoff := now.Add(-previousPeriod)

	activePOs, err := s.store.CountDocuments(ctx, store.CategoryClientPO, "Approved", nil)
	if err != nil {
		return nil, err
	}
	prevActivePOs, err := s.store.CountDocuments(ctx, store.CategoryClientPO, "Approved", &prevCutoff)
	if err != nil {
		return nil, err
	}

	utilization, err := s.invoiceUtilization(ctx, nil)
	if err != nil {
		return nil, err
	}
	prevUtilization, err := s.invoiceUtilization(ctx, &prevCutoff)
	if err != nil {
		return nil, err
	}

	openExceptions, err := s.store.CountOpenExceptions(ctx, nil)
	if err != nil {
		return nil, err
	}
	prevOpenExceptions, err := s.store.CountOpenExceptions(ctx, &prevCutoff)
	if err != nil {
		return nil, err
	}

	receipts := s.processingReceipts(ctx)
	avgProcessing := averageProcessingMinutes(receipts, nil)
	prevAvgProcessing := averageProcessingMinutes(receipts, &prevCutoff)
	processingDelta := 0.0
	if prevAvgProcessing > 0 {
		processingDelta = avgProcessing - prevAvgProcessing
	}

	return []KPIMetric{
		{
			Label:  "Active Client POs",
			Value:  float64(activePOs),
			Delta:  percentageChange(float64(prevActivePOs), float64(activePOs)),
			Helper: "vs last 30 days",
		},
		{
			Label:  "Invoice Utilization",
			Value:  utilization,
			Delta:  percentageChange(prevUtilization, utilization),
			Helper: "PO caps consumed",
		},
		{
			Label:  "Exceptions",
			Value:  float64(openExceptions),
			Delta:  float64(openExceptions - prevOpenExceptions),
			Helper: "open validation issues",
		},
		{
			Label:  "Avg. Processing Time",
			Value:  avgProcessing,
			Delta:  processingDelta,
			Helper: "from ingest to validation",
		},
	}, nil
}

// invoiceUtilization is the share of the combined PO caps that invoicing has
// consumed, in percent. Zero when there is no PO volume. The createdBefore
// cutoff restricts which POs count; invoices follow their PO regardless of
// when they were raised.
func (s *Service) invoiceUtilization(ctx context.Context, createdBefore *time.Time) (float64, error) {
	pos, err := s.store.ListDocumentsByCategories(ctx,
		[]string{store.CategoryClientPO, store.CategoryVendorPO}, createdBefore)
	if err != nil {
		return 0, err
	}

	totalCap := decimal.Zero
	totalInvoiced := decimal.Zero
	for _, po := range pos {
		totalCap = totalCap.Add(po.Amount)
		invoiced, err := s.po.TotalInvoiced(ctx, po)
		if err != nil {
			return 0, err
		}
		totalInvoiced = totalInvoiced.Add(invoiced)
	}
	if !totalCap.IsPositive() {
		return 0, nil
	}
	ratio, _ := totalInvoiced.Div(totalCap).Mul(decimal.NewFromInt(100)).Float64()
	return ratio, nil
}

// utilizationTrend reports six 30-day windows of client and vendor volume,
// oldest first, anchored on the first of the current month.
func (s *Service) utilizationTrend(ctx context.Context, now time.Time) ([]TrendPoint, error) {
	monthAnchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	trend := make([]TrendPoint, 0, trendMonths)
	for i := trendMonths - 1; i >= 0; i-- {
		start := monthAnchor.AddDate(0, 0, -30*i)
		end := start.AddDate(0, 0, 30)

		clientSum, err := s.store.SumAmountsByCategories(ctx,
			[]string{store.CategoryClientPO, store.CategoryClientInvoice}, start, end)
		if err != nil {
			return nil, err
		}
		vendorSum, err := s.store.SumAmountsByCategories(ctx,
			[]string{store.CategoryVendorPO, store.CategoryVendorInvoice}, start, end)
		if err != nil {
			return nil, err
		}

		trend = append(trend, TrendPoint{
			Month:  start.Format("Jan"),
			Client: thousands(clientSum),
			Vendor: thousands(vendorSum),
		})
	}
	return trend, nil
}

func (s *Service) categorySplit(ctx context.Context) ([]CategorySplit, error) {
	counts, err := s.store.CategoryCounts(ctx)
	if err != nil {
		return nil, err
	}
	split := make([]CategorySplit, 0, len(counts))
	for _, c := range counts {
		split = append(split, CategorySplit{Name: c.Category, Value: c.Count})
	}
	return split, nil
}

func (s *Service) processingReceipts(ctx context.Context) []blob.ProcessingReceipt {
	if s.files == nil {
		return nil
	}
	receipts, err := s.files.ListProcessingReceipts(ctx)
	if err != nil {
		logger.Warn("list processing receipts failed", zap.Error(err))
		return nil
	}
	return receipts
}

// averageProcessingMinutes is the mean ingest-to-validation time over the
// given receipts. Receipts after the cutoff are excluded; receipts with no
// measured duration contribute the default estimate.
func averageProcessingMinutes(receipts []blob.ProcessingReceipt, before *time.Time) float64 {
	total := 0.0
	count := 0
	for _, r := range receipts {
		if before != nil && r.ProcessedAt.After(*before) {
			continue
		}
		minutes := r.DurationMinutes
		if minutes <= 0 {
			minutes = defaultProcessingMinutes
		}
		total += minutes
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// percentageChange follows dashboard convention: growth from zero reads as
// +100%, zero to zero as flat.
func percentageChange(old, current float64) float64 {
	if old == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - old) / old * 100
}

// thousands reports an amount in whole thousands, zero when nothing was
// billed.
func thousands(amount decimal.Decimal) int {
	if !amount.IsPositive() {
		return 0
	}
	return int(amount.Div(decimal.NewFromInt(1000)).IntPart())
}

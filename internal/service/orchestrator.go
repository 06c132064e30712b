// Package service orchestrates insight requests: parameter validation, role
// scoping, pagination, phased timeouts, batch circuit breaking, and
// persistence of completed analyses.
package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/datalitbang/fenomena-insight/internal/model"
	"github.com/datalitbang/fenomena-insight/internal/resilience"
	"github.com/datalitbang/fenomena-insight/internal/store"
)

const (
	defaultLimit = 5
	maxLimit     = 10

	// filterAll is the query-parameter sentinel for "no restriction".
	filterAll = "all"
)

// Sentinel errors classified by the HTTP layer.
var (
	// ErrInvalidParam marks a malformed identifier parameter. Rejected
	// before any I/O.
	ErrInvalidParam = eris.New("invalid request parameter")

	// ErrForbidden marks a caller without the role or assignment required
	// for the requested scope.
	ErrForbidden = eris.New("caller lacks required role or assignment")

	// ErrCountTimeout and ErrFetchTimeout mark the fatal phase timeouts.
	// The processing-phase timeout is not an error: it truncates the batch.
	ErrCountTimeout = eris.New("phenomena count timed out")
	ErrFetchTimeout = eris.New("phenomena fetch timed out")
)

// Principal is the already-authenticated caller identity, passed explicitly
// rather than through ambient request state.
type Principal struct {
	Role     string
	UserID   string
	RegionID string // assigned region for scoped callers; empty if none
}

// IsAdmin reports whether the caller may query across all regions and users.
func (p Principal) IsAdmin() bool {
	return p.Role == "admin"
}

// Params are the validated-on-entry request parameters.
type Params struct {
	CategoryID   string
	PeriodID     string
	RegionID     string
	PhenomenonID string
	Page         int
	Limit        int
}

// Timeouts bound the three request phases. Count and Fetch are fatal when
// exceeded; Process truncates the batch and returns what completed.
type Timeouts struct {
	Count   time.Duration
	Fetch   time.Duration
	Process time.Duration
}

// DefaultTimeouts returns the standard phase budgets. Count < Fetch <
// Process ordering is load-bearing: the cheap phases fail fast.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Count:   10 * time.Second,
		Fetch:   15 * time.Second,
		Process: 45 * time.Second,
	}
}

// Analyzer produces one insight per phenomenon.
type Analyzer interface {
	Analyze(ctx context.Context, p model.Phenomenon) (*model.FenomenaInsight, error)
}

// Summary aggregates the returned insights.
type Summary struct {
	TotalPhenomena      int     `json:"totalPhenomena"`
	AvgOverallScore     float64 `json:"avgOverallScore"`
	TotalCorrelatedNews int     `json:"totalCorrelatedNews"`
	TotalSurveyNotes    int     `json:"totalSurveyNotes"`
}

// Pagination describes the page window relative to the total match count.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Processing reports how the batch fared.
type Processing struct {
	FailedInsights    int `json:"failedInsights"`
	ProcessedInsights int `json:"processedInsights"`
	RequestedInsights int `json:"requestedInsights"`
}

// Result is the full response payload for an insight request.
type Result struct {
	Insights   []model.FenomenaInsight `json:"insights"`
	Summary    Summary                 `json:"summary"`
	Pagination Pagination              `json:"pagination"`
	Processing Processing              `json:"processing"`
	Partial    bool                    `json:"partial,omitempty"`
	Message    string                  `json:"message,omitempty"`
}

// Orchestrator coordinates the end-to-end insight request.
type Orchestrator struct {
	phenomena store.PhenomenonStore
	analyses  store.AnalysisStore
	analyzer  Analyzer
	timeouts  Timeouts
}

// NewOrchestrator wires the orchestrator. Zero-valued timeouts fall back to
// defaults.
func NewOrchestrator(phenomena store.PhenomenonStore, analyses store.AnalysisStore, analyzer Analyzer, timeouts Timeouts) *Orchestrator {
	def := DefaultTimeouts()
	if timeouts.Count <= 0 {
		timeouts.Count = def.Count
	}
	if timeouts.Fetch <= 0 {
		timeouts.Fetch = def.Fetch
	}
	if timeouts.Process <= 0 {
		timeouts.Process = def.Process
	}
	return &Orchestrator{
		phenomena: phenomena,
		analyses:  analyses,
		analyzer:  analyzer,
		timeouts:  timeouts,
	}
}

// GetInsights validates, scopes, paginates, and processes an insight
// request for the given caller.
func (o *Orchestrator) GetInsights(ctx context.Context, caller Principal, params Params) (*Result, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && caller.UserID == "" && caller.RegionID == "" {
		return nil, eris.Wrap(ErrForbidden, "service: scoped caller without region or user assignment")
	}

	params = clampPagination(params)
	filter := buildFilter(caller, params)

	total, err := o.countPhenomena(ctx, filter)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return emptyResult(params, "Tidak ada fenomena yang cocok dengan filter yang dipilih."), nil
	}

	phenomena, err := o.fetchPage(ctx, filter, params)
	if err != nil {
		return nil, err
	}

	insights, failed, partial := o.processBatch(ctx, phenomena)

	res := &Result{
		Insights:   insights,
		Summary:    summarize(total, insights),
		Pagination: paginate(params, total),
		Processing: Processing{
			FailedInsights:    failed,
			ProcessedInsights: len(insights),
			RequestedInsights: len(phenomena),
		},
		Partial: partial,
	}
	if partial {
		res.Message = "Sebagian fenomena tidak selesai diproses; hasil yang sudah selesai tetap ditampilkan."
	}
	return res, nil
}

func (o *Orchestrator) countPhenomena(ctx context.Context, filter store.PhenomenonFilter) (int, error) {
	countCtx, cancel := context.WithTimeout(ctx, o.timeouts.Count)
	defer cancel()

	total, err := o.phenomena.CountPhenomena(countCtx, filter)
	if err != nil {
		// Only the phase budget expiring is a count timeout; a parent
		// deadline keeps its own classification.
		if countCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return 0, eris.Wrap(ErrCountTimeout, "service: count phenomena")
		}
		return 0, eris.Wrap(err, "service: count phenomena")
	}
	return total, nil
}

func (o *Orchestrator) fetchPage(ctx context.Context, filter store.PhenomenonFilter, params Params) ([]model.Phenomenon, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.timeouts.Fetch)
	defer cancel()

	filter.Limit = params.Limit
	filter.Offset = (params.Page - 1) * params.Limit
	if filter.PhenomenonID != "" {
		// A direct phenomenon lookup ignores pagination.
		filter.Limit = 1
		filter.Offset = 0
	}

	phenomena, err := o.phenomena.ListPhenomena(fetchCtx, filter)
	if err != nil {
		if fetchCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, eris.Wrap(ErrFetchTimeout, "service: fetch phenomena page")
		}
		return nil, eris.Wrap(err, "service: fetch phenomena page")
	}
	return phenomena, nil
}

// processBatch runs the analysis loop sequentially under the processing
// timeout. Per-phenomenon failures are recovered locally until the batch
// breaker trips; a timeout truncates the batch. Either way the insights
// completed so far are returned.
func (o *Orchestrator) processBatch(ctx context.Context, phenomena []model.Phenomenon) (insights []model.FenomenaInsight, failed int, partial bool) {
	procCtx, cancel := context.WithTimeout(ctx, o.timeouts.Process)
	defer cancel()

	breaker := resilience.NewBatchBreaker(len(phenomena))

	for _, ph := range phenomena {
		if procCtx.Err() != nil {
			partial = true
			break
		}

		ins, err := o.analyzer.Analyze(procCtx, ph)
		if err != nil {
			if procCtx.Err() != nil {
				// Timeout fired mid-phenomenon: the partial insight is
				// discarded, completed ones are kept.
				partial = true
				break
			}
			failed++
			zap.L().Warn("service: insight analysis failed",
				zap.String("phenomenon_id", ph.ID),
				zap.Error(err),
			)
			if breaker.RecordFailure() {
				partial = true
				zap.L().Warn("service: batch breaker tripped, aborting remaining phenomena",
					zap.Int("failures", failed),
					zap.Int("batch_size", len(phenomena)),
				)
				break
			}
			continue
		}

		o.persist(procCtx, ins)
		insights = append(insights, *ins)
	}

	return insights, failed, partial
}

// persist appends the analysis record. Persistence failures are logged and
// never affect the request or other insights.
func (o *Orchestrator) persist(ctx context.Context, ins *model.FenomenaInsight) {
	rec := &model.AnalysisRecord{
		ID:           uuid.NewString(),
		PhenomenonID: ins.Phenomenon.ID,
		AnalysisType: model.AnalysisTypeInsight,
		Insight:      *ins,
		CreatedAt:    time.Now().UTC(),
	}

	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("save analysis record")
	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return o.analyses.SaveAnalysis(ctx, rec)
	})
	if err != nil {
		zap.L().Warn("service: failed to persist analysis record",
			zap.String("phenomenon_id", ins.Phenomenon.ID),
			zap.Error(err),
		)
	}
}

func validateParams(params Params) error {
	if err := validateID("categoryId", params.CategoryID, true); err != nil {
		return err
	}
	if err := validateID("regionId", params.RegionID, true); err != nil {
		return err
	}
	if err := validateID("phenomenonId", params.PhenomenonID, false); err != nil {
		return err
	}
	return nil
}

// validateID accepts empty values and, when allowAll is set, the "all"
// sentinel; anything else must be a well-formed identifier.
func validateID(name, value string, allowAll bool) error {
	if value == "" {
		return nil
	}
	if allowAll && value == filterAll {
		return nil
	}
	if _, err := uuid.Parse(value); err != nil {
		return eris.Wrapf(ErrInvalidParam, "service: %s %q", name, value)
	}
	return nil
}

func clampPagination(params Params) Params {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PhenomenonID != "" {
		// A direct lookup ignores pagination; pin the metadata to page 1 so
		// it cannot report a previous page that does not exist.
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = defaultLimit
	}
	if params.Limit > maxLimit {
		params.Limit = maxLimit
	}
	return params
}

// buildFilter translates parameters into a store filter and applies role
// scoping: non-admin callers see only their assigned region, or failing
// that, their own phenomena.
func buildFilter(caller Principal, params Params) store.PhenomenonFilter {
	f := store.PhenomenonFilter{PhenomenonID: params.PhenomenonID}
	if params.CategoryID != "" && params.CategoryID != filterAll {
		f.CategoryID = params.CategoryID
	}
	if params.PeriodID != "" && params.PeriodID != filterAll {
		f.PeriodID = params.PeriodID
	}
	if params.RegionID != "" && params.RegionID != filterAll {
		f.RegionID = params.RegionID
	}

	if !caller.IsAdmin() {
		if caller.RegionID != "" {
			f.RegionID = caller.RegionID
		} else {
			f.UserID = caller.UserID
		}
	}
	return f
}

func summarize(total int, insights []model.FenomenaInsight) Summary {
	s := Summary{TotalPhenomena: total}
	if len(insights) == 0 {
		return s
	}

	var scoreSum float64
	for _, ins := range insights {
		scoreSum += ins.Metrics.OverallScore
		s.TotalCorrelatedNews += len(ins.CorrelatedNews)
		s.TotalSurveyNotes += len(ins.RelatedSurveyNotes)
	}
	s.AvgOverallScore = math.Round(scoreSum/float64(len(insights))*100) / 100
	return s
}

func paginate(params Params, total int) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(params.Limit)))
	return Pagination{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}

func emptyResult(params Params, message string) *Result {
	return &Result{
		Insights:   []model.FenomenaInsight{},
		Pagination: paginate(params, 0),
		Message:    message,
	}
}

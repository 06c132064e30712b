package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datalitbang/fenomena-insight/internal/model"
	"github.com/datalitbang/fenomena-insight/internal/store"
)

type fakePhenomenonStore struct {
	total          int
	countErr       error
	countBlocks    bool
	listBlocks     bool
	phenomena      []model.Phenomenon
	listErr        error
	gotCountFilter store.PhenomenonFilter
	gotListFilter  store.PhenomenonFilter
}

func (f *fakePhenomenonStore) CountPhenomena(ctx context.Context, filter store.PhenomenonFilter) (int, error) {
	f.gotCountFilter = filter
	if f.countBlocks {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.total, f.countErr
}

func (f *fakePhenomenonStore) ListPhenomena(ctx context.Context, filter store.PhenomenonFilter) ([]model.Phenomenon, error) {
	f.gotListFilter = filter
	if f.listBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.phenomena, f.listErr
}

type fakeAnalysisStore struct {
	saved   []*model.AnalysisRecord
	saveErr error
}

func (f *fakeAnalysisStore) SaveAnalysis(_ context.Context, rec *model.AnalysisRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, rec)
	return nil
}

type fakeAnalyzer struct {
	failFor map[string]bool
	calls   []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, p model.Phenomenon) (*model.FenomenaInsight, error) {
	f.calls = append(f.calls, p.ID)
	if f.failFor[p.ID] {
		return nil, errors.New("analysis failed")
	}
	return &model.FenomenaInsight{
		Phenomenon: p,
		Metrics:    model.InsightMetrics{OverallScore: 50},
	}, nil
}

// stallingAnalyzer completes the first few phenomena immediately, then
// blocks until the processing deadline cancels it.
type stallingAnalyzer struct {
	completeFirst int
	calls         int
}

func (s *stallingAnalyzer) Analyze(ctx context.Context, p model.Phenomenon) (*model.FenomenaInsight, error) {
	s.calls++
	if s.calls <= s.completeFirst {
		return &model.FenomenaInsight{
			Phenomenon: p,
			Metrics:    model.InsightMetrics{OverallScore: 50},
		}, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func admin() Principal {
	return Principal{Role: "admin", UserID: "admin-1"}
}

func batch(n int) []model.Phenomenon {
	out := make([]model.Phenomenon, n)
	for i := range out {
		out[i] = model.Phenomenon{ID: string(rune('a' + i))}
	}
	return out
}

func TestGetInsights_InvalidCategoryID(t *testing.T) {
	orch := NewOrchestrator(&fakePhenomenonStore{}, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{})

	_, err := orch.GetInsights(context.Background(), admin(), Params{CategoryID: "not-a-uuid"})
	if !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("err = %v, want ErrInvalidParam", err)
	}
}

func TestGetInsights_AllSentinelAccepted(t *testing.T) {
	phenomena := &fakePhenomenonStore{total: 0}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{})

	_, err := orch.GetInsights(context.Background(), admin(), Params{CategoryID: "all", RegionID: "all"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if phenomena.gotCountFilter.CategoryID != "" || phenomena.gotCountFilter.RegionID != "" {
		t.Error(`"all" should translate to an unrestricted filter`)
	}
}

func TestGetInsights_PhenomenonIDRejectsAll(t *testing.T) {
	orch := NewOrchestrator(&fakePhenomenonStore{}, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{})

	_, err := orch.GetInsights(context.Background(), admin(), Params{PhenomenonID: "all"})
	if !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("err = %v, want ErrInvalidParam for phenomenonId=all", err)
	}
}

func TestGetInsights_PaginationClamps(t *testing.T) {
	phenomena := &fakePhenomenonStore{total: 25}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{})

	res, err := orch.GetInsights(context.Background(), admin(), Params{Page: 0, Limit: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Pagination.Page != 1 || res.Pagination.Limit != 10 {
		t.Errorf("pagination = page %d limit %d, want page 1 limit 10",
			res.Pagination.Page, res.Pagination.Limit)
	}
	if res.Pagination.TotalPages != 3 {
		t.Errorf("totalPages = %d, want 3", res.Pagination.TotalPages)
	}
	if !res.Pagination.HasNext || res.Pagination.HasPrev {
		t.Error("expected hasNext and not hasPrev on the first page")
	}
	if phenomena.gotListFilter.Limit != 10 || phenomena.gotListFilter.Offset != 0 {
		t.Errorf("list filter limit/offset = %d/%d, want 10/0",
			phenomena.gotListFilter.Limit, phenomena.gotListFilter.Offset)
	}
}

func TestGetInsights_NoMatches(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	orch := NewOrchestrator(&fakePhenomenonStore{total: 0}, &fakeAnalysisStore{}, analyzer, Timeouts{})

	res, err := orch.GetInsights(context.Background(), admin(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Insights) != 0 {
		t.Errorf("insights = %d, want 0", len(res.Insights))
	}
	if res.Message == "" {
		t.Error("expected an explanatory message for the empty result")
	}
	if res.Pagination.Total != 0 {
		t.Errorf("total = %d, want 0", res.Pagination.Total)
	}
	if len(analyzer.calls) != 0 {
		t.Error("analyzer should not run when nothing matches")
	}
}

func TestGetInsights_BreakerTripsPartial(t *testing.T) {
	phenomena := &fakePhenomenonStore{total: 6, phenomena: batch(6)}
	analyzer := &fakeAnalyzer{failFor: map[string]bool{"a": true, "b": true, "c": true}}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, analyzer, Timeouts{})

	res, err := orch.GetInsights(context.Background(), admin(), Params{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Partial {
		t.Error("expected partial result after breaker trip")
	}
	if res.Processing.FailedInsights != 3 {
		t.Errorf("failedInsights = %d, want 3", res.Processing.FailedInsights)
	}
	if res.Processing.RequestedInsights != 6 {
		t.Errorf("requestedInsights = %d, want 6", res.Processing.RequestedInsights)
	}
	if len(analyzer.calls) != 3 {
		t.Errorf("analyzer ran %d times, want 3 before the trip", len(analyzer.calls))
	}
	if res.Message == "" {
		t.Error("expected a partial-result message")
	}
}

func TestGetInsights_IsolatedFailuresDoNotTrip(t *testing.T) {
	phenomena := &fakePhenomenonStore{total: 10, phenomena: batch(10)}
	analyzer := &fakeAnalyzer{failFor: map[string]bool{"b": true, "f": true}}
	analyses := &fakeAnalysisStore{}
	orch := NewOrchestrator(phenomena, analyses, analyzer, Timeouts{})

	res, err := orch.GetInsights(context.Background(), admin(), Params{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Partial {
		t.Error("two failures in ten should not trip the breaker")
	}
	if res.Processing.FailedInsights != 2 {
		t.Errorf("failedInsights = %d, want 2", res.Processing.FailedInsights)
	}
	if res.Processing.ProcessedInsights != 8 {
		t.Errorf("processedInsights = %d, want 8", res.Processing.ProcessedInsights)
	}
	if len(analyses.saved) != 8 {
		t.Errorf("saved %d analysis records, want 8", len(analyses.saved))
	}
}

func TestGetInsights_PersistFailureDoesNotFailRequest(t *testing.T) {
	phenomena := &fakePhenomenonStore{total: 2, phenomena: batch(2)}
	analyses := &fakeAnalysisStore{saveErr: errors.New("disk full")}
	orch := NewOrchestrator(phenomena, analyses, &fakeAnalyzer{}, Timeouts{})

	res, err := orch.GetInsights(context.Background(), admin(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Insights) != 2 {
		t.Errorf("insights = %d, want 2 despite persistence failure", len(res.Insights))
	}
	if res.Partial {
		t.Error("persistence failures should not mark the result partial")
	}
}

func TestGetInsights_ScopedCallerRegionWins(t *testing.T) {
	phenomena := &fakePhenomenonStore{total: 0}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{})

	caller := Principal{Role: "enumerator", UserID: "user-1", RegionID: "reg-9"}
	_, err := orch.GetInsights(context.Background(), caller, Params{RegionID: "all"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if phenomena.gotCountFilter.RegionID != "reg-9" {
		t.Errorf("filter region = %q, want caller's assigned region", phenomena.gotCountFilter.RegionID)
	}
	if phenomena.gotCountFilter.UserID != "" {
		t.Error("region-scoped caller should not also be user-scoped")
	}
}

func TestGetInsights_ScopedCallerFallsBackToUser(t *testing.T) {
	phenomena := &fakePhenomenonStore{total: 0}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{})

	caller := Principal{Role: "enumerator", UserID: "user-1"}
	_, err := orch.GetInsights(context.Background(), caller, Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if phenomena.gotCountFilter.UserID != "user-1" {
		t.Errorf("filter user = %q, want caller's own id", phenomena.gotCountFilter.UserID)
	}
}

func TestGetInsights_ScopedCallerWithoutAssignment(t *testing.T) {
	orch := NewOrchestrator(&fakePhenomenonStore{}, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{})

	_, err := orch.GetInsights(context.Background(), Principal{Role: "enumerator"}, Params{})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestGetInsights_CountTimeout(t *testing.T) {
	phenomena := &fakePhenomenonStore{countBlocks: true}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{
		Count:   20 * time.Millisecond,
		Fetch:   time.Second,
		Process: time.Second,
	})

	_, err := orch.GetInsights(context.Background(), admin(), Params{})
	if !errors.Is(err, ErrCountTimeout) {
		t.Fatalf("err = %v, want ErrCountTimeout", err)
	}
}

func TestGetInsights_ProcessTimeoutTruncatesBatch(t *testing.T) {
	phenomena := &fakePhenomenonStore{total: 5, phenomena: batch(5)}
	analyzer := &stallingAnalyzer{completeFirst: 2}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, analyzer, Timeouts{
		Count:   time.Second,
		Fetch:   time.Second,
		Process: 50 * time.Millisecond,
	})

	res, err := orch.GetInsights(context.Background(), admin(), Params{Limit: 10})
	if err != nil {
		t.Fatalf("a processing timeout must not be a terminal error, got %v", err)
	}

	if !res.Partial {
		t.Error("expected partial result after the processing deadline")
	}
	if len(res.Insights) != 2 {
		t.Errorf("insights = %d, want the 2 completed before the deadline", len(res.Insights))
	}
	if res.Processing.FailedInsights != 0 {
		t.Errorf("failedInsights = %d, want 0 for a pure timeout", res.Processing.FailedInsights)
	}
	if res.Processing.RequestedInsights != 5 {
		t.Errorf("requestedInsights = %d, want 5", res.Processing.RequestedInsights)
	}
	if res.Message == "" {
		t.Error("expected a partial-result message")
	}
}

func TestGetInsights_FetchTimeout(t *testing.T) {
	phenomena := &fakePhenomenonStore{total: 3, listBlocks: true}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{
		Count:   time.Second,
		Fetch:   20 * time.Millisecond,
		Process: time.Second,
	})

	_, err := orch.GetInsights(context.Background(), admin(), Params{})
	if !errors.Is(err, ErrFetchTimeout) {
		t.Fatalf("err = %v, want ErrFetchTimeout", err)
	}
}

func TestGetInsights_ParentDeadlineIsNotCountTimeout(t *testing.T) {
	phenomena := &fakePhenomenonStore{countBlocks: true}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := orch.GetInsights(ctx, admin(), Params{})
	if err == nil {
		t.Fatal("expected an error when the caller's deadline expires")
	}
	if errors.Is(err, ErrCountTimeout) {
		t.Error("a caller deadline must not be classified as the count-phase timeout")
	}
}

func TestGetInsights_DirectPhenomenonLookup(t *testing.T) {
	id := "3f2a8c1e-0000-4000-8000-000000000042"
	phenomena := &fakePhenomenonStore{total: 1, phenomena: batch(1)}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{})

	_, err := orch.GetInsights(context.Background(), admin(), Params{PhenomenonID: id, Page: 3, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if phenomena.gotListFilter.Limit != 1 || phenomena.gotListFilter.Offset != 0 {
		t.Errorf("direct lookup filter limit/offset = %d/%d, want 1/0",
			phenomena.gotListFilter.Limit, phenomena.gotListFilter.Offset)
	}
	if phenomena.gotListFilter.PhenomenonID != id {
		t.Errorf("filter phenomenon id = %q, want %q", phenomena.gotListFilter.PhenomenonID, id)
	}
}

func TestGetInsights_DirectLookupPinsPagination(t *testing.T) {
	id := "3f2a8c1e-0000-4000-8000-000000000042"
	phenomena := &fakePhenomenonStore{total: 1, phenomena: batch(1)}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{})

	res, err := orch.GetInsights(context.Background(), admin(), Params{PhenomenonID: id, Page: 3, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pagination.Page != 1 {
		t.Errorf("page = %d, want 1 for a direct lookup", res.Pagination.Page)
	}
	if res.Pagination.HasPrev {
		t.Error("direct lookup must not report a previous page")
	}
	if res.Pagination.TotalPages != 1 {
		t.Errorf("totalPages = %d, want 1", res.Pagination.TotalPages)
	}
}

func TestGetInsights_Summary(t *testing.T) {
	phenomena := &fakePhenomenonStore{total: 2, phenomena: batch(2)}
	orch := NewOrchestrator(phenomena, &fakeAnalysisStore{}, &fakeAnalyzer{}, Timeouts{})

	res, err := orch.GetInsights(context.Background(), admin(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary.TotalPhenomena != 2 {
		t.Errorf("summary total = %d, want 2", res.Summary.TotalPhenomena)
	}
	if res.Summary.AvgOverallScore != 50 {
		t.Errorf("avg overall = %v, want 50", res.Summary.AvgOverallScore)
	}
}

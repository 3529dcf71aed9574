package performance

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldsignal/internal/artifact"
	"goldsignal/internal/config"
	"goldsignal/internal/models"
	"goldsignal/internal/store"
)

const liveVersion = "2026-03-01T12:00:00Z"

type stubValidator struct {
	passed  bool
	metrics *models.PerformanceMetrics
	err     error
	calls   int
}

func (s *stubValidator) ValidateOnRecentHistory(ctx context.Context) (bool, *models.PerformanceMetrics, error) {
	s.calls++
	return s.passed, s.metrics, s.err
}

type stubNotifier struct {
	transitions []string
}

func (s *stubNotifier) SignalEmitted(ctx context.Context, sig models.Signal) error { return nil }
func (s *stubNotifier) TradeClosed(ctx context.Context, tr models.Trade) error     { return nil }
func (s *stubNotifier) StatusChanged(ctx context.Context, from, to models.SignalStatus, reason string, metrics *models.PerformanceMetrics) error {
	s.transitions = append(s.transitions, string(from)+">"+string(to))
	return nil
}

type stubStatusArchiver struct {
	transitions []string
	err         error
}

func (s *stubStatusArchiver) StatusChanged(ctx context.Context, from, to models.SignalStatus, reason string) error {
	s.transitions = append(s.transitions, string(from)+">"+string(to))
	return s.err
}

func newTestMonitor(t *testing.T) (*Monitor, *store.Store) {
	t.Helper()
	st := &store.Store{Dir: t.TempDir(), Logger: zap.NewNop()}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &Monitor{
		Store:  st,
		Binder: &artifact.Binder{Path: "does-not-exist.onnx", Logger: zap.NewNop(), Now: func() time.Time { return fixed }},
		Config: config.PerformanceConfig{
			MinWinRate:      0.55,
			MinProfitFactor: 1.2,
			MinTrades:       20,
			WindowDays:      30,
		},
		Logger: zap.NewNop(),
	}
	return m, st
}

func record(version string, result models.TradeResult, pl string) models.PerformanceRecord {
	d, err := decimal.NewFromString(pl)
	if err != nil {
		panic(err)
	}
	return models.PerformanceRecord{
		Timestamp:    time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		Class:        models.ClassBuy,
		Confidence:   0.8,
		EntryPrice:   decimal.NewFromInt(2000),
		Result:       result,
		ProfitLoss:   d,
		ModelVersion: version,
	}
}

func seed(t *testing.T, st *store.Store, records []models.PerformanceRecord, status models.SignalStatus) {
	t.Helper()
	h := models.NewPerformanceHistory()
	h.Trades = records
	h.SignalStatus = status
	if err := st.SaveHistory(h); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestComputeMetrics_ThresholdMath(t *testing.T) {
	records := []models.PerformanceRecord{
		record(liveVersion, models.ResultWin, "10"),
		record(liveVersion, models.ResultWin, "20"),
		record(liveVersion, models.ResultLoss, "-5"),
		record(liveVersion, models.ResultLoss, "-5"),
	}
	m := ComputeMetrics(records)
	if m == nil {
		t.Fatalf("metrics is nil")
	}
	if m.TotalTrades != 4 {
		t.Fatalf("total=%d want 4", m.TotalTrades)
	}
	if m.WinRate != 0.5 {
		t.Fatalf("win_rate=%v want 0.5", m.WinRate)
	}
	if m.ProfitFactor != 3.0 {
		t.Fatalf("profit_factor=%v want 3.0", m.ProfitFactor)
	}
	if m.NetProfit.Cmp(decimal.NewFromInt(20)) != 0 {
		t.Fatalf("net=%s want 20", m.NetProfit.String())
	}
	if m.AvgWin.Cmp(decimal.NewFromInt(15)) != 0 {
		t.Fatalf("avg_win=%s want 15", m.AvgWin.String())
	}
	if m.AvgLoss.Cmp(decimal.NewFromInt(5)) != 0 {
		t.Fatalf("avg_loss=%s want 5 (magnitude)", m.AvgLoss.String())
	}
}

func TestComputeMetrics_ZeroLossProfitFactor(t *testing.T) {
	records := []models.PerformanceRecord{
		record(liveVersion, models.ResultWin, "10"),
		record(liveVersion, models.ResultWin, "5"),
	}
	m := ComputeMetrics(records)
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Fatalf("profit_factor=%v want +Inf", m.ProfitFactor)
	}
}

func TestComputeMetrics_Empty(t *testing.T) {
	if m := ComputeMetrics(nil); m != nil {
		t.Fatalf("metrics=%+v want nil", m)
	}
}

func TestComputeMetrics_BreakevenCountsTowardTotalOnly(t *testing.T) {
	records := []models.PerformanceRecord{
		record(liveVersion, models.ResultWin, "10"),
		record(liveVersion, models.ResultBreakeven, "0"),
	}
	m := ComputeMetrics(records)
	if m.TotalTrades != 2 {
		t.Fatalf("total=%d want 2", m.TotalTrades)
	}
	if m.WinRate != 0.5 {
		t.Fatalf("win_rate=%v want 0.5", m.WinRate)
	}
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Fatalf("profit_factor=%v want +Inf (no losing amount)", m.ProfitFactor)
	}
}

func TestFreshSystemAllowsSignals(t *testing.T) {
	m, _ := newTestMonitor(t)
	allowed, err := m.IsSignalAllowed()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !allowed {
		t.Fatalf("fresh system must allow signals")
	}
}

func TestValidatePerformance_VersionIsolation(t *testing.T) {
	m, st := newTestMonitor(t)

	// 30 losing trades from an old model and 5 winning trades from the
	// live one: the live sample is too small, so the gate stays put.
	var records []models.PerformanceRecord
	for i := 0; i < 30; i++ {
		records = append(records, record("2025-01-01T00:00:00Z", models.ResultLoss, "-10"))
	}
	for i := 0; i < 5; i++ {
		records = append(records, record(liveVersion, models.ResultWin, "10"))
	}
	seed(t, st, records, models.StatusActive)

	status, err := m.ValidatePerformance()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if status != models.StatusActive {
		t.Fatalf("status=%s want ACTIVE (sticky on small live sample)", status)
	}
}

func TestValidatePerformance_StickyUnderLowSample(t *testing.T) {
	m, st := newTestMonitor(t)

	var records []models.PerformanceRecord
	for i := 0; i < 19; i++ {
		records = append(records, record(liveVersion, models.ResultLoss, "-10"))
	}
	seed(t, st, records, models.StatusActive)

	status, err := m.ValidatePerformance()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if status != models.StatusActive {
		t.Fatalf("status=%s want ACTIVE (19 < 20 trades)", status)
	}

	// The skipped validation must not have stamped anything.
	h, err := st.History()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if h.LastValidation != nil {
		t.Fatalf("last_validation=%v want nil", h.LastValidation)
	}
	if h.PerformanceMetrics != nil {
		t.Fatalf("metrics=%+v want nil", h.PerformanceMetrics)
	}
}

func TestValidatePerformance_SuspendsOnThresholdFailure(t *testing.T) {
	m, st := newTestMonitor(t)

	var records []models.PerformanceRecord
	for i := 0; i < 20; i++ {
		records = append(records, record(liveVersion, models.ResultLoss, "-10"))
	}
	seed(t, st, records, models.StatusActive)

	status, err := m.ValidatePerformance()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if status != models.StatusSuspended {
		t.Fatalf("status=%s want SUSPENDED", status)
	}

	h, err := st.History()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if h.SignalStatus != models.StatusSuspended {
		t.Fatalf("persisted status=%s want SUSPENDED", h.SignalStatus)
	}
	if h.LastValidation == nil {
		t.Fatalf("last_validation not stamped")
	}
	if h.PerformanceMetrics == nil || h.PerformanceMetrics.TotalTrades != 20 {
		t.Fatalf("metrics=%+v want 20 trades", h.PerformanceMetrics)
	}

	allowed, err := m.IsSignalAllowed()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if allowed {
		t.Fatalf("suspended gate must not allow signals")
	}
}

func TestValidatePerformance_ReactivatesOnPass(t *testing.T) {
	m, st := newTestMonitor(t)

	// 14 wins / 6 losses: win rate 0.7, profit factor 140/60 > 1.2, net > 0.
	var records []models.PerformanceRecord
	for i := 0; i < 14; i++ {
		records = append(records, record(liveVersion, models.ResultWin, "10"))
	}
	for i := 0; i < 6; i++ {
		records = append(records, record(liveVersion, models.ResultLoss, "-10"))
	}
	seed(t, st, records, models.StatusSuspended)

	status, err := m.ValidatePerformance()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if status != models.StatusActive {
		t.Fatalf("status=%s want ACTIVE", status)
	}
}

func TestRecordTradeResult_AppendsAndValidates(t *testing.T) {
	m, st := newTestMonitor(t)

	sig := models.Signal{
		Class:      models.ClassBuy,
		Confidence: 0.9,
		EntryPrice: decimal.NewFromInt(2000),
		Timestamp:  time.Now().UTC(),
	}
	if err := m.RecordTradeResult(sig, models.ResultWin, decimal.NewFromInt(12)); err != nil {
		t.Fatalf("err=%v", err)
	}

	h, err := st.History()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(h.Trades) != 1 {
		t.Fatalf("trades=%d want 1", len(h.Trades))
	}
	r := h.Trades[0]
	if r.ModelVersion != liveVersion {
		t.Fatalf("model_version=%q want %q", r.ModelVersion, liveVersion)
	}
	if r.Result != models.ResultWin {
		t.Fatalf("result=%s want WIN", r.Result)
	}
	// One record is far below the minimum: status untouched.
	if h.SignalStatus != models.StatusActive {
		t.Fatalf("status=%s want ACTIVE", h.SignalStatus)
	}
}

func TestBeginRetrain_MovesToTesting(t *testing.T) {
	m, st := newTestMonitor(t)
	if err := m.BeginRetrain("scheduled monthly retrain"); err != nil {
		t.Fatalf("err=%v", err)
	}
	h, err := st.History()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if h.SignalStatus != models.StatusTesting {
		t.Fatalf("status=%s want TESTING", h.SignalStatus)
	}
	allowed, err := m.IsSignalAllowed()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if allowed {
		t.Fatalf("TESTING gate must not allow signals")
	}
}

func TestPostRetrainValidation_PassActivates(t *testing.T) {
	m, st := newTestMonitor(t)
	v := &stubValidator{passed: true, metrics: &models.PerformanceMetrics{TotalTrades: 12, WinRate: 0.6, ProfitFactor: 1.5}}
	m.Validator = v
	if err := m.BeginRetrain("test"); err != nil {
		t.Fatalf("err=%v", err)
	}

	status, err := m.PostRetrainValidation(context.Background(), "scheduled monthly retrain")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if status != models.StatusActive {
		t.Fatalf("status=%s want ACTIVE", status)
	}
	if v.calls != 1 {
		t.Fatalf("validator calls=%d want 1", v.calls)
	}

	h, err := st.History()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(h.ModelVersions) != 1 {
		t.Fatalf("model_versions=%d want 1", len(h.ModelVersions))
	}
	if h.ModelVersions[0].Version != liveVersion {
		t.Fatalf("version=%q want %q", h.ModelVersions[0].Version, liveVersion)
	}
	if h.ModelVersions[0].Reason != "scheduled monthly retrain" {
		t.Fatalf("reason=%q", h.ModelVersions[0].Reason)
	}
	if h.PerformanceMetrics == nil || h.PerformanceMetrics.TotalTrades != 12 {
		t.Fatalf("metrics=%+v want validator metrics", h.PerformanceMetrics)
	}
}

func TestPostRetrainValidation_FailSuspends(t *testing.T) {
	m, _ := newTestMonitor(t)
	// Below the synthetic minimum the validator reports failed with no
	// metrics; the verdict must be SUSPENDED no matter the prior state.
	m.Validator = &stubValidator{passed: false}

	status, err := m.PostRetrainValidation(context.Background(), "retrain")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if status != models.StatusSuspended {
		t.Fatalf("status=%s want SUSPENDED", status)
	}
}

func TestPostRetrainValidation_ValidatorErrorSuspends(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.Validator = &stubValidator{passed: true, err: errors.New("no bars")}

	status, err := m.PostRetrainValidation(context.Background(), "retrain")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if status != models.StatusSuspended {
		t.Fatalf("status=%s want SUSPENDED on validator error", status)
	}
}

func TestPostRetrainValidation_NoValidatorSuspends(t *testing.T) {
	m, _ := newTestMonitor(t)
	status, err := m.PostRetrainValidation(context.Background(), "retrain")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if status != models.StatusSuspended {
		t.Fatalf("status=%s want SUSPENDED", status)
	}
}

func TestNotifierSeesTransitionsOnly(t *testing.T) {
	m, st := newTestMonitor(t)
	n := &stubNotifier{}
	m.Notifier = n

	var records []models.PerformanceRecord
	for i := 0; i < 20; i++ {
		records = append(records, record(liveVersion, models.ResultLoss, "-10"))
	}
	seed(t, st, records, models.StatusActive)

	if _, err := m.ValidatePerformance(); err != nil {
		t.Fatalf("err=%v", err)
	}
	// Re-validating in the same state is not a transition.
	if _, err := m.ValidatePerformance(); err != nil {
		t.Fatalf("err=%v", err)
	}

	if len(n.transitions) != 1 || n.transitions[0] != "ACTIVE>SUSPENDED" {
		t.Fatalf("transitions=%v want [ACTIVE>SUSPENDED]", n.transitions)
	}
}

func TestArchiveMirrorsTransitions(t *testing.T) {
	m, st := newTestMonitor(t)
	a := &stubStatusArchiver{}
	m.Archive = a

	var records []models.PerformanceRecord
	for i := 0; i < 20; i++ {
		records = append(records, record(liveVersion, models.ResultLoss, "-10"))
	}
	seed(t, st, records, models.StatusActive)

	if _, err := m.ValidatePerformance(); err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := m.ValidatePerformance(); err != nil {
		t.Fatalf("err=%v", err)
	}

	if len(a.transitions) != 1 || a.transitions[0] != "ACTIVE>SUSPENDED" {
		t.Fatalf("transitions=%v want [ACTIVE>SUSPENDED]", a.transitions)
	}
}

func TestArchiveErrorDoesNotBlockValidation(t *testing.T) {
	m, st := newTestMonitor(t)
	m.Archive = &stubStatusArchiver{err: errors.New("db down")}

	var records []models.PerformanceRecord
	for i := 0; i < 20; i++ {
		records = append(records, record(liveVersion, models.ResultLoss, "-10"))
	}
	seed(t, st, records, models.StatusActive)

	status, err := m.ValidatePerformance()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if status != models.StatusSuspended {
		t.Fatalf("status=%s want SUSPENDED", status)
	}
}

func TestReport(t *testing.T) {
	m, st := newTestMonitor(t)

	out, err := m.Report()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if out != "No performance data available" {
		t.Fatalf("report=%q", out)
	}

	var records []models.PerformanceRecord
	for i := 0; i < 20; i++ {
		records = append(records, record(liveVersion, models.ResultWin, "10"))
	}
	seed(t, st, records, models.StatusActive)
	if _, err := m.ValidatePerformance(); err != nil {
		t.Fatalf("err=%v", err)
	}

	out, err = m.Report()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(out, "PERFORMANCE STATUS: ACTIVE") {
		t.Fatalf("report missing status: %q", out)
	}
	if !strings.Contains(out, "Win rate:      100.0%") {
		t.Fatalf("report missing win rate: %q", out)
	}
	if !strings.Contains(out, "Profit factor: inf") {
		t.Fatalf("report missing inf profit factor: %q", out)
	}
}

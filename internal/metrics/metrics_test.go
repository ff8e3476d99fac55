package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は収集済みメトリクスから指定名のファミリーを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if NewCollector(reg) == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestCollector_ImplementsInterface はCollectorとNopがインターフェースを満たすことを検証する。
func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = Nop{}
}

// TestRecordReportBuilt_CountsByKind はレポート生成が種類別に記録されることを検証する。
func TestRecordReportBuilt_CountsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReportBuilt("calendar", 10*time.Millisecond)
	c.RecordReportBuilt("calendar", 20*time.Millisecond)
	c.RecordReportBuilt("work", 30*time.Millisecond)

	mf := findMetric(t, reg, "kintai_reports_built_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		kind := m.GetLabel()[0].GetValue()
		val := m.GetCounter().GetValue()
		switch kind {
		case "calendar":
			if val != 2 {
				t.Errorf("reports_built_total{kind=calendar} = %v, want 2", val)
			}
		case "work":
			if val != 1 {
				t.Errorf("reports_built_total{kind=work} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected label value: %s", kind)
		}
	}

	latency := findMetric(t, reg, "kintai_report_latency_seconds")
	var samples uint64
	for _, m := range latency.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	if samples != 3 {
		t.Errorf("latency sample_count = %d, want 3", samples)
	}
}

// TestRecordCounters_Accumulate は件数系カウンタが加算されることを検証する。
func TestRecordCounters_Accumulate(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDroppedRecords(2)
	c.RecordDroppedRecords(3)
	c.RecordUnmatchedPunches(1)
	c.RecordOpenSessions(4)
	c.RecordPunchesIngested(10)

	tests := []struct {
		name string
		want float64
	}{
		{name: "kintai_dropped_records_total", want: 5},
		{name: "kintai_unmatched_punches_total", want: 1},
		{name: "kintai_open_sessions_total", want: 4},
		{name: "kintai_punches_ingested_total", want: 10},
	}
	for _, tt := range tests {
		mf := findMetric(t, reg, tt.name)
		if got := mf.GetMetric()[0].GetCounter().GetValue(); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(429)

	mf := findMetric(t, reg, "kintai_http_status_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		label := m.GetLabel()[0].GetValue()
		val := m.GetCounter().GetValue()
		switch label {
		case "200":
			if val != 2 {
				t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
			}
		case "429":
			if val != 1 {
				t.Errorf("http_status_total{status_code=429} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected label value: %s", label)
		}
	}
}

// TestRecordSync_SuccessAndFailure はマスタ同期の成否が記録されることを検証する。
func TestRecordSync_SuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSyncSuccess("sites")
	c.RecordSyncFailure("sites", "timeout")

	if got := findMetric(t, reg, "kintai_sync_success_total").GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("sync_success_total = %v, want 1", got)
	}
	fail := findMetric(t, reg, "kintai_sync_fail_total").GetMetric()[0]
	if fail.GetCounter().GetValue() != 1 {
		t.Errorf("sync_fail_total = %v, want 1", fail.GetCounter().GetValue())
	}
	labels := map[string]string{}
	for _, l := range fail.GetLabel() {
		labels[l.GetName()] = l.GetValue()
	}
	if labels["source"] != "sites" || labels["reason"] != "timeout" {
		t.Errorf("labels = %v", labels)
	}
}

// TestRecordJobDuration_ObservesHistogram はジョブ実行時間のヒストグラムに値が記録されることを検証する。
func TestRecordJobDuration_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordJobDuration("cleanup", 100*time.Millisecond)
	c.RecordJobDuration("cleanup", 2*time.Second)

	h := findMetric(t, reg, "kintai_job_duration_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/hitoshi/kintai/internal/model"
)

func TestWriteWorkReportCSV(t *testing.T) {
	report := model.WorkReport{
		Users: []model.UserWorkDays{
			{
				UserKey:  "u1",
				UserName: "山田",
				Days: []model.WorkDay{
					{
						Date: "2024-05-01", GrossMinutes: 510, NetMinutes: 510, WorkingMinutes: 450, OvertimeMinutes: 60,
						WorkingHours: "7.5h", OvertimeHours: "1h", Sessions: 1,
						Breakdown: map[string]int{"東 / M1": 300, "A / M2": 210},
					},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteWorkReportCSV(&buf, report); err != nil {
		t.Fatalf("WriteWorkReportCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0][0] != "ユーザーキー" {
		t.Errorf("header = %v", records[0])
	}

	row := records[1]
	if row[1] != "山田" || row[2] != "2024-05-01" || row[3] != "510" || row[6] != "60" || row[8] != "1h" {
		t.Errorf("row = %v", row)
	}
	if row[11] != "A / M2=210; 東 / M1=300" {
		t.Errorf("breakdown = %q", row[11])
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteWorkReportCSV_WriterError(t *testing.T) {
	if err := WriteWorkReportCSV(failingWriter{}, model.WorkReport{}); err == nil {
		t.Fatal("expected error")
	}
}

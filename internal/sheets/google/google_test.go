package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"watertrack/internal/core"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got: %v", err)
	}
}

func TestNew_DefaultSheet(t *testing.T) {
	if c := New(nil, "id", ""); c.summarySheet != "Summaries" {
		t.Errorf("summarySheet = %q, want Summaries", c.summarySheet)
	}
}

func TestFindSummaryRow(t *testing.T) {
	values := [][]any{
		{"User", "Month"},
		{"u1", "02-2024"},
		{},
		{"u1", "03-2024", 1200},
		{"u2", "03-2024"},
	}
	tests := []struct {
		user, month string
		row         int
		found       bool
	}{
		{"u1", "03-2024", 4, true},
		{"u2", "03-2024", 5, true},
		{"u2", "04-2024", 6, false},
	}
	for _, tt := range tests {
		row, found := findSummaryRow(values, tt.user, tt.month)
		if row != tt.row || found != tt.found {
			t.Errorf("findSummaryRow(%s, %s) = %d, %v; want %d, %v", tt.user, tt.month, row, found, tt.row, tt.found)
		}
	}
}

// fakeSheets serves the two Values endpoints used by the exporter.
type fakeSheets struct {
	mu      sync.Mutex
	rows    [][]any
	updates []string
	bodies  [][][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"range": "Summaries!A:B", "values": f.rows})
	case http.MethodPut:
		var vr struct {
			Values [][]any `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&vr)
		f.updates = append(f.updates, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
		f.bodies = append(f.bodies, vr.Values)
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-id"})
	default:
		http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
	}
}

func newFakeClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(svc, "sheet-id", "Summaries")
}

func TestExportSummary(t *testing.T) {
	sum := core.MonthSummary{
		UserID:      "u1",
		MonthKey:    "03-2024",
		TotalAmount: 1500,
		DaysInMonth: 31,
		UpdatedAt:   time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name      string
		rows      [][]any
		wantRange string
		wantRows  int
	}{
		{"empty sheet writes header", nil, "Summaries!A1:K2", 2},
		{"existing row is updated", [][]any{{"User", "Month"}, {"u2", "03-2024"}, {"u1", "03-2024"}}, "Summaries!A3:K3", 1},
		{"new pair is appended", [][]any{{"User", "Month"}, {"u1", "02-2024"}}, "Summaries!A3:K3", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSheets{rows: tt.rows}
			c := newFakeClient(t, fake)

			if err := c.ExportSummary(context.Background(), sum); err != nil {
				t.Fatalf("ExportSummary: %v", err)
			}
			if diff := cmp.Diff([]string{tt.wantRange}, fake.updates); diff != "" {
				t.Errorf("update range mismatch (-want +got):\n%s", diff)
			}
			if len(fake.bodies) != 1 || len(fake.bodies[0]) != tt.wantRows {
				t.Fatalf("bodies = %v", fake.bodies)
			}
			last := fake.bodies[0][tt.wantRows-1]
			if last[0] != "u1" || last[1] != "03-2024" || last[10] != "2024-03-15T12:00:00Z" {
				t.Errorf("row = %v", last)
			}
		})
	}
}

func TestExportSummary_NoService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if err := c.ExportSummary(context.Background(), core.MonthSummary{}); err == nil {
		t.Fatal("expected error without a service")
	}
}

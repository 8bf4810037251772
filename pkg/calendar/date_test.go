package calendar

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2025-01-10", "2025-01-10", false},
		{" 2025-01-10 ", "2025-01-10", false},
		{"2025-01-10T23:30:00Z", "2025-01-10", false},
		{"10/01/2025", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		d, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && d.String() != tt.want {
			t.Errorf("Parse(%q) = %s, want %s", tt.in, d, tt.want)
		}
	}
}

func TestToday_UsesLocation(t *testing.T) {
	now := time.Date(2025, 1, 10, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)

	if got := Today(now, time.UTC).String(); got != "2025-01-10" {
		t.Errorf("expected 2025-01-10 in UTC, got %s", got)
	}
	if got := Today(now, tokyo).String(); got != "2025-01-11" {
		t.Errorf("expected 2025-01-11 in JST, got %s", got)
	}
}

func TestDate_JSON(t *testing.T) {
	var payload struct {
		Date Date `json:"date"`
	}
	if err := json.Unmarshal([]byte(`{"date":"2025-01-10"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"date":"2025-01-10"}` {
		t.Errorf("unexpected JSON: %s", out)
	}

	if err := json.Unmarshal([]byte(`{"date":"not-a-date"}`), &payload); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestDate_Compare(t *testing.T) {
	a := New(2025, 1, 10)
	b := New(2025, 1, 11)
	if !a.Before(b) || a.After(b) {
		t.Error("expected 2025-01-10 before 2025-01-11")
	}
	if a.Before(a) {
		t.Error("a date is not before itself")
	}
}

func TestDate_Scan(t *testing.T) {
	var d Date
	if err := d.Scan(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("scan time: %v", err)
	}
	if d.String() != "2025-03-04" {
		t.Errorf("unexpected date %s", d)
	}
	if err := d.Scan(nil); err != nil || !d.IsZero() {
		t.Errorf("expected zero date from nil, got %s (%v)", d, err)
	}
	if err := d.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}

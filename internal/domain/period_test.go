package domain

import (
	"errors"
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseBaseDate(s, time.UTC)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestComputePeriod_Weekly(t *testing.T) {
	cases := []struct{ base, start, end string }{
		{"2025-11-17", "2025-11-10", "2025-11-16"}, // Monday
		{"2025-11-23", "2025-11-10", "2025-11-16"}, // Sunday of the same week
		{"2025-11-19", "2025-11-10", "2025-11-16"}, // Wednesday
		{"2026-01-01", "2025-12-22", "2025-12-28"}, // year boundary
	}
	for _, tc := range cases {
		p, err := ComputePeriod(Weekly, mustDate(t, tc.base))
		if err != nil {
			t.Fatalf("ComputePeriod(%s): %v", tc.base, err)
		}
		if p.StartDate != tc.start || p.EndDate != tc.end || p.Month != "" || p.Type != Weekly {
			t.Fatalf("base %s => %+v, want %s..%s", tc.base, p, tc.start, tc.end)
		}
		if p.Days() != 7 {
			t.Fatalf("weekly period must span 7 days, got %d", p.Days())
		}
	}
}

func TestComputePeriod_Monthly(t *testing.T) {
	cases := []struct{ base, start, end, month string }{
		{"2025-11-17", "2025-10-01", "2025-10-31", "2025-10"},
		{"2025-01-01", "2024-12-01", "2024-12-31", "2024-12"},
		{"2024-03-31", "2024-02-01", "2024-02-29", "2024-02"}, // leap year
	}
	for _, tc := range cases {
		p, err := ComputePeriod(Monthly, mustDate(t, tc.base))
		if err != nil {
			t.Fatalf("ComputePeriod(%s): %v", tc.base, err)
		}
		if p.StartDate != tc.start || p.EndDate != tc.end || p.Month != tc.month {
			t.Fatalf("base %s => %+v", tc.base, p)
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("computed period invalid: %v", err)
		}
	}
}

func TestComputePeriod_Deterministic(t *testing.T) {
	base := time.Date(2025, 11, 19, 23, 59, 59, 0, time.UTC)
	a, _ := ComputePeriod(Weekly, base)
	b, _ := ComputePeriod(Weekly, base.Add(-23*time.Hour))
	if a != b {
		t.Fatalf("same calendar day must give the same period: %+v vs %+v", a, b)
	}
}

func TestComputePeriod_InvalidType(t *testing.T) {
	if _, err := ComputePeriod("daily", time.Now()); !errors.Is(err, ErrInvalidReportType) {
		t.Fatalf("expected ErrInvalidReportType, got %v", err)
	}
}

func TestParseBaseDate_Rejects(t *testing.T) {
	for _, s := range []string{"", "2025-13-01", "17/11/2025", "2025-11-17T00:00:00Z"} {
		if _, err := ParseBaseDate(s, nil); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("ParseBaseDate(%q) err=%v, want ErrInvalidDate", s, err)
		}
	}
}

func TestParseReportType(t *testing.T) {
	if got, err := ParseReportType(" Weekly "); err != nil || got != Weekly {
		t.Fatalf("got %q err %v", got, err)
	}
	if _, err := ParseReportType("yearly"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPeriod_Validate(t *testing.T) {
	bad := []Period{
		{Type: "weekly", StartDate: "2025-11-16", EndDate: "2025-11-10"},
		{Type: "weekly", StartDate: "x", EndDate: "2025-11-10"},
		{Type: "monthly", StartDate: "2025-10-01", EndDate: "2025-10-31"},
		{Type: "hourly", StartDate: "2025-10-01", EndDate: "2025-10-31"},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Fatalf("expected invalid: %+v", p)
		}
	}
}

func TestBatchMessage_RoundTripAndValidate(t *testing.T) {
	p, _ := ComputePeriod(Monthly, mustDate(t, "2025-11-17"))
	msg := NewBatchMessage(p, []string{"u1", "u2"})
	if err := msg.Validate(); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}
	back, err := msg.ToPeriod()
	if err != nil || back != p {
		t.Fatalf("ToPeriod = %+v, %v; want %+v", back, err, p)
	}

	msg.UserIDs = nil
	if err := msg.Validate(); err == nil {
		t.Fatalf("empty user list must be rejected")
	}
	msg.UserIDs = []string{"u1", " "}
	if err := msg.Validate(); err == nil {
		t.Fatalf("blank user id must be rejected")
	}
	msg.UserIDs = []string{"u1"}
	msg.Month = ""
	if err := msg.Validate(); err == nil {
		t.Fatalf("monthly message without month must be rejected")
	}
}

func TestStatusHelpers(t *testing.T) {
	if s := Updated("u"); s.Status != StatusUpdated || s.Reason != "" {
		t.Fatalf("Updated = %+v", s)
	}
	if s := Skipped("u", ReasonNoRecords); s.Status != StatusSkipped || s.Reason != ReasonNoRecords {
		t.Fatalf("Skipped = %+v", s)
	}
}

package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseClockTime(t *testing.T) {
	ct, err := ParseClockTime("07:05")
	if err != nil {
		t.Fatalf("ParseClockTime: %v", err)
	}
	if ct.Hour != 7 || ct.Minute != 5 {
		t.Errorf("got %+v, want 07:05", ct)
	}
	if ct.String() != "07:05" {
		t.Errorf("String() = %q", ct.String())
	}

	for _, bad := range []string{"", "7", "25:00", "07:60", "noon"} {
		if _, err := ParseClockTime(bad); err == nil {
			t.Errorf("ParseClockTime(%q) expected error", bad)
		}
	}
}

func TestClockTime_On(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	day := time.Date(2026, 3, 2, 13, 45, 12, 0, loc)
	got := ClockTime{Hour: 16, Minute: 0}.On(day)
	want := time.Date(2026, 3, 2, 16, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("On() = %v, want %v", got, want)
	}
}

func TestSite_JSONClockTimes(t *testing.T) {
	in := `{"id":"s1","latitude":-7.95,"longitude":112.61,"radius_m":100,"expected_check_in":"07:00","expected_check_out":"16:00"}`
	var s Site
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.ExpectedCheckIn != (ClockTime{7, 0}) || s.ExpectedCheckOut != (ClockTime{16, 0}) {
		t.Fatalf("unexpected clock times: %+v / %+v", s.ExpectedCheckIn, s.ExpectedCheckOut)
	}
	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	_ = json.Unmarshal(out, &back)
	if back["expected_check_in"] != "07:00" {
		t.Errorf("expected_check_in = %v, want \"07:00\"", back["expected_check_in"])
	}
}

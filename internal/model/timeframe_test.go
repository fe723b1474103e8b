package model

import (
	"encoding/json"
	"testing"
)

func TestParseTimeframe(t *testing.T) {
	cases := []struct {
		in   string
		want Timeframe
	}{
		{"1m", TF1m}, {"3m", TF3m}, {"5M", TF5m}, {" 10m ", TF10m}, {"900s", TF15m}, {"300", TF5m},
	}
	for _, tc := range cases {
		got, err := ParseTimeframe(tc.in)
		if err != nil {
			t.Fatalf("ParseTimeframe(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseTimeframe(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseTimeframe_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-5m", "2m", "1h"} {
		if _, err := ParseTimeframe(in); err == nil {
			t.Errorf("ParseTimeframe(%q): expected error", in)
		}
	}
}

func TestTimeframe_JSONMapKey(t *testing.T) {
	m := map[Timeframe]int{TF5m: 8}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"5m":8}` {
		t.Errorf("unexpected encoding %s", b)
	}

	var back map[Timeframe]int
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back[TF5m] != 8 {
		t.Errorf("round trip lost weight: %v", back)
	}
}

func TestCapitalState_Gates(t *testing.T) {
	if !StateWarning.AllowsTrading() || !StateWarning.Reduced() {
		t.Error("warning should allow reduced trading")
	}
	if StateBlocked.AllowsTrading() || StateEmergencyShutdown.AllowsTrading() {
		t.Error("blocked/emergency must not allow trading")
	}
	if StateNormal.Reduced() {
		t.Error("normal is not reduced")
	}
}

package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Timeframe is a bar interval expressed in seconds (e.g., 300 = 5 minutes).
type Timeframe int

const (
	TF1m  Timeframe = 60
	TF3m  Timeframe = 180
	TF5m  Timeframe = 300
	TF10m Timeframe = 600
	TF15m Timeframe = 900
)

// AggregateLabel is the timeframe label carried by multi-timeframe signals.
const AggregateLabel = "aggregate"

// AllTimeframes lists the supported timeframes, shortest first.
var AllTimeframes = []Timeframe{TF1m, TF3m, TF5m, TF10m, TF15m}

// String returns the short label, e.g. "5m".
func (tf Timeframe) String() string {
	if tf%60 == 0 {
		return strconv.Itoa(int(tf)/60) + "m"
	}
	return strconv.Itoa(int(tf)) + "s"
}

// Seconds returns the timeframe length in seconds.
func (tf Timeframe) Seconds() int { return int(tf) }

// Valid reports whether tf is one of the supported timeframes.
func (tf Timeframe) Valid() bool {
	for _, t := range AllTimeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// ParseTimeframe parses "5m", "300s" or "300" into a supported Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	raw := s
	s = strings.ToLower(strings.TrimSpace(s))
	mult := 1
	switch {
	case strings.HasSuffix(s, "m"):
		mult = 60
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "s"):
		s = strings.TrimSuffix(s, "s")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", raw)
	}
	tf := Timeframe(n * mult)
	if !tf.Valid() {
		return 0, fmt.Errorf("unsupported timeframe %s", tf)
	}
	return tf, nil
}

// MarshalText encodes the timeframe as its short label.
func (tf Timeframe) MarshalText() ([]byte, error) {
	return []byte(tf.String()), nil
}

// UnmarshalText decodes a short label such as "15m".
func (tf *Timeframe) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeframe(string(text))
	if err != nil {
		return err
	}
	*tf = parsed
	return nil
}

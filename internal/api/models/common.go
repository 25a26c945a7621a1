// Package models holds the request and response bodies of the explorer API.
package models

import (
	"encoding/json"
	"time"
)

// HealthStatus is the health of the API, one of its subsystems or one upstream.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

func (s HealthStatus) rank() int {
	switch s {
	case HealthStatusOK:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worse returns the worse of s and other.
func (s HealthStatus) Worse(other HealthStatus) HealthStatus {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// Timestamp is a time rendered as RFC 3339 in UTC.
type Timestamp time.Time

// NewTimestamp returns a Timestamp for t, or nil for a nil t.
func NewTimestamp(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := Timestamp(*t)
	return &ts
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339))
}

// UnmarshalJSON implements json.Unmarshaler. null leaves t unchanged.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

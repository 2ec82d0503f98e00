package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DeadlineNone   = "none"
	Deadline24h    = "24h"
	Deadline48h    = "48h"
	Deadline7d     = "7d"
	DeadlineCustom = "custom"
)

// DeadlineSpec is the payment window chosen when a group is created.
type DeadlineSpec struct {
	Kind   string `json:"kind"`
	Custom string `json:"custom,omitempty"`
}

var customDeadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Resolve turns the chosen window into an absolute instant. A nil result means no deadline.
func (d DeadlineSpec) Resolve(now time.Time) (*time.Time, error) {
	var at time.Time
	switch strings.ToLower(strings.TrimSpace(d.Kind)) {
	case "", DeadlineNone:
		return nil, nil
	case Deadline24h:
		at = now.Add(24 * time.Hour)
	case Deadline48h:
		at = now.Add(48 * time.Hour)
	case Deadline7d:
		at = now.AddDate(0, 0, 7)
	case DeadlineCustom:
		raw := strings.TrimSpace(d.Custom)
		if raw == "" {
			return nil, fmt.Errorf("custom deadline requires a date")
		}
		parsed, err := parseCustomDeadline(raw, now.Location())
		if err != nil {
			return nil, err
		}
		at = parsed
	default:
		return nil, fmt.Errorf("unknown deadline %q", d.Kind)
	}
	return &at, nil
}

func parseCustomDeadline(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range customDeadlineLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid custom deadline %q", raw)
}

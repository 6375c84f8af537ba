package models

import "time"

// Limit value bounds accepted from users. A value of 0 means "no limit".
const (
	LimitMinValue = 0
	LimitMaxValue = 900000
	LimitStep     = 0.01
)

// LimitRecord is a persisted limit value as owned by the limit store.
// Value is kept as the raw string the user set; readers parse it.
type LimitRecord struct {
	Key      string    `json:"key"`
	Value    string    `json:"value"`
	Version  int       `json:"version"`
	DateTime time.Time `json:"datetime"`
}

// LimitStatus is the result of cross-referencing a value against a limit
type LimitStatus struct {
	IsSet     bool     `json:"is_set"`
	IsReached bool     `json:"is_reached"`
	Value     *float64 `json:"value,omitempty"`
}

// Package analytics collects search events, ships them over Kafka and folds
// them into running statistics served at /api/v1/analytics.
package analytics

import "time"

type EventType string

const (
	EventSearch EventType = "search"
	EventCount  EventType = "count"
)

// SearchEvent describes one search or count request as the handler saw it.
// Outcome is the apperrors.Reason label of the request's error, "ok" on
// success.
type SearchEvent struct {
	Type               EventType `json:"type"`
	Query              string    `json:"query"`
	Mode               string    `json:"mode"`
	Phrases            int       `json:"phrases"`
	Slots              int       `json:"slots"`
	Candidates         int       `json:"candidates"`
	CandidateDocuments int       `json:"candidate_documents"`
	Total              int       `json:"total"`
	Returned           int       `json:"returned"`
	LatencyMs          int64     `json:"latency_ms"`
	CacheHit           bool      `json:"cache_hit"`
	Outcome            string    `json:"outcome"`
	Timestamp          time.Time `json:"timestamp"`
	RequestID          string    `json:"request_id,omitempty"`
}

// Failed reports whether the request ended in an error.
func (e SearchEvent) Failed() bool {
	return e.Outcome != "" && e.Outcome != "ok"
}

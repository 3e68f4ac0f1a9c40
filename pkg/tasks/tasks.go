// Package tasks defines the payloads sent through Kafka.
package tasks

import "report-desk/internal/model"

// Event kinds.
const (
	KindRequest  = "request"
	KindFeedback = "feedback"
)

// LogEvent is one log row waiting to be appended by the consumer.
// Exactly one of Request and Feedback is set, matching Kind.
type LogEvent struct {
	Kind     string                `json:"kind"`
	Request  *model.RequestLogRow  `json:"request,omitempty"`
	Feedback *model.FeedbackLogRow `json:"feedback,omitempty"`
}

package inbox

import "time"

// Record is a (source, event_id) row as stored by the Postgres dedupe
// backend. State is "processing" while a relay holds a claim on it and
// "done" once handled.
type Record struct {
	Source      string    `json:"source"`
	EventID     string    `json:"event_id"`
	State       string    `json:"state"`
	ProcessedAt time.Time `json:"processed_at"`
}

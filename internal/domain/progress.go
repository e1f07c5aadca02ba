package domain

import "time"

// BatchProgress is the latest progress known for a running batch.
type BatchProgress struct {
	BatchID   string
	Index     int
	Total     int
	Stage     Stage
	Error     string
	Succeeded int
	Failed    int
	UpdatedAt time.Time
}

// Completed returns how many records reached a terminal stage.
func (p BatchProgress) Completed() int {
	return p.Succeeded + p.Failed
}

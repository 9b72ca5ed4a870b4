package domain

import "time"

// Exchange is the record of one dispatched request/response pair.
type Exchange struct {
	ID          string            `json:"id" db:"id"`
	Method      string            `json:"method" db:"method"`
	Path        string            `json:"path" db:"path"`
	Status      int               `json:"status" db:"status"`
	ContentType string            `json:"content_type,omitempty" db:"content_type"`
	Subject     string            `json:"subject,omitempty" db:"subject"`
	Error       string            `json:"error,omitempty" db:"error"`
	Recovered   bool              `json:"recovered" db:"recovered"`
	Duration    time.Duration     `json:"duration_ns" db:"duration_ns"`
	Metadata    map[string]string `json:"metadata,omitempty" db:"-"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}

// StatusClass returns the status as "2xx", "4xx", ...
func (e *Exchange) StatusClass() string {
	return StatusClass(e.Status)
}

// StatusClass formats a status as its class.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return string(rune('0'+status/100)) + "xx"
}

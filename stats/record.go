package stats

import "time"

// ResultRecord is one persisted scoring outcome.
type ResultRecord struct {

	// Timestamp is the time of the original request observation,
	// not of the scoring run.
	Timestamp time.Time `json:"timestamp"`

	RemoteAddr  string  `json:"remoteAddr"`
	Path        string  `json:"path"`
	TemplateKey string  `json:"templateKey"`
	Score       float64 `json:"score"`
	IsAnomaly   bool    `json:"isAnomaly"`
	Threshold   float64 `json:"threshold"`

	// ParseFailed marks lines that never reached scoring.
	ParseFailed bool   `json:"parseFailed"`
	ParseError  string `json:"parseError,omitempty"`

	// CreatedAt is the time the record was stored.
	CreatedAt time.Time `json:"createdAt"`
}

// Metrics aggregates the stored scoring history.
type Metrics struct {
	TotalEvents int     `json:"totalEvents"`
	Anomalies   int     `json:"anomalies"`
	ParseFailed int     `json:"parseFailed"`
	AnomalyRate float64 `json:"anomalyRate"`
	LastIngest  *string `json:"lastIngest"`
}

package models

import "time"

type MetricType string

const (
	Gauge   MetricType = "gauge"
	Counter MetricType = "counter"
)

// Metric is a single sample read back from the metrics endpoint.
type Metric struct {
	Name  string
	Value float64
	Type  MetricType
}

// Message is a payload received on the source topic. It lives only for the
// duration of the handler call.
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

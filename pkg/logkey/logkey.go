package logkey

// Common structured logging keys used across handlers and services.
const (
	TraceID = "TRACE ID"
	ERROR   = "ERROR"
)

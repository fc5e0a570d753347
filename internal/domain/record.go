package domain

import "time"

// LogRecord is the durable artifact written once per invocation. Immutable
// once built; the durable copy lives in DynamoDB, not in process memory.
type LogRecord struct {
	Message         string
	InvocationCount int64
	RequestID       string
	Timestamp       time.Time
	CPUCores        int
	MemoryLimitMB   int
	DeadlineUnixMS  int64
}

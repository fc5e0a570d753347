package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"invocation-logger/internal/domain"
)

// DefaultMessage is substituted when the payload carries no usable message.
const DefaultMessage = "Missing input payload message"

// RecordWriter is the persistence operation consumed by the service.
type RecordWriter interface {
	WriteRecord(ctx context.Context, rec domain.LogRecord) error
}

// LogService owns the process-wide invocation counter and performs the single
// durable write per invocation. One instance exists per process; the counter
// restarts at zero whenever a new process instance is created.
type LogService struct {
	writer RecordWriter
	count  atomic.Int64
}

// LogInput carries one invocation's payload and ambient context. Message is
// the raw JSON value of the optional "message" field, nil when absent.
type LogInput struct {
	Message       json.RawMessage
	RequestID     string
	MemoryLimitMB int
	Deadline      time.Time
}

// LogOutput reports the outcome of one recorded invocation.
type LogOutput struct {
	InvocationCount int64
	Message         string
}

func NewLogService(w RecordWriter) (*LogService, error) {
	if w == nil {
		return nil, errors.New("usecase: record writer must not be nil")
	}
	return &LogService{writer: w}, nil
}

// Record increments the invocation counter, builds the durable record, and
// writes it. The counter advances before the write and does not roll back on
// failure. If the store stays unreachable the service keeps serving and keeps
// failing writes; instance replacement is left to the platform.
func (s *LogService) Record(ctx context.Context, in LogInput) (LogOutput, error) {
	count := s.count.Add(1)
	rec := buildRecord(in, count, time.Now().UTC())

	if err := s.writer.WriteRecord(ctx, rec); err != nil {
		return LogOutput{}, newError(ErrorWrite, "record_write_error", err)
	}
	return LogOutput{
		InvocationCount: count,
		Message:         rec.Message,
	}, nil
}

// buildRecord maps one invocation onto the durable record shape. A message
// field that is absent, null, or not a JSON string degrades to DefaultMessage
// rather than failing the invocation.
func buildRecord(in LogInput, count int64, now time.Time) domain.LogRecord {
	return domain.LogRecord{
		Message:         messageOrDefault(in.Message),
		InvocationCount: count,
		RequestID:       in.RequestID,
		Timestamp:       now,
		CPUCores:        runtime.NumCPU(),
		MemoryLimitMB:   in.MemoryLimitMB,
		DeadlineUnixMS:  deadlineMillis(in.Deadline),
	}
}

func messageOrDefault(raw json.RawMessage) string {
	if len(raw) == 0 {
		return DefaultMessage
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("payload message is not a string, substituting default", "err", err)
		return DefaultMessage
	}
	if msg == "" {
		return DefaultMessage
	}
	return msg
}

func deadlineMillis(deadline time.Time) int64 {
	if deadline.IsZero() {
		return 0
	}
	return deadline.UnixMilli()
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"invocation-logger/internal/domain"
)

type mockWriter struct {
	mu      sync.Mutex
	err     error
	records []domain.LogRecord
}

func (m *mockWriter) WriteRecord(_ context.Context, rec domain.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockWriter) last(t *testing.T) domain.LogRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.records)
	return m.records[len(m.records)-1]
}

func mustNewService(t *testing.T, w RecordWriter) *LogService {
	t.Helper()
	s, err := NewLogService(w)
	require.NoError(t, err)
	return s
}

func rawMsg(s string) json.RawMessage {
	return json.RawMessage(s)
}

func TestNewLogService_NilWriter(t *testing.T) {
	_, err := NewLogService(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestRecord_FirstInvocation(t *testing.T) {
	w := &mockWriter{}
	s := mustNewService(t, w)

	out, err := s.Record(context.Background(), LogInput{
		Message:       rawMsg(`"Hi from Jane"`),
		RequestID:     "req-1",
		MemoryLimitMB: 128,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), out.InvocationCount)
	require.Equal(t, "Hi from Jane", out.Message)

	rec := w.last(t)
	require.Equal(t, "Hi from Jane", rec.Message)
	require.Equal(t, int64(1), rec.InvocationCount)
	require.Equal(t, "req-1", rec.RequestID)
	require.False(t, rec.Timestamp.IsZero())
	require.Greater(t, rec.CPUCores, 0)
	require.Equal(t, 128, rec.MemoryLimitMB)
}

func TestRecord_SequentialCountsAreExact(t *testing.T) {
	w := &mockWriter{}
	s := mustNewService(t, w)

	for i := 1; i <= 5; i++ {
		out, err := s.Record(context.Background(), LogInput{RequestID: "req"})
		require.NoError(t, err)
		require.Equal(t, int64(i), out.InvocationCount)
	}
}

func TestRecord_FreshServiceRestartsAtOne(t *testing.T) {
	w := &mockWriter{}
	s := mustNewService(t, w)
	for i := 0; i < 3; i++ {
		_, err := s.Record(context.Background(), LogInput{RequestID: "req"})
		require.NoError(t, err)
	}

	// A new service instance models a replaced process instance.
	fresh := mustNewService(t, &mockWriter{})
	out, err := fresh.Record(context.Background(), LogInput{RequestID: "req"})
	require.NoError(t, err)
	require.Equal(t, int64(1), out.InvocationCount)
}

func TestRecord_MissingMessageUsesDefault(t *testing.T) {
	w := &mockWriter{}
	s := mustNewService(t, w)

	out, err := s.Record(context.Background(), LogInput{RequestID: "req"})
	require.NoError(t, err)
	require.Equal(t, DefaultMessage, out.Message)
	require.Equal(t, DefaultMessage, w.last(t).Message)
}

func TestRecord_NonStringMessageUsesDefault(t *testing.T) {
	w := &mockWriter{}
	s := mustNewService(t, w)

	out, err := s.Record(context.Background(), LogInput{
		Message:   rawMsg(`{"nested": true}`),
		RequestID: "req",
	})
	require.NoError(t, err)
	require.Equal(t, DefaultMessage, out.Message)
	require.Equal(t, int64(1), out.InvocationCount)
}

func TestRecord_NullMessageUsesDefault(t *testing.T) {
	w := &mockWriter{}
	s := mustNewService(t, w)

	out, err := s.Record(context.Background(), LogInput{
		Message:   rawMsg(`null`),
		RequestID: "req",
	})
	require.NoError(t, err)
	require.Equal(t, DefaultMessage, out.Message)
}

func TestRecord_WriteErrorSurfacedAndCounterAdvances(t *testing.T) {
	w := &mockWriter{err: errors.New("ConditionalCheckFailedException")}
	s := mustNewService(t, w)

	_, err := s.Record(context.Background(), LogInput{RequestID: "req"})
	require.Error(t, err)

	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorWrite, ucErr.Code)

	// The counter advanced before the failed write and does not roll back.
	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
	out, err := s.Record(context.Background(), LogInput{RequestID: "req"})
	require.NoError(t, err)
	require.Equal(t, int64(2), out.InvocationCount)
}

func TestRecord_ConcurrentCountsAreUnique(t *testing.T) {
	w := &mockWriter{}
	s := mustNewService(t, w)

	const n = 50
	counts := make(chan int64, n)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.Record(context.Background(), LogInput{RequestID: "req"})
			if err != nil {
				errs <- err
				return
			}
			counts <- out.InvocationCount
		}()
	}
	wg.Wait()
	close(counts)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[int64]bool, n)
	for c := range counts {
		require.False(t, seen[c], "count %d issued twice", c)
		seen[c] = true
	}
	require.Len(t, seen, n)
}

func TestBuildRecord_DeadlineMillis(t *testing.T) {
	deadline := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rec := buildRecord(LogInput{RequestID: "req", Deadline: deadline}, 1, time.Now().UTC())
	require.Equal(t, deadline.UnixMilli(), rec.DeadlineUnixMS)
}

func TestBuildRecord_ZeroDeadline(t *testing.T) {
	rec := buildRecord(LogInput{RequestID: "req"}, 1, time.Now().UTC())
	require.Equal(t, int64(0), rec.DeadlineUnixMS)
}

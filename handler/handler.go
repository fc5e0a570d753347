package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"invocation-logger/internal/usecase"
)

// LogUseCase is the invocation-recording operation consumed by the handler.
type LogUseCase interface {
	Record(ctx context.Context, in usecase.LogInput) (usecase.LogOutput, error)
}

// event is the inbound invoke payload. Message stays raw so a malformed
// value can degrade to the default instead of failing the decode.
type event struct {
	Message json.RawMessage `json:"message"`
}

// Response is returned to the invoker after a successful write.
type Response struct {
	InvocationCount int64  `json:"invocationCount"`
	Action          string `json:"action"`
	MessageReceived string `json:"messageReceived"`
	RequestID       string `json:"requestId"`
}

const actionRecorded = "Log record inserted into DB"

type Handler struct {
	uc LogUseCase
}

func NewHandler(uc LogUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Handle processes one invocation: decode the event, collect ambient context,
// record the invocation, and shape the response. A write failure is returned
// as an error so the platform reports the invocation as failed.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (Response, error) {
	var ev event
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ev); err != nil {
			// Treat an unparseable payload like a missing message.
			slog.Warn("invoke payload is not a JSON object", "err", err)
			ev = event{}
		}
	}

	requestID, memoryMB := invocationIdentity(ctx)
	deadline, _ := ctx.Deadline()

	out, err := h.uc.Record(ctx, usecase.LogInput{
		Message:       ev.Message,
		RequestID:     requestID,
		MemoryLimitMB: memoryMB,
		Deadline:      deadline,
	})
	if err != nil {
		slog.Error("invocation failed", "requestId", requestID, "err", err)
		return Response{}, err
	}

	slog.Debug("invocation recorded",
		"requestId", requestID,
		"invocationCount", out.InvocationCount,
		"deadline", deadline.Format(time.RFC3339),
	)
	return Response{
		InvocationCount: out.InvocationCount,
		Action:          actionRecorded,
		MessageReceived: out.Message,
		RequestID:       requestID,
	}, nil
}

// invocationIdentity pulls the request ID and memory limit from the Lambda
// context, falling back to a generated ID when the context carries none
// (local runs, tests).
func invocationIdentity(ctx context.Context) (string, int) {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID, lambdacontext.MemoryLimitInMB
	}
	return newRequestID(), lambdacontext.MemoryLimitInMB
}

var newRequestID = func() string {
	return uuid.NewString()
}

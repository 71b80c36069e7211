package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"fleetpilot-backend/internal/models"
)

const maxRPCTimeout = 125 * time.Second

// NATSExecutor reaches agents over request/reply on fleet.<deviceID>.rpc.
type NATSExecutor struct {
	nc *nats.Conn
}

func NewNATSExecutor(nc *nats.Conn) *NATSExecutor {
	return &NATSExecutor{nc: nc}
}

// Exec sends the action request to the device's agent and waits for the reply.
// The wait is bounded by ctx; the deadline is also forwarded to the agent so
// it can abort work on its side.
func (e *NATSExecutor) Exec(ctx context.Context, deviceID, action string, args map[string]string) (*Result, error) {
	timeout := 15 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout > maxRPCTimeout {
		timeout = maxRPCTimeout
	}
	if timeout <= 0 {
		return nil, ErrTimeout
	}

	req := models.ActionRequest{
		Action:    action,
		Args:      args,
		RequestID: uuid.New().String(),
		TimeoutMS: int(timeout / time.Millisecond),
	}

	payload, err := msgpack.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	subject := fmt.Sprintf("fleet.%s.rpc", deviceID)
	msg, err := e.nc.RequestWithContext(ctx, subject, payload)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, ErrDeviceOffline
		}
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("request: %w", err)
	}

	var resp models.ActionResponse
	if err := msgpack.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &Result{
		Success:    resp.Success,
		Message:    resp.Message,
		Output:     resp.Output,
		Detail:     resp.Detail,
		DurationMS: resp.DurationMS,
	}, nil
}

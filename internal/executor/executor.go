// Package executor abstracts the native operations performed on a managed
// device. The control plane only ever sees this interface; operating-system
// specifics live on the agent side of the wire.
package executor

import (
	"context"
	"errors"
)

var (
	ErrDeviceOffline = errors.New("device is offline")
	ErrTimeout       = errors.New("request timed out")
)

// Result is the common envelope for every execution. Detail carries
// action-type-specific fields returned by the agent.
type Result struct {
	Success    bool
	Message    string
	Output     string
	Detail     map[string]interface{}
	DurationMS int64
}

// RemoteExecutor performs a named action against one device and reports the
// outcome. Implementations must honor ctx cancellation.
type RemoteExecutor interface {
	Exec(ctx context.Context, deviceID, action string, args map[string]string) (*Result, error)
}

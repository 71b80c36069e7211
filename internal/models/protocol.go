package models

// Wire types for the NATS channel between the control plane and device
// agents. Payloads are msgpack-encoded.

// ActionRequest is the RPC request sent to a device agent.
type ActionRequest struct {
	Action    string            `msgpack:"action"`
	Args      map[string]string `msgpack:"args"`
	RequestID string            `msgpack:"request_id"`
	TimeoutMS int               `msgpack:"timeout_ms,omitempty"`
}

// ActionResponse is the RPC response from a device agent.
type ActionResponse struct {
	RequestID  string                 `msgpack:"request_id"`
	Success    bool                   `msgpack:"success"`
	Message    string                 `msgpack:"message,omitempty"`
	Output     string                 `msgpack:"output,omitempty"`
	Detail     map[string]interface{} `msgpack:"detail,omitempty"`
	DurationMS int64                  `msgpack:"duration_ms,omitempty"`
}

// AgentEvent is the JetStream event published on fleet.<deviceID>.events.<type>.
type AgentEvent struct {
	V        int    `msgpack:"v"`
	TS       int64  `msgpack:"ts"`
	DeviceID string `msgpack:"device_id"`
	Type     string `msgpack:"type"`
	Severity string `msgpack:"severity"`
	Title    string `msgpack:"title"`
	Message  string `msgpack:"message"`
}

// Heartbeat is the wire format for DEVICES KV entries.
type Heartbeat struct {
	V        int    `msgpack:"v"`
	DeviceID string `msgpack:"device_id"`
	Hostname string `msgpack:"hostname"`
	TS       int64  `msgpack:"ts"`
	Status   string `msgpack:"status"`
}

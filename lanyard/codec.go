package lanyard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ceskypane/statuscard/presence"
)

type Opcode int

const (
	OpEvent      Opcode = 0
	OpHello      Opcode = 1
	OpInitialize Opcode = 2
	OpHeartbeat  Opcode = 3
)

func (o Opcode) String() string {
	switch o {
	case OpEvent:
		return "event"
	case OpHello:
		return "hello"
	case OpInitialize:
		return "initialize"
	case OpHeartbeat:
		return "heartbeat"
	default:
		return "op(" + strconv.Itoa(int(o)) + ")"
	}
}

// Event types carried in the "t" field of op 0 frames.
const (
	EventInitState      = "INIT_STATE"
	EventPresenceUpdate = "PRESENCE_UPDATE"
)

type Frame struct {
	Op   Opcode          `json:"op"`
	Type string          `json:"t,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

type Hello struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval"`
}

func (h Hello) Interval() time.Duration {
	return time.Duration(h.HeartbeatIntervalMS) * time.Millisecond
}

type initializePayload struct {
	SubscribeToID string `json:"subscribe_to_id"`
}

type outbound struct {
	Op   Opcode `json:"op"`
	Data any    `json:"d,omitempty"`
}

// DecodeFrame parses one channel message. A frame without an op code is
// malformed.
func DecodeFrame(raw []byte) (Frame, error) {
	var head struct {
		Op   *Opcode         `json:"op"`
		Type string          `json:"t"`
		Seq  int64           `json:"seq"`
		Data json.RawMessage `json:"d"`
	}

	if err := json.Unmarshal(raw, &head); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if head.Op == nil {
		return Frame{}, fmt.Errorf("%w: missing op", ErrMalformedPayload)
	}

	return Frame{Op: *head.Op, Type: head.Type, Seq: head.Seq, Data: head.Data}, nil
}

// Snapshot decodes the payload of an event frame.
func (f Frame) Snapshot() (presence.Snapshot, error) {
	if f.Op != OpEvent {
		return presence.Snapshot{}, fmt.Errorf("%w: %s frame has no snapshot", ErrMalformedPayload, f.Op)
	}

	var snap presence.Snapshot
	if err := json.Unmarshal(f.Data, &snap); err != nil {
		return presence.Snapshot{}, fmt.Errorf("%w: snapshot: %v", ErrMalformedPayload, err)
	}

	if err := snap.Validate(); err != nil {
		return presence.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	return snap, nil
}

func (f Frame) Hello() (Hello, error) {
	if f.Op != OpHello {
		return Hello{}, fmt.Errorf("%w: %s frame has no hello", ErrMalformedPayload, f.Op)
	}

	var hello Hello
	if err := json.Unmarshal(f.Data, &hello); err != nil {
		return Hello{}, fmt.Errorf("%w: hello: %v", ErrMalformedPayload, err)
	}

	if hello.HeartbeatIntervalMS <= 0 {
		return Hello{}, fmt.Errorf("%w: heartbeat_interval must be positive", ErrMalformedPayload)
	}

	return hello, nil
}

func EncodeInitialize(userID string) ([]byte, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	return json.Marshal(outbound{Op: OpInitialize, Data: initializePayload{SubscribeToID: userID}})
}

func EncodeHeartbeat() []byte {
	return []byte(`{"op":3}`)
}

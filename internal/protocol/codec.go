package protocol

import "encoding/json"

// EncodeServerMessages renders one or more outbound messages as the
// array-of-objects envelope the wire format requires.
func EncodeServerMessages(msgs ...ServerMessage) ([]byte, error) {
	return json.Marshal(msgs)
}

// ControlKind distinguishes a non-text transport frame from a decoded
// message batch.
type ControlKind int

const (
	ControlNone ControlKind = iota
	ControlPing
	ControlPong
	ControlClose
)

// ControlOrMessages is the result of parsing one inbound transport frame:
// either a control frame (ping/pong/close, passed through verbatim) or a
// batch of decoded client messages.
type ControlOrMessages struct {
	Control     ControlKind
	Payload     []byte // control frame payload, echoed verbatim for ping/pong
	Messages    []ClientMessage
}

// DecodeFrame classifies and, for text/binary payloads, decodes an inbound
// application-data frame. Control frames (ping/pong/close) are the
// transport's responsibility to detect before calling this — the
// internal/acceptor read pump calls this only for text/binary frames and uses the transport
// library's own ping/pong/close handlers for ControlKind classification.
func DecodeFrame(data []byte) (ControlOrMessages, error) {
	msgs, err := DecodeClientMessages(data)
	if err != nil {
		return ControlOrMessages{}, err
	}
	return ControlOrMessages{Control: ControlNone, Messages: msgs}, nil
}

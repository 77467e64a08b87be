package watch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/quotefeed/internal/schwab"
)

// Control message types.
const (
	TypeAdd       = "add"
	TypeRemove    = "remove"
	TypeSubscribe = "subscribe"
	TypePing      = "ping"
)

// Outbound events.
const (
	EventSubscribed = "subscribed"
	EventOK         = "ok"
	EventQuote      = "quote"
)

// MaxPingData is the largest ping payload that fits in a pong control frame.
const MaxPingData = 125

// Errors
var (
	ErrUnknownType    = errors.New("unknown control message type")
	ErrMissingSymbols = errors.New("control message has no symbols field")
	ErrMissingData    = errors.New("ping has no data field")
	ErrPingTooLarge   = errors.New("ping data exceeds 125 bytes")
)

// ByteList is a byte slice encoded in JSON as an array of numbers.
type ByteList []byte

// MarshalJSON encodes b as [n, n, ...].
func (b ByteList) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON decodes an array of numbers in 0..255.
func (b *ByteList) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make(ByteList, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// ControlMessage is an inbound control frame.
type ControlMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols,omitempty"`
	Data    ByteList `json:"data,omitempty"`
}

// ParseControl decodes and validates a control frame.
func ParseControl(data []byte) (ControlMessage, error) {
	var raw struct {
		Type    string    `json:"type"`
		Symbols *[]string `json:"symbols"`
		Data    *ByteList `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ControlMessage{}, fmt.Errorf("decode control message: %w", err)
	}

	msg := ControlMessage{Type: raw.Type}
	switch raw.Type {
	case TypeAdd, TypeRemove, TypeSubscribe:
		if raw.Symbols == nil {
			return ControlMessage{}, ErrMissingSymbols
		}
		msg.Symbols = *raw.Symbols
		if msg.Symbols == nil {
			msg.Symbols = []string{}
		}
	case TypePing:
		if raw.Data == nil {
			return ControlMessage{}, ErrMissingData
		}
		if len(*raw.Data) > MaxPingData {
			return ControlMessage{}, fmt.Errorf("%w: %d", ErrPingTooLarge, len(*raw.Data))
		}
		msg.Data = *raw.Data
	default:
		return ControlMessage{}, fmt.Errorf("%w: %q", ErrUnknownType, raw.Type)
	}

	return msg, nil
}

// eventFrame is {"event":"subscribed"}.
type eventFrame struct {
	Event string `json:"event"`
}

// okFrame acknowledges a control message by echoing it.
type okFrame struct {
	Event   string   `json:"event"`
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// quoteFrame carries one successful poll result.
type quoteFrame struct {
	Event string               `json:"event"`
	Data  schwab.QuoteResponse `json:"data"`
}

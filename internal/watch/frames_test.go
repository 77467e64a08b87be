package watch

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseControl(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ControlMessage
		wantErr error
	}{
		{
			name:  "add",
			input: `{"type":"add","symbols":["AAPL","MSFT"]}`,
			want:  ControlMessage{Type: TypeAdd, Symbols: []string{"AAPL", "MSFT"}},
		},
		{
			name:  "remove",
			input: `{"type":"remove","symbols":["AAPL"]}`,
			want:  ControlMessage{Type: TypeRemove, Symbols: []string{"AAPL"}},
		},
		{
			name:  "subscribe empty",
			input: `{"type":"subscribe","symbols":[]}`,
			want:  ControlMessage{Type: TypeSubscribe, Symbols: []string{}},
		},
		{
			name:  "ping",
			input: `{"type":"ping","data":[1,2,255]}`,
			want:  ControlMessage{Type: TypePing, Data: ByteList{1, 2, 255}},
		},
		{name: "missing symbols", input: `{"type":"add"}`, wantErr: ErrMissingSymbols},
		{name: "missing ping data", input: `{"type":"ping"}`, wantErr: ErrMissingData},
		{name: "unknown type", input: `{"type":"unsubscribe","symbols":[]}`, wantErr: ErrUnknownType},
		{name: "no type", input: `{"symbols":["AAPL"]}`, wantErr: ErrUnknownType},
		{name: "not json", input: `hello`},
		{name: "symbols wrong type", input: `{"type":"add","symbols":"AAPL"}`},
		{name: "byte out of range", input: `{"type":"ping","data":[256]}`},
		{
			name:  "ping at limit",
			input: `{"type":"ping","data":` + numberArray(MaxPingData) + `}`,
			want:  ControlMessage{Type: TypePing, Data: make(ByteList, MaxPingData)},
		},
		{name: "ping too large", input: `{"type":"ping","data":` + numberArray(MaxPingData+1) + `}`, wantErr: ErrPingTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseControl([]byte(tt.input))

			wantFail := tt.wantErr != nil || tt.want.Type == ""
			if wantFail {
				if err == nil {
					t.Fatalf("ParseControl(%s) = %+v, want error", tt.input, got)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseControl(%s) error: %v", tt.input, err)
			}
			if got.Type != tt.want.Type {
				t.Errorf("Type = %q, want %q", got.Type, tt.want.Type)
			}
			if len(got.Symbols) != len(tt.want.Symbols) {
				t.Fatalf("Symbols = %v, want %v", got.Symbols, tt.want.Symbols)
			}
			for i := range got.Symbols {
				if got.Symbols[i] != tt.want.Symbols[i] {
					t.Errorf("Symbols[%d] = %q, want %q", i, got.Symbols[i], tt.want.Symbols[i])
				}
			}
			if string(got.Data) != string(tt.want.Data) {
				t.Errorf("Data = %v, want %v", got.Data, tt.want.Data)
			}
		})
	}
}

func TestOKFrame_EchoesRequest(t *testing.T) {
	data, err := json.Marshal(okFrame{Event: EventOK, Type: TypeAdd, Symbols: []string{"AAPL"}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"event":"ok","type":"add","symbols":["AAPL"]}`
	if string(data) != want {
		t.Errorf("okFrame = %s, want %s", data, want)
	}
}

func TestByteList_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(ByteList{1, 2, 3})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "[1,2,3]" {
		t.Errorf("Marshal = %s, want [1,2,3]", data)
	}
}

// numberArray renders n zeros as a JSON array.
func numberArray(n int) string {
	return "[" + strings.TrimSuffix(strings.Repeat("0,", n), ",") + "]"
}

package schema

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(MsgExecuteCell, ExecuteCellPayload{CellIndex: 2, Source: "print(1)"})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Message
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != MsgExecuteCell {
		t.Fatalf("expected type %q, got %q", MsgExecuteCell, decoded.Type)
	}
	var payload ExecuteCellPayload
	if err := decoded.Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.CellIndex != 2 || payload.Source != "print(1)" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestExecutionCompleteDecodesKernelError(t *testing.T) {
	raw := []byte(`{"type":"execution_complete","data":{"execution_count":3,"status":"error","error":{"ename":"NameError","evalue":"name 'x' is not defined","traceback":["Traceback (most recent call last):","NameError: name 'x' is not defined"]}}}`)
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var payload ExecutionCompletePayload
	if err := msg.Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != StatusError {
		t.Fatalf("expected error status, got %q", payload.Status)
	}
	if payload.Error == nil || payload.Error.Name != "NameError" {
		t.Fatalf("expected NameError, got %+v", payload.Error)
	}
	if len(payload.Error.Traceback) != 2 {
		t.Fatalf("expected 2 traceback lines, got %d", len(payload.Error.Traceback))
	}
}

func TestInboundTypesAreUnique(t *testing.T) {
	seen := make(map[MessageType]bool, len(InboundTypes))
	for _, msgType := range InboundTypes {
		if seen[msgType] {
			t.Fatalf("duplicate inbound type %q", msgType)
		}
		seen[msgType] = true
	}
	if !seen[MsgNotebookData] || !seen[MsgExecutionComplete] {
		t.Fatalf("inbound set missing core types: %v", InboundTypes)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	msg := Message{Type: MsgStreamOutput, Data: json.RawMessage(`{"stream":42}`)}
	var payload StreamOutputPayload
	err := msg.Decode(&payload)
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestDecodeEmptyPayloadIsNoop(t *testing.T) {
	msg := Message{Type: MsgExecutionInterrupted}
	var payload struct{}
	if err := msg.Decode(&payload); err != nil {
		t.Fatalf("expected nil error for empty payload, got %v", err)
	}
}

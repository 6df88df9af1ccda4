package ws

import (
	"encoding/json"
	"testing"
)

func TestNewFrameEnvelope(t *testing.T) {
	raw := NewFrame(FrameMessageDelivered, map[string]string{"session_id": "sess-1"})
	if raw == nil {
		t.Fatal("NewFrame returned nil")
	}

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != FrameMessageDelivered {
		t.Fatalf("frame type = %q", frame.Type)
	}

	var payload map[string]string
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["session_id"] != "sess-1" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestNewFrameWithoutData(t *testing.T) {
	raw := NewFrame(FrameChatEnded, nil)

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != FrameChatEnded {
		t.Fatalf("frame type = %q", frame.Type)
	}
	if len(frame.Data) != 0 {
		t.Fatalf("expected empty data, got %s", frame.Data)
	}
}

func TestErrorFrame(t *testing.T) {
	var frame Frame
	if err := json.Unmarshal(ErrorFrame("boom"), &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != FrameError {
		t.Fatalf("frame type = %q", frame.Type)
	}

	var payload map[string]string
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["message"] != "boom" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestDecodeDataValidatesRequiredFields(t *testing.T) {
	var data CustomerConnectData
	raw := json.RawMessage(`{"display_name":"Alice"}`)
	if err := decodeData(raw, &data); err == nil {
		t.Fatal("expected error for missing customer_id")
	}

	raw = json.RawMessage(`{"customer_id":"cust-1","display_name":"Alice"}`)
	if err := decodeData(raw, &data); err != nil {
		t.Fatalf("decode valid payload: %v", err)
	}
	if data.CustomerID != "cust-1" || data.DisplayName != "Alice" {
		t.Fatalf("decoded data = %+v", data)
	}
}

func TestDecodeDataRejectsMalformed(t *testing.T) {
	var data ChatMessageData
	if err := decodeData(json.RawMessage(`{`), &data); err == nil {
		t.Fatal("expected error for malformed json")
	}
	if err := decodeData(nil, &data); err == nil {
		t.Fatal("expected error for missing data")
	}
}

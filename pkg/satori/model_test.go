// Copyright 2024-2026 Aiku AI

package satori

import (
	"encoding/json"
	"testing"
)

func TestMessageObjectMarshal(t *testing.T) {
	t.Parallel()
	msg := NewMessageObject("12", []*Element{Bold(Text("hi"))})
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"id":"12","content":"<b>hi</b>"}`
	var got, expected map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if err := json.Unmarshal([]byte(want), &expected); err != nil {
		t.Fatalf("unmarshal expectation: %v", err)
	}
	if got["id"] != expected["id"] || got["content"] != expected["content"] {
		t.Errorf("marshal: got %v, want %v", got, expected)
	}
}

func TestMessageObjectUnmarshal(t *testing.T) {
	t.Parallel()
	var msg MessageObject
	if err := json.Unmarshal([]byte(`{"id":"3","content":"<b>x</b>"}`), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.ID != "3" {
		t.Errorf("id: got %q, want %q", msg.ID, "3")
	}
	if len(msg.Content) != 1 || msg.Content[0].Kind != KindBold {
		t.Errorf("content: got %+v", msg.Content)
	}
}

func TestMessageObjectRoundTrip(t *testing.T) {
	t.Parallel()
	original := NewMessageObject("9", Parse(`<quote id="1"><b>q</b></quote>text`))
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded MessageObject
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if Render(decoded.Content) != Render(original.Content) {
		t.Errorf("round trip: got %q, want %q", Render(decoded.Content), Render(original.Content))
	}
}

func TestEventMarshalOmitsEmpty(t *testing.T) {
	t.Parallel()
	event := &Event{ID: 1, Type: EventMessageCreated, Platform: "telegram", SelfID: "5"}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"channel", "guild", "user", "message", "button"} {
		if _, ok := got[key]; ok {
			t.Errorf("expected %q to be omitted, got %v", key, got[key])
		}
	}
}

package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNoopSender_RecordsMessages(t *testing.T) {
	s := NewNoopSender()
	res, err := s.Send(context.Background(), Message{To: []string{"pau@example.org"}, Subject: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.MessageID != "noop-1" {
		t.Errorf("expected noop-1, got %q", res.MessageID)
	}
	if sent := s.Sent(); len(sent) != 1 || sent[0].Subject != "hi" {
		t.Errorf("expected one recorded message, got %+v", sent)
	}
}

func TestNoopSender_RejectsNoRecipient(t *testing.T) {
	if _, err := NewNoopSender().Send(context.Background(), Message{}); !errors.Is(err, ErrNoRecipient) {
		t.Errorf("expected ErrNoRecipient, got %v", err)
	}
}

func TestResendSender_Send(t *testing.T) {
	var body map[string]any
	var idempotency string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		idempotency = r.Header.Get("Idempotency-Key")
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	s, err := NewResendSender("re_test", "Console <console@example.org>").WithBaseURL(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Send(context.Background(), Message{
		To:             []string{"pau@example.org"},
		Subject:        "Link",
		HTML:           "<p>x</p>",
		Category:       "login_link",
		IdempotencyKey: "k1",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.MessageID != "msg_123" {
		t.Errorf("expected msg_123, got %q", res.MessageID)
	}
	if body["from"] != "Console <console@example.org>" {
		t.Errorf("expected default from, got %v", body["from"])
	}
	if idempotency != "k1" {
		t.Errorf("expected idempotency key k1, got %q", idempotency)
	}
}

func TestResendSender_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"bad from"}`))
	}))
	defer srv.Close()

	s, _ := NewResendSender("re_test", "x").WithBaseURL(srv.URL + "/")
	if _, err := s.Send(context.Background(), Message{To: []string{"a@b.c"}}); err == nil {
		t.Fatal("expected provider error")
	}
}

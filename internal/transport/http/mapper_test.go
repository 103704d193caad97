package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/causerie/causerie-server/internal/core"
	"github.com/causerie/causerie-server/internal/proto"
	"github.com/causerie/causerie-server/internal/store"
	"github.com/causerie/causerie-server/internal/store/sqlite"
)

func newTestWSHandler(t *testing.T) (*WSHandler, *sqlite.SQLiteStore) {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := zerolog.New(nil)
	hub := core.NewHub(st, "test-instance", &logger)
	return &WSHandler{hub: hub, log: &logger}, st
}

func inbound(t *testing.T, typ string, data any) proto.Inbound {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s data: %v", typ, err)
	}
	return proto.Inbound{Type: typ, Data: raw}
}

func TestDispatchPingAdoptsIdentity(t *testing.T) {
	ctx := context.Background()
	h, st := newTestWSHandler(t)

	client := core.NewClient("c1", "", "", false)
	protoErr, err := h.dispatch(ctx, client, inbound(t, proto.InboundTypePing, PingData{UserID: "u1", Username: "alice"}))
	if err != nil || protoErr != nil {
		t.Fatalf("ping: %v %v", err, protoErr)
	}
	if client.UserID != "u1" || client.Username != "alice" {
		t.Fatalf("identity not adopted: %+v", client)
	}
	if _, err := st.GetConnection(ctx, "c1"); err != nil {
		t.Fatalf("presence record missing after ping: %v", err)
	}

	// A later ping cannot rewrite the identity.
	protoErr, err = h.dispatch(ctx, client, inbound(t, proto.InboundTypePing, PingData{UserID: "u2", Username: "mallory"}))
	if err != nil || protoErr != nil {
		t.Fatalf("second ping: %v %v", err, protoErr)
	}
	if client.UserID != "u1" {
		t.Fatalf("identity rewritten: %q", client.UserID)
	}
}

func TestDispatchPingWithoutIdentity(t *testing.T) {
	h, _ := newTestWSHandler(t)

	client := core.NewClient("c1", "", "", false)
	protoErr, err := h.dispatch(context.Background(), client, proto.Inbound{Type: proto.InboundTypePing})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if protoErr == nil || protoErr.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", protoErr)
	}
}

func TestDispatchValidation(t *testing.T) {
	h, _ := newTestWSHandler(t)
	ctx := context.Background()
	client := core.NewClient("c1", "u1", "alice", false)

	cases := []struct {
		name string
		in   proto.Inbound
	}{
		{"join without channel", inbound(t, proto.InboundTypeJoin, proto.JoinData{})},
		{"leave without channel", inbound(t, proto.InboundTypeLeave, proto.JoinData{})},
		{"msg without channel", inbound(t, proto.InboundTypeMsg, proto.MsgData{Text: "hi"})},
		{"private without recipient", inbound(t, proto.InboundTypePrivate, proto.PrivateData{Text: "hi"})},
		{"read without correspondent", inbound(t, proto.InboundTypeRead, proto.ReadData{})},
	}
	for _, tc := range cases {
		protoErr, err := h.dispatch(ctx, client, tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if protoErr == nil || protoErr.Code != core.ErrCodeBadRequest {
			t.Errorf("%s: expected bad_request, got %+v", tc.name, protoErr)
		}
	}
}

func TestDispatchUnknownType(t *testing.T) {
	h, _ := newTestWSHandler(t)
	client := core.NewClient("c1", "u1", "alice", false)

	protoErr, err := h.dispatch(context.Background(), client, proto.Inbound{Type: "dance"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if protoErr == nil || protoErr.Code != "invalid_message" {
		t.Fatalf("expected invalid_message, got %+v", protoErr)
	}
}

func TestDispatchMalformedPayload(t *testing.T) {
	h, _ := newTestWSHandler(t)
	client := core.NewClient("c1", "u1", "alice", false)

	_, err := h.dispatch(context.Background(), client, proto.Inbound{
		Type: proto.InboundTypeJoin,
		Data: json.RawMessage(`{"channel":`),
	})
	if err == nil {
		t.Fatal("malformed payload did not tear the connection down")
	}
}

func TestOutboundNotIdentifiedError(t *testing.T) {
	out := outboundFromEvent(&core.Event{
		Kind:  core.EventError,
		Error: &core.CoreError{Code: core.ErrCodeNotIdentified, Message: core.MsgNotIdentified},
	})
	if out.Type != proto.OutboundTypeError {
		t.Fatalf("expected error envelope, got %q", out.Type)
	}
	if out.Error.Code != "not_identified" {
		t.Fatalf("unexpected code: %q", out.Error.Code)
	}
	if out.Error.Msg != "Utilisateur non identifié" {
		t.Fatalf("unexpected message: %q", out.Error.Msg)
	}
}

func TestOutboundChannelNotFound(t *testing.T) {
	out := outboundFromEvent(&core.Event{Kind: core.EventChannelNotFound, Channel: "ghost"})
	if out.Type != proto.OutboundTypeError || out.Error.Code != "channel_not_found" {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	if out.Error.Msg != "ghost" {
		t.Fatalf("unexpected message: %q", out.Error.Msg)
	}
}

func TestOutboundEventShapes(t *testing.T) {
	msg := &store.Message{ID: 7, Channel: "general", Username: "alice", Body: "hi"}

	out := outboundFromEvent(&core.Event{Kind: core.EventMessage, Channel: "general", Message: msg})
	if out.Type != proto.OutboundTypeEvent || out.Event != "message" {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	data, ok := out.Data.(proto.EventMessage)
	if !ok || data.ID != 7 || data.User != "alice" || data.Text != "hi" {
		t.Fatalf("unexpected payload: %+v", out.Data)
	}

	out = outboundFromEvent(&core.Event{Kind: core.EventUserStatus, User: "alice", UserID: "u1", Online: true})
	status, ok := out.Data.(proto.EventUserStatus)
	if !ok || !status.Online || status.User != "alice" {
		t.Fatalf("unexpected payload: %+v", out.Data)
	}

	out = outboundFromEvent(&core.Event{Kind: core.EventPrivateRead, ReadBy: "bob", ReadIDs: []int64{3, 4}})
	read, ok := out.Data.(proto.EventPrivateRead)
	if !ok || read.ReadBy != "bob" || len(read.IDs) != 2 {
		t.Fatalf("unexpected payload: %+v", out.Data)
	}

	out = outboundFromEvent(&core.Event{
		Kind:     core.EventHistory,
		Channel:  "general",
		Messages: []*store.Message{msg},
	})
	hist, ok := out.Data.(proto.EventHistory)
	if !ok || out.Event != "history" || len(hist.Messages) != 1 {
		t.Fatalf("unexpected payload: %+v", out.Data)
	}
}

func TestBearerToken(t *testing.T) {
	req, _ := stdhttp.NewRequest(stdhttp.MethodGet, "/ws?token=from-query", nil)
	if got := bearerToken(req); got != "from-query" {
		t.Fatalf("query token: %q", got)
	}

	req, _ = stdhttp.NewRequest(stdhttp.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	if got := bearerToken(req); got != "from-header" {
		t.Fatalf("header token: %q", got)
	}

	req, _ = stdhttp.NewRequest(stdhttp.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Basic abc")
	if got := bearerToken(req); got != "" {
		t.Fatalf("non-bearer scheme yielded %q", got)
	}

	req, _ = stdhttp.NewRequest(stdhttp.MethodGet, "/ws", nil)
	if got := bearerToken(req); got != "" {
		t.Fatalf("missing token yielded %q", got)
	}
}

func drainEvents(c *core.Client) []*core.Event {
	var out []*core.Event
	for {
		select {
		case ev := <-c.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestDispatchPingRegistersAnonymousClient(t *testing.T) {
	ctx := context.Background()
	h, st := newTestWSHandler(t)

	alice := core.NewClient("a1", "u-alice", "alice", false)
	h.hub.Connect(ctx, alice)
	h.hub.Ping(ctx, alice)
	drainEvents(alice)

	// An anonymous socket stays out of the hub until its first ping.
	anon := core.NewClient("c1", "", "", false)

	h.hub.SendPrivateMessage(ctx, alice, "u-bob", "bob", "early")
	if got := drainEvents(anon); len(got) != 0 {
		t.Fatalf("unregistered client received events: %v", got)
	}

	protoErr, err := h.dispatch(ctx, anon, inbound(t, proto.InboundTypePing, PingData{UserID: "u-bob", Username: "bob"}))
	if err != nil || protoErr != nil {
		t.Fatalf("ping: %v %v", err, protoErr)
	}
	if _, err := st.GetConnection(ctx, "c1"); err != nil {
		t.Fatalf("presence record missing after ping: %v", err)
	}
	drainEvents(anon)

	h.hub.SendPrivateMessage(ctx, alice, "u-bob", "bob", "re")
	events := drainEvents(anon)
	var delivered bool
	for _, ev := range events {
		if ev.Kind == core.EventPrivateMessage {
			delivered = true
		}
	}
	if !delivered {
		t.Fatalf("expected private delivery after registration, got %d events", len(events))
	}
}

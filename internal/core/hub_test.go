package core

import (
	"context"
	"errors"
	"testing"
)

func connectAndPing(ctx context.Context, hub *Hub, id, userID, username string, admin bool) *Client {
	c := NewClient(id, userID, username, admin)
	hub.Connect(ctx, c)
	hub.Ping(ctx, c)
	return c
}

func TestJoinChannelIdempotent(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addChannel("general", "alice", false)
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)

	hub.JoinChannel(ctx, alice, "general")
	first := drain(alice)
	if countKind(first, EventUserJoined) != 1 {
		t.Fatalf("expected one join event, got %v", kinds(first))
	}

	// Re-entrant join: no duplicate join/leave notifications.
	hub.JoinChannel(ctx, alice, "general")
	second := drain(alice)
	if countKind(second, EventUserJoined) != 0 || countKind(second, EventUserLeft) != 0 {
		t.Fatalf("re-entrant join emitted events: %v", kinds(second))
	}
}

func TestJoinUnknownChannel(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	hub.JoinChannel(ctx, alice, "ghost")

	ev := mustEvent(t, drain(alice), EventChannelNotFound)
	if ev.Channel != "ghost" {
		t.Fatalf("unexpected channel in event: %q", ev.Channel)
	}
}

func TestJoinSwitchesChannels(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addChannel("general", "alice", false)
	fs.addChannel("random", "alice", false)
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	bob := connectAndPing(ctx, hub, "b1", "u-bob", "bob", false)

	hub.JoinChannel(ctx, alice, "general")
	hub.JoinChannel(ctx, bob, "general")
	drain(alice)
	drain(bob)

	hub.JoinChannel(ctx, alice, "random")

	bobEvents := drain(bob)
	leftEv := mustEvent(t, bobEvents, EventUserLeft)
	if leftEv.User != "alice" || leftEv.Channel != "general" {
		t.Fatalf("unexpected leave event: %+v", leftEv)
	}
	// The old channel gets a refreshed member list, without the mover.
	listEv := mustEvent(t, bobEvents, EventUserList)
	for _, member := range listEv.Members {
		if member == "alice" {
			t.Fatalf("stale member list after switch: %v", listEv.Members)
		}
	}

	rec, err := fs.GetConnection(ctx, "a1")
	if err != nil {
		t.Fatalf("connection record gone: %v", err)
	}
	if rec.Channel == nil || *rec.Channel != "random" {
		t.Fatalf("expected channel random, got %v", rec.Channel)
	}
}

func TestOperationsRequireIdentification(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addChannel("general", "alice", false)
	hub := newTestHub(fs)

	// Connected but never pinged: no presence record exists.
	ghost := NewClient("g1", "u-ghost", "ghost", false)
	hub.Connect(ctx, ghost)
	drain(ghost)

	hub.JoinChannel(ctx, ghost, "general")

	ev := mustEvent(t, drain(ghost), EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotIdentified {
		t.Fatalf("expected not_identified error, got %+v", ev)
	}
	if ev.Error.Message != "Utilisateur non identifié" {
		t.Fatalf("unexpected error message: %q", ev.Error.Message)
	}
}

func TestSendMessageBroadcast(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addChannel("general", "alice", false)
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	bob := connectAndPing(ctx, hub, "b1", "u-bob", "bob", false)
	hub.JoinChannel(ctx, alice, "general")
	hub.JoinChannel(ctx, bob, "general")
	drain(alice)
	drain(bob)

	hub.SendMessage(ctx, alice, "general", "hi")

	msgEv := mustEvent(t, drain(bob), EventMessage)
	if msgEv.Message.Body != "hi" || msgEv.Message.Username != "alice" {
		t.Fatalf("unexpected message event: %+v", msgEv.Message)
	}

	stored := fs.storedMessages()
	if len(stored) != 1 || stored[0].Suppressed {
		t.Fatalf("expected one broadcast message stored, got %+v", stored)
	}
}

func TestWholeChannelMuteBlocksNonPrivileged(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addChannel("general", "alice", true)
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	bob := connectAndPing(ctx, hub, "b1", "u-bob", "bob", false)
	hub.JoinChannel(ctx, alice, "general")
	hub.JoinChannel(ctx, bob, "general")
	drain(alice)
	drain(bob)

	// bob is neither creator nor admin: refused outright, nothing stored.
	hub.SendMessage(ctx, bob, "general", "hi")

	blockedEv := mustEvent(t, drain(bob), EventMessageBlocked)
	if blockedEv.Channel != "general" {
		t.Fatalf("unexpected blocked event: %+v", blockedEv)
	}
	if got := drain(alice); countKind(got, EventMessage) != 0 {
		t.Fatalf("blocked message reached the channel: %v", kinds(got))
	}
	if stored := fs.storedMessages(); len(stored) != 0 {
		t.Fatalf("blocked message was persisted: %+v", stored)
	}

	// alice created the channel: the mute does not apply to her.
	hub.SendMessage(ctx, alice, "general", "hi")

	if got := drain(bob); countKind(got, EventMessage) != 1 {
		t.Fatalf("creator message not broadcast: %v", kinds(got))
	}
	stored := fs.storedMessages()
	if len(stored) != 1 || stored[0].Suppressed {
		t.Fatalf("expected creator message stored unsuppressed, got %+v", stored)
	}
}

func TestIndividualMuteBeatsBypass(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addChannel("general", "alice", true)
	channel := "general"
	fs.addMute(&channel, "u-alice")
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	bob := connectAndPing(ctx, hub, "b1", "u-bob", "bob", false)
	hub.JoinChannel(ctx, alice, "general")
	hub.JoinChannel(ctx, bob, "general")
	drain(alice)
	drain(bob)

	// Creator bypasses the channel mute, but her individual mute wins:
	// stored suppressed, echoed to her alone.
	hub.SendMessage(ctx, alice, "general", "hi")

	aliceEvents := drain(alice)
	if countKind(aliceEvents, EventMessageBlocked) != 0 {
		t.Fatalf("suppressed send must not be blocked: %v", kinds(aliceEvents))
	}
	if countKind(aliceEvents, EventMessage) != 1 {
		t.Fatalf("expected echo to sender, got %v", kinds(aliceEvents))
	}
	if got := drain(bob); countKind(got, EventMessage) != 0 {
		t.Fatalf("suppressed message reached the channel: %v", kinds(got))
	}

	stored := fs.storedMessages()
	if len(stored) != 1 || !stored[0].Suppressed {
		t.Fatalf("expected one suppressed message stored, got %+v", stored)
	}
}

func TestGlobalMuteAppliesInEveryChannel(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addChannel("general", "alice", false)
	fs.addMute(nil, "u-bob")
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	bob := connectAndPing(ctx, hub, "b1", "u-bob", "bob", false)
	hub.JoinChannel(ctx, alice, "general")
	hub.JoinChannel(ctx, bob, "general")
	drain(alice)
	drain(bob)

	hub.SendMessage(ctx, bob, "general", "hi")

	if got := drain(alice); countKind(got, EventMessage) != 0 {
		t.Fatalf("globally muted sender reached the channel: %v", kinds(got))
	}
	stored := fs.storedMessages()
	if len(stored) != 1 || !stored[0].Suppressed {
		t.Fatalf("expected suppressed message stored, got %+v", stored)
	}
}

func TestLeaveChannelDeletesRecord(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addChannel("general", "alice", false)
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	bob := connectAndPing(ctx, hub, "b1", "u-bob", "bob", false)
	hub.JoinChannel(ctx, alice, "general")
	hub.JoinChannel(ctx, bob, "general")
	drain(alice)
	drain(bob)

	hub.LeaveChannel(ctx, alice, "general")

	leftEv := mustEvent(t, drain(bob), EventUserLeft)
	if leftEv.User != "alice" {
		t.Fatalf("unexpected leave event: %+v", leftEv)
	}
	// Leaving removes the whole presence record, not just the channel.
	if _, err := fs.GetConnection(ctx, "a1"); err == nil {
		t.Fatal("presence record survived leave")
	}
}

func TestLeaveChannelMismatchIsSilent(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addChannel("general", "alice", false)
	fs.addChannel("random", "alice", false)
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	hub.JoinChannel(ctx, alice, "general")
	drain(alice)

	hub.LeaveChannel(ctx, alice, "random")

	if got := drain(alice); len(got) != 0 {
		t.Fatalf("mismatched leave emitted events: %v", kinds(got))
	}
	if _, err := fs.GetConnection(ctx, "a1"); err != nil {
		t.Fatalf("presence record gone after mismatched leave: %v", err)
	}
}

func TestPresenceUniqueness(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	hub := newTestHub(fs)

	observer := connectAndPing(ctx, hub, "o1", "u-obs", "observer", false)
	drain(observer)

	// First connection of alice announces her online.
	tab1 := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	got := drain(observer)
	if countKind(got, EventUserStatus) != 1 {
		t.Fatalf("expected one online broadcast, got %v", kinds(got))
	}
	if ev := mustEvent(t, got, EventUserStatus); !ev.Online || ev.User != "alice" {
		t.Fatalf("unexpected status event: %+v", ev)
	}

	// Second device: silent.
	tab2 := connectAndPing(ctx, hub, "a2", "u-alice", "alice", false)
	if got := drain(observer); countKind(got, EventUserStatus) != 0 {
		t.Fatalf("second connection broadcast a status: %v", kinds(got))
	}

	// First device disconnects while the second remains: silent.
	hub.Disconnect(ctx, tab1)
	if got := drain(observer); countKind(got, EventUserStatus) != 0 {
		t.Fatalf("intermediate disconnect broadcast a status: %v", kinds(got))
	}

	// Last device disconnects: exactly one offline broadcast.
	hub.Disconnect(ctx, tab2)
	got = drain(observer)
	if countKind(got, EventUserStatus) != 1 {
		t.Fatalf("expected one offline broadcast, got %v", kinds(got))
	}
	if ev := mustEvent(t, got, EventUserStatus); ev.Online || ev.User != "alice" {
		t.Fatalf("unexpected status event: %+v", ev)
	}
}

func TestPrivateMessageGloballyMutedSender(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addMute(nil, "u-alice")
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	bob := connectAndPing(ctx, hub, "b1", "u-bob", "bob", false)
	drain(alice)
	drain(bob)

	hub.SendPrivateMessage(ctx, alice, "u-bob", "bob", "psst")

	// The recipient never sees it, online or not.
	if got := drain(bob); countKind(got, EventPrivateMessage) != 0 {
		t.Fatalf("muted sender's message delivered: %v", kinds(got))
	}
	// The sender still gets a normal confirmation.
	if got := drain(alice); countKind(got, EventPrivateSent) != 1 {
		t.Fatalf("expected sent confirmation, got %v", kinds(got))
	}

	stored := fs.storedPrivates()
	if len(stored) != 1 || !stored[0].HiddenFromRecipient {
		t.Fatalf("expected message stored hidden from recipient, got %+v", stored)
	}
}

func TestPrivateMessageDeliveryAndReadReceipt(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	bobTab1 := connectAndPing(ctx, hub, "b1", "u-bob", "bob", false)
	bobTab2 := connectAndPing(ctx, hub, "b2", "u-bob", "bob", false)
	drain(alice)
	drain(bobTab1)
	drain(bobTab2)

	hub.SendPrivateMessage(ctx, alice, "u-bob", "bob", "psst")

	// Every one of the recipient's connections gets a copy.
	for _, tab := range []*Client{bobTab1, bobTab2} {
		ev := mustEvent(t, drain(tab), EventPrivateMessage)
		if ev.Private.Body != "psst" || ev.Private.FromUsername != "alice" {
			t.Fatalf("unexpected private message: %+v", ev.Private)
		}
	}
	sentEv := mustEvent(t, drain(alice), EventPrivateSent)
	msgID := sentEv.Private.ID

	hub.MarkPrivateMessagesRead(ctx, bobTab1, "u-alice")

	readEv := mustEvent(t, drain(alice), EventPrivateRead)
	if readEv.ReadBy != "bob" {
		t.Fatalf("unexpected reader: %q", readEv.ReadBy)
	}
	if len(readEv.ReadIDs) != 1 || readEv.ReadIDs[0] != msgID {
		t.Fatalf("unexpected read ids: %v", readEv.ReadIDs)
	}
}

func TestOfflineRecipientStoreOnly(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	drain(alice)

	hub.SendPrivateMessage(ctx, alice, "u-bob", "bob", "psst")

	if got := drain(alice); countKind(got, EventPrivateSent) != 1 {
		t.Fatalf("expected sent confirmation, got %v", kinds(got))
	}
	stored := fs.storedPrivates()
	if len(stored) != 1 || stored[0].HiddenFromRecipient {
		t.Fatalf("expected stored message visible to recipient, got %+v", stored)
	}
}

func TestPrivateDeliveryRequiresPresenceRecord(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	drain(alice)

	// Bob is connected but has never pinged, so no presence record exists.
	bob := NewClient("b1", "u-bob", "bob", false)
	hub.Connect(ctx, bob)

	hub.SendPrivateMessage(ctx, alice, "u-bob", "bob", "salut")

	if got := drain(bob); countKind(got, EventPrivateMessage) != 0 {
		t.Fatalf("recipient without presence record received delivery: %v", kinds(got))
	}
	if got := drain(alice); countKind(got, EventPrivateSent) != 1 {
		t.Fatalf("expected sent confirmation, got %v", kinds(got))
	}
	stored := fs.storedPrivates()
	if len(stored) != 1 || stored[0].HiddenFromRecipient {
		t.Fatalf("expected stored message visible to recipient, got %+v", stored)
	}

	// Once bob pings, a presence record exists and delivery resumes.
	hub.Ping(ctx, bob)
	drain(bob)
	hub.SendPrivateMessage(ctx, alice, "u-bob", "bob", "re")

	if got := drain(bob); countKind(got, EventPrivateMessage) != 1 {
		t.Fatalf("expected delivery after ping, got %v", kinds(got))
	}
}

func TestStoreFailureIsNotUnidentified(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addChannel("general", "alice", false)
	hub := newTestHub(fs)

	alice := connectAndPing(ctx, hub, "a1", "u-alice", "alice", false)
	drain(alice)

	fs.connErr = errors.New("disk on fire")
	hub.JoinChannel(ctx, alice, "general")

	ev := mustEvent(t, drain(alice), EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeInternal {
		t.Fatalf("expected internal error, got %+v", ev.Error)
	}
	if ev.Error.Message == MsgNotIdentified {
		t.Fatalf("store failure reported as missing identity")
	}
}

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/thinhng24/CollabSphere-sub001/internal/auth"
	"github.com/thinhng24/CollabSphere-sub001/internal/bus"
	"github.com/thinhng24/CollabSphere-sub001/internal/outbox"
	"github.com/thinhng24/CollabSphere-sub001/internal/push"
	"github.com/thinhng24/CollabSphere-sub001/internal/rest"
	"github.com/thinhng24/CollabSphere-sub001/internal/state"
	"github.com/thinhng24/CollabSphere-sub001/internal/storage"
	"github.com/thinhng24/CollabSphere-sub001/internal/token"
)

func validCred() token.Credential {
	return token.Credential{
		AccessToken:      "access",
		RefreshToken:     "refresh",
		AccessExpiresAt:  time.Now().Add(time.Hour),
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

type fakeAPI struct {
	mu sync.Mutex

	loginErr      error
	conversations []state.Conversation
	details       map[string]*state.ConversationDetail
	pages         map[string]rest.MessagePage
	pageGate      map[string]chan struct{}

	listCalls  int
	readCalls  []string
	pageCalls  []string
	editResult state.Message
	editErr    error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		details:  map[string]*state.ConversationDetail{},
		pages:    map[string]rest.MessagePage{},
		pageGate: map[string]chan struct{}{},
	}
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (token.Credential, error) {
	if f.loginErr != nil {
		return token.Credential{}, f.loginErr
	}
	return validCred(), nil
}

func (f *fakeAPI) Register(ctx context.Context, email, password, displayName string) (token.Credential, error) {
	return validCred(), nil
}

func (f *fakeAPI) ListConversations(ctx context.Context) ([]state.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.conversations, nil
}

func (f *fakeAPI) GetConversation(ctx context.Context, id string) (*state.ConversationDetail, error) {
	f.mu.Lock()
	d, ok := f.details[id]
	f.mu.Unlock()
	if !ok {
		return nil, rest.ErrNotFound
	}
	return d, nil
}

func (f *fakeAPI) CreateConversation(ctx context.Context, kind state.ConversationKind, displayName string, participantIDs []string) (state.Conversation, error) {
	return state.Conversation{ID: "created", Kind: kind, DisplayName: displayName}, nil
}

func (f *fakeAPI) GetMessagesBefore(ctx context.Context, conversationID, cursor string, limit int) (rest.MessagePage, error) {
	f.mu.Lock()
	gate := f.pageGate[conversationID]
	f.pageCalls = append(f.pageCalls, conversationID)
	page := f.pages[conversationID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return page, nil
}

func (f *fakeAPI) EditMessage(ctx context.Context, conversationID, messageID, content string) (state.Message, error) {
	if f.editErr != nil {
		return state.Message{}, f.editErr
	}
	return f.editResult, nil
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	return nil
}

func (f *fakeAPI) MarkRead(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls = append(f.readCalls, conversationID)
	return nil
}

type fakeChannel struct {
	mu        sync.Mutex
	handlers  map[string][]push.Handler
	started   int
	stopped   int
	connected bool
	joins     []string
	leaves    []string
	reads     []string
	typingOn  []string
	typingOff []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: map[string][]push.Handler{}}
}

func (f *fakeChannel) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	f.connected = true
}

func (f *fakeChannel) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	f.connected = false
}

func (f *fakeChannel) On(event string, h push.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], h)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, event)
	}
}

func (f *fakeChannel) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) JoinConversation(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, id)
}

func (f *fakeChannel) LeaveConversation(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, id)
}

func (f *fakeChannel) MarkAsRead(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, id)
}

func (f *fakeChannel) StartTyping(conversationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typingOn = append(f.typingOn, conversationID)
}

func (f *fakeChannel) StopTyping(conversationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typingOff = append(f.typingOff, conversationID)
}

// emit delivers a push event to registered handlers, serialized like the
// manager's read loop.
func (f *fakeChannel) emit(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	hs := append([]push.Handler(nil), f.handlers[event]...)
	f.mu.Unlock()
	if len(hs) == 0 {
		t.Fatalf("no handler registered for %s", event)
	}
	for _, h := range hs {
		h(data)
	}
}

type fakeStorage struct {
	mu      sync.Mutex
	cred    token.Credential
	hasCred bool
	outbox  []*storage.OutboxEntry
	checks  map[string]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{checks: map[string]string{}}
}

func (f *fakeStorage) LoadCredential() (token.Credential, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cred, f.hasCred, nil
}

func (f *fakeStorage) SaveCredential(c token.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cred, f.hasCred = c, true
	return nil
}

func (f *fakeStorage) ClearCredential() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cred, f.hasCred = token.Credential{}, false
	return nil
}

func (f *fakeStorage) EnqueueOutbox(e *storage.OutboxEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outbox = append(f.outbox, e)
	return nil
}

func (f *fakeStorage) SetCheckpoint(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks[key] = value
	return nil
}

type fakeRefresh struct{}

func (fakeRefresh) Refresh(ctx context.Context, accessToken, refreshToken string) (token.Credential, error) {
	return token.Credential{}, fmt.Errorf("refresh not expected in this test")
}

type fixture struct {
	o       *Orchestrator
	api     *fakeAPI
	channel *fakeChannel
	db      *fakeStorage
	tokens  *token.Store
	states  *state.Store
	bus     *bus.Bus

	mu      sync.Mutex
	expired int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		api:     newFakeAPI(),
		channel: newFakeChannel(),
		db:      newFakeStorage(),
		tokens:  token.NewStore(),
		bus:     bus.New(),
	}
	f.states = state.NewStore(f.bus)
	coord := auth.NewCoordinator(f.tokens, fakeRefresh{}, f.db, f.bus, nil)
	f.o = New(Deps{
		Tokens:      f.tokens,
		Coordinator: coord,
		API:         f.api,
		Channel:     f.channel,
		States:      f.states,
		DB:          f.db,
		Bus:         f.bus,
		OnAuthExpired: func() {
			f.mu.Lock()
			f.expired++
			f.mu.Unlock()
		},
	})
	t.Cleanup(f.o.Close)
	return f
}

func (f *fixture) expiredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expired
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func msgPayload(id, convID, content string) map[string]any {
	return map[string]any{
		"id":             id,
		"conversationId": convID,
		"senderId":       "u2",
		"content":        content,
		"type":           "text",
		"createdAt":      time.Now().Format(time.RFC3339),
	}
}

func TestLoginStartsSession(t *testing.T) {
	f := newFixture(t)
	f.api.conversations = []state.Conversation{
		{ID: "c1", LastMessageAt: time.Now()},
		{ID: "c2"},
	}

	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	if !f.o.IsAuthenticated() {
		t.Error("not authenticated after login")
	}
	if !f.db.hasCred {
		t.Error("credentials not persisted")
	}
	if f.channel.started != 1 {
		t.Errorf("channel started %d times, want 1", f.channel.started)
	}
	if got := len(f.o.Snapshot().Conversations); got != 2 {
		t.Errorf("got %d conversations, want 2", got)
	}
	if _, ok := f.db.checks[checkpointConversationsLoaded]; !ok {
		t.Error("conversation-load checkpoint not recorded")
	}
}

func TestLoginReplacesLeftoverCredential(t *testing.T) {
	f := newFixture(t)

	// A stale pair with later expiries than what login will hand back. The
	// login result must win regardless of the monotonic-expiry guard.
	f.tokens.Set(token.Credential{
		AccessToken:      "stale-access",
		RefreshToken:     "stale-refresh",
		AccessExpiresAt:  time.Now().Add(2 * time.Hour),
		RefreshExpiresAt: time.Now().Add(48 * time.Hour),
	})

	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	cur, ok := f.tokens.Current()
	if !ok {
		t.Fatal("no credential after login")
	}
	if cur.AccessToken != "access" {
		t.Errorf("AccessToken = %q, want the login credential", cur.AccessToken)
	}
}

func TestRestoreWithoutCredentials(t *testing.T) {
	f := newFixture(t)

	err := f.o.Restore(context.Background())
	if err != auth.ErrNotAuthenticated {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if f.channel.started != 0 {
		t.Error("channel started without a session")
	}
}

func TestRestoreExpiredRefreshToken(t *testing.T) {
	f := newFixture(t)
	cred := validCred()
	cred.RefreshExpiresAt = time.Now().Add(-time.Minute)
	_ = f.db.SaveCredential(cred)

	err := f.o.Restore(context.Background())
	if err != auth.ErrNotAuthenticated {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if f.db.hasCred {
		t.Error("dead credentials not cleared")
	}
}

func TestRestoreStartsSession(t *testing.T) {
	f := newFixture(t)
	_ = f.db.SaveCredential(validCred())

	if err := f.o.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !f.o.IsAuthenticated() {
		t.Error("not authenticated after restore")
	}
	if f.channel.started != 1 {
		t.Errorf("channel started %d times, want 1", f.channel.started)
	}
}

func TestLogoutTearsDown(t *testing.T) {
	f := newFixture(t)
	f.api.conversations = []state.Conversation{{ID: "c1"}}
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	f.o.Logout()

	if f.o.IsAuthenticated() {
		t.Error("still authenticated after logout")
	}
	if f.db.hasCred {
		t.Error("credentials not cleared")
	}
	if f.channel.stopped != 1 {
		t.Errorf("channel stopped %d times, want 1", f.channel.stopped)
	}
	if got := len(f.o.Snapshot().Conversations); got != 0 {
		t.Errorf("state not reset: %d conversations", got)
	}
}

func TestSetActiveConversationLoadsWindow(t *testing.T) {
	f := newFixture(t)
	f.api.conversations = []state.Conversation{{ID: "c1", UnreadCount: 3}}
	f.api.details["c1"] = &state.ConversationDetail{Conversation: state.Conversation{ID: "c1"}}
	f.api.pages["c1"] = rest.MessagePage{
		Messages: []state.Message{{ID: "m1", ConversationID: "c1", Content: "hi"}},
		HasMore:  true, NextCursor: "m1",
	}
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	if err := f.o.SetActiveConversation(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	snap := f.o.Snapshot()
	if snap.Active == nil || snap.Active.ID != "c1" {
		t.Fatal("c1 not active")
	}
	if len(snap.Window.Messages) != 1 || snap.Window.Cursor != "m1" {
		t.Errorf("window = %+v", snap.Window)
	}
	if len(f.channel.joins) != 1 || f.channel.joins[0] != "c1" {
		t.Errorf("joins = %v, want [c1]", f.channel.joins)
	}
	if len(f.api.readCalls) != 1 {
		t.Errorf("mark-read calls = %v", f.api.readCalls)
	}
	if snap.Conversations[0].UnreadCount != 0 {
		t.Errorf("unread = %d, want 0", snap.Conversations[0].UnreadCount)
	}
}

func TestSwitchingLeavesPreviousConversation(t *testing.T) {
	f := newFixture(t)
	f.api.details["a"] = &state.ConversationDetail{Conversation: state.Conversation{ID: "a"}}
	f.api.details["b"] = &state.ConversationDetail{Conversation: state.Conversation{ID: "b"}}
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	if err := f.o.SetActiveConversation(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if err := f.o.SetActiveConversation(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}

	if len(f.channel.leaves) != 1 || f.channel.leaves[0] != "a" {
		t.Errorf("leaves = %v, want [a]", f.channel.leaves)
	}
}

// TestStaleLoadDiscarded pins the logical-cancellation rule: a history page
// that comes back after the user switched away must not touch the new
// conversation's window.
func TestStaleLoadDiscarded(t *testing.T) {
	f := newFixture(t)
	f.api.details["a"] = &state.ConversationDetail{Conversation: state.Conversation{ID: "a"}}
	f.api.details["b"] = &state.ConversationDetail{Conversation: state.Conversation{ID: "b"}}
	f.api.pages["a"] = rest.MessagePage{
		Messages: []state.Message{{ID: "old-a", ConversationID: "a"}},
		HasMore:  true, NextCursor: "old-a",
	}
	f.api.pages["b"] = rest.MessagePage{
		Messages: []state.Message{{ID: "m-b", ConversationID: "b"}},
	}
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := f.o.SetActiveConversation(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}

	// Block a's next page fetch, then switch to b while it is in flight.
	gate := make(chan struct{})
	f.api.mu.Lock()
	f.api.pageGate["a"] = gate
	f.api.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- f.o.LoadOlderMessages(context.Background()) }()
	f.api.mu.Lock()
	for len(f.api.pageCalls) < 2 { // wait for the in-flight page call
		f.api.mu.Unlock()
		time.Sleep(time.Millisecond)
		f.api.mu.Lock()
	}
	f.api.mu.Unlock()

	if err := f.o.SetActiveConversation(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	close(gate)

	if err := <-errCh; err != ErrStaleResponse {
		t.Fatalf("err = %v, want ErrStaleResponse", err)
	}
	snap := f.o.Snapshot()
	if snap.Active.ID != "b" {
		t.Fatalf("active = %s, want b", snap.Active.ID)
	}
	if len(snap.Window.Messages) != 1 || snap.Window.Messages[0].ID != "m-b" {
		t.Errorf("window polluted by stale page: %+v", snap.Window.Messages)
	}
}

func TestReceiveMessageUpdatesWindowAndPreview(t *testing.T) {
	f := newFixture(t)
	f.api.conversations = []state.Conversation{{ID: "c1"}, {ID: "c2"}}
	f.api.details["c1"] = &state.ConversationDetail{Conversation: state.Conversation{ID: "c1"}}
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := f.o.SetActiveConversation(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	f.channel.emit(t, push.EventReceiveMessage, msgPayload("m1", "c1", "hello"))

	snap := f.o.Snapshot()
	if len(snap.Window.Messages) != 1 || snap.Window.Messages[0].ID != "m1" {
		t.Fatalf("window = %+v", snap.Window.Messages)
	}
	if snap.Conversations[0].ID != "c1" || snap.Conversations[0].LastMessagePreview != "hello" {
		t.Errorf("conversation list not bumped: %+v", snap.Conversations)
	}
	if snap.Conversations[0].UnreadCount != 0 {
		t.Errorf("active conversation unread = %d, want 0", snap.Conversations[0].UnreadCount)
	}

	// A message for a background conversation increments unread, leaves the
	// window alone.
	f.channel.emit(t, push.EventReceiveMessage, msgPayload("m2", "c2", "psst"))
	snap = f.o.Snapshot()
	if len(snap.Window.Messages) != 1 {
		t.Errorf("window grew from a background message: %+v", snap.Window.Messages)
	}
	for _, c := range snap.Conversations {
		if c.ID == "c2" && c.UnreadCount != 1 {
			t.Errorf("c2 unread = %d, want 1", c.UnreadCount)
		}
	}
}

func TestTypingAndPresenceEvents(t *testing.T) {
	f := newFixture(t)
	f.api.conversations = []state.Conversation{{ID: "c1"}}
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	f.channel.emit(t, push.EventUserTyping, map[string]any{
		"conversationId": "c1", "userId": "u2", "isTyping": true,
	})
	f.channel.emit(t, push.EventUserOnline, map[string]any{"userId": "u2"})

	snap := f.o.Snapshot()
	if _, ok := snap.Typing[state.TypingKey{ConversationID: "c1", UserID: "u2"}]; !ok {
		t.Error("typing indicator not set")
	}
	if _, ok := snap.Online["u2"]; !ok {
		t.Error("presence not set")
	}

	f.channel.emit(t, push.EventUserTyping, map[string]any{
		"conversationId": "c1", "userId": "u2", "isTyping": false,
	})
	f.channel.emit(t, push.EventUserOffline, map[string]any{"userId": "u2"})

	snap = f.o.Snapshot()
	if len(snap.Typing) != 0 || len(snap.Online) != 0 {
		t.Errorf("indicators not cleared: typing=%v online=%v", snap.Typing, snap.Online)
	}
}

func TestSendMessageOptimisticThenAcked(t *testing.T) {
	f := newFixture(t)
	f.api.conversations = []state.Conversation{{ID: "c1"}}
	f.api.details["c1"] = &state.ConversationDetail{Conversation: state.Conversation{ID: "c1"}}
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := f.o.SetActiveConversation(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	clientID, err := f.o.SendMessage("c1", "draft")
	if err != nil {
		t.Fatal(err)
	}

	if len(f.db.outbox) != 1 || f.db.outbox[0].ClientMsgID != clientID {
		t.Fatalf("outbox = %+v", f.db.outbox)
	}
	snap := f.o.Snapshot()
	if len(snap.Window.Messages) != 1 || snap.Window.Messages[0].Status != state.StatusSending {
		t.Fatalf("optimistic entry missing: %+v", snap.Window.Messages)
	}

	f.bus.Publish(bus.Event{Kind: "message.send_ack", Payload: outbox.Ack{
		ClientMsgID:    clientID,
		ConversationID: "c1",
		Message:        state.Message{ID: "srv-1", ConversationID: "c1", Content: "draft", CreatedAt: time.Now()},
	}})

	waitUntil(t, func() bool {
		msgs := f.o.Snapshot().Window.Messages
		return len(msgs) == 1 && msgs[0].ID == "srv-1" && msgs[0].Status == ""
	}, "ack did not replace the optimistic entry")
}

func TestSendFailureFlagsMessage(t *testing.T) {
	f := newFixture(t)
	f.api.details["c1"] = &state.ConversationDetail{Conversation: state.Conversation{ID: "c1"}}
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := f.o.SetActiveConversation(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	clientID, err := f.o.SendMessage("c1", "doomed")
	if err != nil {
		t.Fatal(err)
	}

	f.bus.Publish(bus.Event{Kind: "message.send_failed", Payload: outbox.Failure{
		ClientMsgID: clientID, ConversationID: "c1", Error: "rejected", Permanent: true,
	}})

	waitUntil(t, func() bool {
		msgs := f.o.Snapshot().Window.Messages
		return len(msgs) == 1 && msgs[0].Status == state.StatusFailed
	}, "failure did not flag the message")
}

func TestLocalTypingSignalsChannel(t *testing.T) {
	f := newFixture(t)
	f.api.details["c1"] = &state.ConversationDetail{Conversation: state.Conversation{ID: "c1"}}
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := f.o.SetActiveConversation(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	f.o.NotifyTyping("c1")
	waitUntil(t, func() bool {
		f.channel.mu.Lock()
		defer f.channel.mu.Unlock()
		return len(f.channel.typingOn) == 1
	}, "startTyping not invoked")

	if _, err := f.o.SendMessage("c1", "done typing"); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, func() bool {
		f.channel.mu.Lock()
		defer f.channel.mu.Unlock()
		return len(f.channel.typingOff) == 1
	}, "stopTyping not invoked on send")
}

func TestAuthExpiryFiresOncePerEpisode(t *testing.T) {
	f := newFixture(t)
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	f.bus.Publish(bus.Event{Kind: "session.expired"})
	f.bus.Publish(bus.Event{Kind: "session.expired"})

	waitUntil(t, func() bool { return f.expiredCount() == 1 }, "redirect not fired")
	time.Sleep(20 * time.Millisecond)
	if got := f.expiredCount(); got != 1 {
		t.Fatalf("redirect fired %d times, want 1", got)
	}
	waitUntil(t, func() bool {
		f.channel.mu.Lock()
		defer f.channel.mu.Unlock()
		return f.channel.stopped == 1
	}, "session not torn down on expiry")

	// A fresh login re-arms the episode.
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	f.bus.Publish(bus.Event{Kind: "session.expired"})
	waitUntil(t, func() bool { return f.expiredCount() == 2 }, "redirect not re-armed after login")
}

func TestDeleteMessageTombstonesLocally(t *testing.T) {
	f := newFixture(t)
	f.api.details["c1"] = &state.ConversationDetail{Conversation: state.Conversation{ID: "c1"}}
	f.api.pages["c1"] = rest.MessagePage{
		Messages: []state.Message{{ID: "m1", ConversationID: "c1", Content: "remove me"}},
	}
	if err := f.o.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := f.o.SetActiveConversation(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	if err := f.o.DeleteMessage(context.Background(), "c1", "m1"); err != nil {
		t.Fatal(err)
	}

	msgs := f.o.Snapshot().Window.Messages
	if len(msgs) != 1 || !msgs[0].IsDeleted || msgs[0].Content != "" {
		t.Errorf("message not tombstoned: %+v", msgs)
	}
}

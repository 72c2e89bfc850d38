// Package orchestrator composes the token store, refresh coordinator, push
// channel, reducer and durable storage into the session lifecycle: login,
// restore, active-conversation switching, sending, logout.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/thinhng24/CollabSphere-sub001/internal/auth"
	"github.com/thinhng24/CollabSphere-sub001/internal/bus"
	"github.com/thinhng24/CollabSphere-sub001/internal/push"
	"github.com/thinhng24/CollabSphere-sub001/internal/rest"
	"github.com/thinhng24/CollabSphere-sub001/internal/state"
	"github.com/thinhng24/CollabSphere-sub001/internal/storage"
	"github.com/thinhng24/CollabSphere-sub001/internal/token"
	"github.com/thinhng24/CollabSphere-sub001/internal/typing"
)

// ErrStaleResponse marks a fetch result that arrived after its conversation
// stopped being active. The result is discarded, never applied.
var ErrStaleResponse = errors.New("stale response discarded")

// pageSize is how many messages one history page carries.
const pageSize = 50

// checkpointConversationsLoaded records when the conversation list was last
// fetched in full.
const checkpointConversationsLoaded = "conversations_loaded_at"

// API is the REST surface the orchestrator drives (implemented by
// rest.Client).
type API interface {
	Login(ctx context.Context, email, password string) (token.Credential, error)
	Register(ctx context.Context, email, password, displayName string) (token.Credential, error)
	ListConversations(ctx context.Context) ([]state.Conversation, error)
	GetConversation(ctx context.Context, id string) (*state.ConversationDetail, error)
	CreateConversation(ctx context.Context, kind state.ConversationKind, displayName string, participantIDs []string) (state.Conversation, error)
	GetMessagesBefore(ctx context.Context, conversationID, cursor string, limit int) (rest.MessagePage, error)
	EditMessage(ctx context.Context, conversationID, messageID, content string) (state.Message, error)
	DeleteMessage(ctx context.Context, conversationID, messageID string) error
	MarkRead(ctx context.Context, conversationID string) error
}

// Channel is the push channel surface (implemented by push.Manager).
type Channel interface {
	Start()
	Stop()
	On(event string, h push.Handler) (unsubscribe func())
	IsConnected() bool
	JoinConversation(id string)
	LeaveConversation(id string)
	MarkAsRead(id string)
	StartTyping(conversationID string)
	StopTyping(conversationID string)
}

// Storage is the durable per-session persistence the orchestrator touches
// (implemented by storage.DB).
type Storage interface {
	LoadCredential() (token.Credential, bool, error)
	SaveCredential(token.Credential) error
	ClearCredential() error
	EnqueueOutbox(*storage.OutboxEntry) error
	SetCheckpoint(key, value string) error
}

// Deps carries the orchestrator's collaborators.
type Deps struct {
	Tokens      *token.Store
	Coordinator *auth.Coordinator
	API         API
	Channel     Channel
	States      *state.Store
	DB          Storage
	Bus         *bus.Bus
	Logger      *zap.Logger

	// OnAuthExpired fires exactly once per authentication episode when the
	// session becomes unrecoverable. May be nil.
	OnAuthExpired func()
}

// Orchestrator is the session driver. All methods are safe for concurrent
// use.
type Orchestrator struct {
	tokens  *token.Store
	coord   *auth.Coordinator
	api     API
	channel Channel
	states  *state.Store
	db      Storage
	bus     *bus.Bus
	logger  *zap.Logger
	typing  *typing.Debouncer

	onAuthExpired func()

	// gen invalidates in-flight message fetches when the active conversation
	// changes. Logical cancellation only; the network call itself runs on.
	gen atomic.Uint64

	mu       sync.Mutex
	authOnce *sync.Once
	unsubs   []func()
	active   bool

	closeBus  []func()
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates an orchestrator and starts its bus listeners. Call Close to
// release them.
func New(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		tokens:        d.Tokens,
		coord:         d.Coordinator,
		api:           d.API,
		channel:       d.Channel,
		states:        d.States,
		db:            d.DB,
		bus:           d.Bus,
		logger:        logger,
		onAuthExpired: d.OnAuthExpired,
		authOnce:      &sync.Once{},
		closed:        make(chan struct{}),
	}
	o.typing = typing.NewDebouncer(func(conversationID string, isTyping bool) {
		if isTyping {
			o.channel.StartTyping(conversationID)
		} else {
			o.channel.StopTyping(conversationID)
		}
	})

	sessionCh, unsubSession := d.Bus.Subscribe("session.", 16)
	outboxCh, unsubOutbox := d.Bus.Subscribe("message.", 64)
	o.closeBus = []func(){unsubSession, unsubOutbox}

	o.wg.Add(2)
	go o.watchSession(sessionCh)
	go o.watchOutbox(outboxCh)
	return o
}

// Close stops the bus listeners and tears the session down.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.stopSession()
		close(o.closed)
		for _, unsub := range o.closeBus {
			unsub()
		}
		o.wg.Wait()
	})
}

// Login authenticates and brings the session up.
func (o *Orchestrator) Login(ctx context.Context, email, password string) error {
	cred, err := o.api.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	o.establishSession(ctx, cred)
	return nil
}

// Register creates an account and brings the session up.
func (o *Orchestrator) Register(ctx context.Context, email, password, displayName string) error {
	cred, err := o.api.Register(ctx, email, password, displayName)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	o.establishSession(ctx, cred)
	return nil
}

// Restore resumes a session from stored credentials. Returns
// auth.ErrNotAuthenticated when nothing usable is stored.
func (o *Orchestrator) Restore(ctx context.Context) error {
	cred, ok, err := o.db.LoadCredential()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if !ok {
		return auth.ErrNotAuthenticated
	}
	if cred.RefreshExpired() {
		_ = o.db.ClearCredential()
		return auth.ErrNotAuthenticated
	}

	o.tokens.Set(cred)
	if _, err := o.coord.EnsureValidToken(ctx); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	o.establishSession(ctx, token.Credential{})
	o.logger.Info("session restored")
	return nil
}

// Logout tears the session down and forgets the credentials.
func (o *Orchestrator) Logout() {
	o.stopSession()
	o.tokens.Clear()
	if err := o.db.ClearCredential(); err != nil {
		o.logger.Warn("failed to clear persisted credentials", zap.Error(err))
	}
	o.logger.Info("logged out")
}

// IsAuthenticated reports whether a usable credential is held.
func (o *Orchestrator) IsAuthenticated() bool {
	cred, ok := o.tokens.Current()
	return ok && !cred.RefreshExpired()
}

// IsConnected reports whether the push channel is up.
func (o *Orchestrator) IsConnected() bool {
	return o.channel.IsConnected()
}

// Snapshot returns the current conversation state.
func (o *Orchestrator) Snapshot() state.State {
	return o.states.Snapshot()
}

// establishSession stores a fresh credential (zero value means the token
// store is already primed, as on restore) and starts the session machinery.
func (o *Orchestrator) establishSession(ctx context.Context, cred token.Credential) {
	if cred.AccessToken != "" {
		// A fresh login is authoritative over whatever pair is left in the
		// store, even when its expiries do not advance.
		o.tokens.Clear()
		o.tokens.Set(cred)
		if err := o.db.SaveCredential(cred); err != nil {
			o.logger.Warn("failed to persist credentials", zap.Error(err))
		}
	}

	o.mu.Lock()
	o.authOnce = &sync.Once{}
	o.mu.Unlock()

	o.startSession(ctx)
}

func (o *Orchestrator) startSession(ctx context.Context) {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		o.stopSession()
		o.mu.Lock()
	}
	o.unsubs = o.subscribePushEvents()
	o.active = true
	o.mu.Unlock()

	o.channel.Start()

	conversations, err := o.api.ListConversations(ctx)
	if err != nil {
		// Not fatal; the list is refetched on demand and the push channel
		// still delivers updates.
		o.logger.Warn("initial conversation load failed", zap.Error(err))
		return
	}
	o.states.Dispatch(state.SetConversations{Conversations: conversations})
	if err := o.db.SetCheckpoint(checkpointConversationsLoaded, time.Now().UTC().Format(time.RFC3339)); err != nil {
		o.logger.Warn("failed to record checkpoint", zap.Error(err))
	}
	o.logger.Info("conversations loaded", zap.Int("count", len(conversations)))
}

func (o *Orchestrator) stopSession() {
	o.mu.Lock()
	unsubs := o.unsubs
	o.unsubs = nil
	wasActive := o.active
	o.active = false
	o.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if wasActive {
		o.channel.Stop()
	}
	o.typing.Reset()
	o.states.Reset()
	o.gen.Add(1)
}

// watchSession reacts to coordinator-announced session death. The redirect to
// re-authentication fires once per episode no matter how many callers hit the
// same rejection.
func (o *Orchestrator) watchSession(ch <-chan bus.Event) {
	defer o.wg.Done()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Kind != "session.expired" {
				continue
			}
			o.mu.Lock()
			once := o.authOnce
			o.mu.Unlock()
			once.Do(func() {
				o.logger.Warn("session expired, re-authentication required")
				o.stopSession()
				if o.onAuthExpired != nil {
					o.onAuthExpired()
				}
			})
		case <-o.closed:
			return
		}
	}
}

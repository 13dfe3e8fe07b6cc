package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oasislabs/signing-gateway/concurrent"
	"github.com/oasislabs/signing-gateway/errors"
	"github.com/oasislabs/signing-gateway/log"
)

// DefaultReconnect is the policy used to dial push channels again
// after they fail
var DefaultReconnect = concurrent.FixedRetryConfig(500*time.Millisecond, 0)

// Handler receives the requests pushed by requesters. sessionID is the
// id of the session whose channel delivered the request
type Handler interface {
	HandleSessionRequest(ctx context.Context, sessionID string, uri string) error
}

// HandlerFunc allows functions to act as a Handler
type HandlerFunc func(ctx context.Context, sessionID string, uri string) error

// HandleSessionRequest implementation of Handler for HandlerFunc
func (f HandlerFunc) HandleSessionRequest(ctx context.Context, sessionID string, uri string) error {
	return f(ctx, sessionID, uri)
}

// Deps are the dependencies of a Manager
type Deps struct {
	Logger log.Logger
	Store  Store
	Dialer Dialer
}

// Props define the behaviour of a Manager
type Props struct {
	// Reconnect is the retry policy of push channel connections
	Reconnect concurrent.RetryConfig

	// Now returns the current time. It defaults to time.Now
	Now func() time.Time
}

type stateRequest struct{}

// Manager owns the live sessions and their push channel connections.
// Every session with a live connection has a worker in the master
// keyed by the session id
type Manager struct {
	store     Store
	dialer    Dialer
	logger    log.Logger
	reconnect concurrent.RetryConfig
	now       func() time.Time
	master    *concurrent.Master

	mu       sync.Mutex
	sessions map[string]*Session
	handler  Handler
}

// NewManager creates a new Manager. Start needs to be called before
// connections can be established
func NewManager(deps *Deps, props *Props) *Manager {
	m := &Manager{
		store:     deps.Store,
		dialer:    deps.Dialer,
		logger:    deps.Logger.ForClass("session", "Manager"),
		reconnect: props.Reconnect,
		now:       props.Now,
		sessions:  make(map[string]*Session),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.reconnect.BaseTimeout == 0 {
		m.reconnect = DefaultReconnect
	}

	m.master = concurrent.NewMaster(concurrent.MasterProps{
		MasterHandler: concurrent.MasterHandlerFunc(m.handle),
	})
	return m
}

// SetHandler sets the handler of requests received through push
// channels
func (m *Manager) SetHandler(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

func (m *Manager) getHandler() Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler
}

// Start starts the master that runs the connections
func (m *Manager) Start(ctx context.Context) error {
	return m.master.Start(ctx)
}

// Stop closes every connection. Sessions are kept
func (m *Manager) Stop() error {
	return m.master.Stop()
}

func (m *Manager) handle(ctx context.Context, ev concurrent.MasterEvent) error {
	switch ev := ev.(type) {
	case concurrent.CreateWorkerEvent:
		conn := ev.Value.(*connection)
		conn.start(context.Background())
		ev.Props.UserData = conn
		ev.Props.WorkerHandler = concurrent.WorkerHandlerFunc(func(ctx context.Context, ev concurrent.WorkerEvent) (interface{}, error) {
			conn := ev.GetWorker().UserData.(*connection)
			switch ev.(concurrent.RequestWorkerEvent).Value.(type) {
			case stateRequest:
				return connStatus{State: conn.State(), Done: conn.Done(), URL: conn.url}, nil
			default:
				panic("received unexpected request")
			}
		})
		return nil
	case concurrent.DestroyWorkerEvent:
		ev.Worker.UserData.(*connection).stop()
		return nil
	default:
		panic("received unexpected event")
	}
}

type connStatus struct {
	State ConnState
	Done  bool
	URL   string
}

func (m *Manager) status(ctx context.Context, id string) (connStatus, bool, error) {
	if m.master.IsStopped() {
		return connStatus{}, false, nil
	}

	v, err := m.master.Request(ctx, id, stateRequest{})
	if err == concurrent.ErrWorkerNotFound {
		return connStatus{}, false, nil
	}
	if err != nil {
		return connStatus{}, false, err
	}

	return v.(connStatus), true, nil
}

// ConnectionState returns the state of the connection of a session.
// Sessions that are not listening are Disconnected
func (m *Manager) ConnectionState(ctx context.Context, id string) (ConnState, error) {
	status, ok, err := m.status(ctx, id)
	if err != nil || !ok {
		return Disconnected, err
	}
	return status.State, nil
}

func (m *Manager) persist(ctx context.Context, s *Session) error {
	blob, err := s.Marshal()
	if err != nil {
		return errors.New(errors.ErrInternal, err)
	}

	if err := m.store.Save(ctx, s.ID, blob); err != nil {
		m.logger.Warn(ctx, "failed to persist session", log.MapFields{
			"call_type": "PersistSessionFailure",
			"session":   s.ID,
			"err":       err.Error(),
		})
		return errors.New(errors.ErrInternal, err)
	}

	return nil
}

// Open creates the session req.ID or refreshes it if it exists. A
// refreshed session keeps its creation time
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	now := m.now()

	m.mu.Lock()
	current, existed := m.sessions[req.ID]
	var s *Session
	if existed {
		s = current.clone()
	} else {
		s = &Session{ID: req.ID, CreatedAt: now}
	}
	m.mu.Unlock()

	prev := *s
	s.Account = req.Account
	s.Permission = req.Permission
	s.ChainID = req.ChainID
	s.CallbackURL = req.CallbackURL
	s.Key = req.Key
	s.ChannelURL = req.ChannelURL
	s.UpdatedAt = now

	// the session only becomes visible once it is stored
	if err := m.persist(ctx, s); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[req.ID] = s
	snapshot := s.clone()
	m.mu.Unlock()

	// a live connection on the previous channel or key is stale
	if existed && (prev.ChannelURL != req.ChannelURL || prev.Key != req.Key) {
		if err := m.disconnect(ctx, req.ID); err != nil {
			return nil, err
		}
	}

	m.logger.Info(ctx, "session opened", log.MapFields{
		"call_type": "OpenSessionSuccess",
		"session":   req.ID,
		"account":   req.Account.String(),
		"refreshed": existed,
	})
	return snapshot, nil
}

// Close removes a session and tears down its connection, if any
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if err := m.disconnect(ctx, id); err != nil {
		return err
	}

	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Warn(ctx, "failed to delete session", log.MapFields{
			"call_type": "CloseSessionFailure",
			"session":   id,
			"err":       err.Error(),
		})
		return errors.New(errors.ErrInternal, err)
	}

	m.logger.Info(ctx, "session closed", log.MapFields{
		"call_type": "CloseSessionSuccess",
		"session":   id,
	})
	return nil
}

// CloseAll closes every session
func (m *Manager) CloseAll(ctx context.Context) error {
	for _, s := range m.List() {
		if err := m.Close(ctx, s.ID); err != nil {
			return err
		}
	}
	return nil
}

// Touch bumps the update time of a session
func (m *Manager) Touch(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return errors.Newf(errors.ErrNoActiveSession, "%s", id)
	}
	s.UpdatedAt = m.now()
	snapshot := s.clone()
	m.mu.Unlock()

	return m.persist(ctx, snapshot)
}

// Get returns a copy of the session id
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Newf(errors.ErrNoActiveSession, "%s", id)
	}
	return s.clone(), nil
}

// List returns a copy of every session sorted by id
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s.clone())
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

// Restore loads the sessions kept in the store. Sessions that cannot
// be decoded are skipped
func (m *Manager) Restore(ctx context.Context) (int, error) {
	blobs, err := m.store.List(ctx)
	if err != nil {
		return 0, errors.New(errors.ErrInternal, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	restored := 0
	for _, blob := range blobs {
		s, err := Unmarshal(blob)
		if err != nil {
			m.logger.Warn(ctx, "failed to restore session", log.MapFields{
				"call_type": "RestoreSessionFailure",
				"err":       err.Error(),
			})
			continue
		}

		m.sessions[s.ID] = s
		restored++
	}

	m.logger.Info(ctx, "sessions restored", log.MapFields{
		"call_type": "RestoreSessionsSuccess",
		"count":     restored,
	})
	return restored, nil
}

// Listen starts the connection of a session. It does nothing if the
// session is already listening
func (m *Manager) Listen(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if len(s.ChannelURL) == 0 || s.Key == nil {
		return errors.Newf(errors.ErrInternal, "session %s has no push channel", id)
	}

	status, ok, err := m.status(ctx, id)
	if err != nil {
		return errors.New(errors.ErrInternal, err)
	}
	if ok && !status.Done && status.URL == s.ChannelURL {
		return nil
	}
	if ok {
		if err := m.disconnect(ctx, id); err != nil {
			return err
		}
	}

	err = m.master.Create(ctx, id, &connection{
		id:      id,
		url:     s.ChannelURL,
		key:     s.Key,
		dialer:  m.dialer,
		handler: m.getHandler,
		retry:   m.reconnect,
		logger:  m.logger.ForClass("session", "connection"),
	})
	if err != nil && err != concurrent.ErrWorkerExists {
		return errors.New(errors.ErrInternal, err)
	}

	return nil
}

// EnableConnections starts the connections of every session with a
// push channel
func (m *Manager) EnableConnections(ctx context.Context) error {
	for _, s := range m.List() {
		if len(s.ChannelURL) == 0 || s.Key == nil {
			continue
		}
		if err := m.Listen(ctx, s.ID); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) disconnect(ctx context.Context, id string) error {
	if m.master.IsStopped() {
		return nil
	}

	err := m.master.Destroy(ctx, id)
	if err != nil && err != concurrent.ErrWorkerNotFound {
		return errors.New(errors.ErrInternal, err)
	}
	return nil
}

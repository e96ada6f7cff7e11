package client

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/store"
)

// DefaultPollInterval is how often a connected manager checks for changes.
const DefaultPollInterval = 3 * time.Second

// Options configures a Manager.
type Options struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Local keeps a copy of the cache across restarts. Optional.
	Local store.Store
	// PendingFile keeps the markers of local-only changes across restarts,
	// next to the Local copy. Optional.
	PendingFile string
}

// Manager mirrors the server document in memory. Mutations apply to the
// cache first and are then sent to the server; while the server is
// unreachable they stay local and the whole cache is pushed on recovery.
//
// Conflicts are not merged: the last full fetch wins, and a pull that lands
// after a local edit replaces it. Edits by several clients at once can be lost.
type Manager struct {
	api          *Client
	local        store.Store
	pendingFile  string
	pollInterval time.Duration
	now          func() time.Time

	// op serializes ticks and mutations.
	op sync.Mutex

	mu        sync.RWMutex
	state     State
	doc       *model.Document
	seen      model.Fingerprint
	pending   []Pending
	rejected  error
	user      *model.UserView
	listeners []func(ChangeKind)
}

// NewManager creates a disconnected manager. Call Start before using it.
func NewManager(api *Client, opts Options) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Manager{
		api:          api,
		local:        opts.Local,
		pendingFile:  opts.PendingFile,
		pollInterval: opts.PollInterval,
		now:          time.Now,
		doc:          model.NewDocument(),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Document returns a copy of the cached document.
func (m *Manager) Document() *model.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.Clone()
}

// Pending returns the queued markers of local-only changes.
func (m *Manager) Pending() []Pending {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.pending)
}

// PushError returns why the server last refused the pushed local changes.
// It is cleared by the next successful push.
func (m *Manager) PushError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rejected
}

// OnChange registers fn to be called after every change of the cache.
func (m *Manager) OnChange(fn func(ChangeKind)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) emit(kind ChangeKind) {
	m.mu.RLock()
	listeners := slices.Clone(m.listeners)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(kind)
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()
	if prev != s {
		logs.Logger.WithFields(logrus.Fields{"from": prev.String(), "to": s.String()}).Info("sync state changed")
	}
}

// Start loads the document. When the server cannot deliver it the manager
// continues degraded with the locally stored copy, or with seed data when
// there is none. Local changes left pending by an earlier session are
// restored with the local copy and pushed before anything is pulled.
func (m *Manager) Start(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()
	return m.start(ctx)
}

func (m *Manager) start(ctx context.Context) error {
	if pending := m.loadPending(); len(pending) > 0 {
		if doc, ok := m.readLocal(ctx); ok {
			m.mu.Lock()
			m.doc = doc
			m.pending = pending
			m.mu.Unlock()
			logs.Logger.WithField("pending", len(pending)).Info("restored unsynced local changes")
			m.setState(Degraded)
			m.emit(Pulled)
			m.recover(ctx)
			return nil
		}
		logs.Logger.WithField("pending", len(pending)).Warn("pending changes have no local copy, discarding them")
		m.savePending()
	}

	doc, err := m.api.Data(ctx)
	if err == nil {
		m.replace(ctx, doc)
		m.setState(Connected)
		m.emit(Pulled)
		return nil
	}
	logs.Logger.WithError(err).Warn("initial fetch failed, working offline")

	doc, err = m.loadLocal(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.doc = doc
	m.mu.Unlock()
	m.setState(Degraded)
	m.emit(Pulled)
	return nil
}

func (m *Manager) readLocal(ctx context.Context) (*model.Document, bool) {
	if m.local == nil {
		return nil, false
	}
	doc, err := m.local.Read(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrEmpty) {
			logs.Logger.WithError(err).Warn("local copy unreadable")
		}
		return nil, false
	}
	doc.Normalize()
	return doc, true
}

func (m *Manager) loadLocal(ctx context.Context) (*model.Document, error) {
	if doc, ok := m.readLocal(ctx); ok {
		return doc, nil
	}
	doc, err := model.Seed(m.now())
	if err != nil {
		return nil, err
	}
	m.persist(ctx, doc)
	return doc, nil
}

// replace swaps the whole cache for a server document.
func (m *Manager) replace(ctx context.Context, doc *model.Document) {
	m.mu.Lock()
	m.doc = doc
	m.seen = doc.Fingerprint()
	m.mu.Unlock()
	m.persist(ctx, doc)
	logs.Logger.WithField("lastModified", doc.LastModified).Info("pulled server document")
}

func (m *Manager) persist(ctx context.Context, doc *model.Document) {
	if m.local == nil {
		return
	}
	if _, err := m.local.Write(ctx, doc); err != nil {
		logs.Logger.WithError(err).Warn("failed to store local copy")
	}
}

func (m *Manager) loadPending() []Pending {
	if m.pendingFile == "" {
		return nil
	}
	b, err := os.ReadFile(m.pendingFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logs.Logger.WithError(err).Warn("failed to read pending changes")
		}
		return nil
	}
	var pending []Pending
	if err := json.Unmarshal(b, &pending); err != nil {
		logs.Logger.WithError(err).Warn("pending changes file is corrupt, ignoring it")
		return nil
	}
	return pending
}

// savePending writes the current markers, or removes the file when there are none.
func (m *Manager) savePending() {
	if m.pendingFile == "" {
		return
	}
	m.mu.RLock()
	pending := slices.Clone(m.pending)
	m.mu.RUnlock()

	if len(pending) == 0 {
		if err := os.Remove(m.pendingFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logs.Logger.WithError(err).Warn("failed to remove pending changes file")
		}
		return
	}
	b, err := json.Marshal(pending)
	if err == nil {
		tmp := m.pendingFile + ".tmp"
		if err = os.WriteFile(tmp, b, 0o644); err == nil {
			err = os.Rename(tmp, m.pendingFile)
		}
	}
	if err != nil {
		logs.Logger.WithError(err).Warn("failed to store pending changes")
	}
}

// Run ticks every poll interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one sync step: a change poll when connected, a health check
// (and push of pending changes) when degraded.
func (m *Manager) Tick(ctx context.Context) {
	m.op.Lock()
	defer m.op.Unlock()

	switch m.State() {
	case Disconnected:
		if err := m.start(ctx); err != nil {
			logs.Logger.WithError(err).Error("failed to load document")
		}
	case Connected:
		m.poll(ctx)
	case Degraded:
		m.recover(ctx)
	}
}

// poll pulls the server document when its fingerprint differs from the last one seen.
func (m *Manager) poll(ctx context.Context) {
	fp, err := m.api.Fingerprint(ctx)
	if err != nil {
		m.readFailed(err)
		return
	}
	m.mu.RLock()
	unchanged := fp.Equal(m.seen)
	m.mu.RUnlock()
	if unchanged {
		return
	}

	doc, err := m.api.Data(ctx)
	if err != nil {
		m.readFailed(err)
		return
	}
	m.replace(ctx, doc)
	m.emit(Pulled)
}

// readFailed degrades on connectivity errors. Other errors are retried on the next tick.
func (m *Manager) readFailed(err error) {
	if IsConnectivity(err) {
		logs.Logger.WithError(err).Warn("server unreachable")
		m.setState(Degraded)
		return
	}
	logs.Logger.WithError(err).Warn("poll failed")
}

func (m *Manager) recover(ctx context.Context) {
	if _, err := m.api.Status(ctx); err != nil {
		logs.Logger.WithError(err).Debug("server still unreachable")
		return
	}

	m.mu.RLock()
	pending := len(m.pending)
	doc := m.doc.Clone()
	m.mu.RUnlock()

	if pending > 0 {
		err := m.api.PushData(ctx, doc)
		if err != nil && IsConnectivity(err) {
			logs.Logger.WithError(err).Warn("failed to push local changes")
			return
		}
		m.mu.Lock()
		m.pending = nil
		m.rejected = err
		m.mu.Unlock()
		m.savePending()
		if err != nil {
			// A rejected document is not retried; the server copy is pulled below.
			logs.Logger.WithError(err).WithField("pending", pending).Error("server rejected local changes, discarding them")
		} else {
			logs.Logger.WithField("pending", pending).Info("pushed local changes")
		}
	}

	m.mu.Lock()
	m.seen = model.Fingerprint{}
	m.mu.Unlock()
	m.setState(Connected)
	m.poll(ctx)
}

// degrade switches to local-only mode after a failed write and queues a marker.
func (m *Manager) degrade(op string, err error) {
	logs.Logger.WithError(err).WithField("op", op).Warn("server unreachable, keeping change locally")
	m.mu.Lock()
	m.pending = append(m.pending, Pending{Op: op, At: m.now()})
	m.mu.Unlock()
	m.savePending()
	m.setState(Degraded)
}

// mutate applies local to a copy of the cache and commits it. When connected,
// remote then sends the change; its patch is applied on success, the previous
// cache is restored when the server rejects the change, and a connectivity
// failure keeps the local change and degrades.
func (m *Manager) mutate(ctx context.Context, op string, local func(d *model.Document, now time.Time) error, remote func(ctx context.Context) (patch, error)) error {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	before := m.doc
	work := before.Clone()
	now := m.now()
	if err := local(work, now); err != nil {
		m.mu.Unlock()
		return err
	}
	m.doc = work
	connected := m.state == Connected
	if !connected {
		m.pending = append(m.pending, Pending{Op: op, At: now})
	}
	m.mu.Unlock()
	m.persist(ctx, work)
	if !connected {
		m.savePending()
	}
	m.emit(Local)

	if !connected {
		return nil
	}

	p, err := remote(ctx)
	switch {
	case err == nil:
		m.mu.Lock()
		if p != nil {
			p(m.doc)
		}
		doc := m.doc
		m.mu.Unlock()
		m.persist(ctx, doc)
		return nil
	case IsConnectivity(err):
		m.degrade(op, err)
		return nil
	default:
		m.mu.Lock()
		m.doc = before
		m.mu.Unlock()
		m.persist(ctx, before)
		m.emit(Local)
		return err
	}
}

// Package router implements the single-writer event-router actor: one
// goroutine owns every connected Session, the data-storage Engine, and the
// slot-state Table, folding inbound events in arrival order. Per-connection
// reader/writer tasks (internal/acceptor) are the router's only peers,
// communicating through the bounded Events channel and each session's own
// Writer.
package router

import (
	"context"
	"time"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/seed"
	"github.com/archipelago-mw/aprs-server/internal/session"
	"github.com/archipelago-mw/aprs-server/internal/slotstate"
	"github.com/archipelago-mw/aprs-server/internal/storage"
	"github.com/archipelago-mw/aprs-server/internal/value"
	"github.com/archipelago-mw/aprs-server/pkg/log"
	"github.com/go-co-op/gocron/v2"
)

// Config bundles the server-wide, seed-independent options RoomInfo and the
// handshake report to every connecting client.
type Config struct {
	RequiredPassword    *string
	ServerVersion       protocol.Version
	GeneratorVersion    protocol.Version
	Tags                []string
	Permissions         protocol.Permissions
	HintCost            int
	LocationCheckPoints int

	// EventQueueSize bounds the inbound Events channel.
	EventQueueSize int
	// CheckpointInterval is how often the router checks its dirty flag and,
	// if set, invokes the save callback passed to New — the
	// minimum-interval debounce of §4.H.
	CheckpointInterval time.Duration
}

// Router owns every piece of mutable server state; see package doc.
type Router struct {
	cfg   Config
	world *seed.MultiWorldRecord

	storage *storage.Engine
	slots   *slotstate.Table

	clients map[string]*session.Session

	// clientStatus and hints back the _read_client_status_ and _read_hints_
	// virtual keys; unlike the ordinary table they are never persisted
	// through Engine.Snapshot, so the router keeps them separately and
	// answers them via registered ReadProviders (see readers.go).
	clientStatus map[string]value.Value
	hints        map[string][]value.Value

	events    chan Event
	dirty     bool
	scheduler gocron.Scheduler

	saveFunc func(eng *storage.Engine, slots *slotstate.Table) error
}

// New constructs a Router over a loaded world, its storage engine and slot
// table (freshly seeded, or restored from a persisted snapshot), and a save
// callback invoked by the debounce timer and on shutdown drain.
func New(world *seed.MultiWorldRecord, eng *storage.Engine, slots *slotstate.Table, cfg Config, save func(*storage.Engine, *slotstate.Table) error) *Router {
	if cfg.EventQueueSize <= 0 {
		cfg.EventQueueSize = 256
	}
	r := &Router{
		cfg:          cfg,
		world:        world,
		storage:      eng,
		slots:        slots,
		clients:      make(map[string]*session.Session),
		clientStatus: make(map[string]value.Value),
		hints:        make(map[string][]value.Value),
		events:       make(chan Event, cfg.EventQueueSize),
		saveFunc:     save,
	}
	r.registerReadProviders()

	s, err := gocron.NewScheduler()
	if err != nil {
		log.Errorf("router: could not create gocron scheduler, checkpointing disabled: %v", err)
		return r
	}
	r.scheduler = s
	if cfg.CheckpointInterval > 0 {
		if _, err := s.NewJob(gocron.DurationJob(cfg.CheckpointInterval),
			gocron.NewTask(func() { r.Submit(checkpointTick{}) })); err != nil {
			log.Errorf("router: could not register checkpoint job: %v", err)
		}
	}
	return r
}

// Submit enqueues an event from a connection's reader task. It blocks only
// as long as the router's inbound queue is full, which in practice means a
// router that has fallen behind; callers run this from their own goroutine
// so a momentarily full queue does not stall other connections.
func (r *Router) Submit(ev Event) { r.events <- ev }

// Run processes events until ctx is cancelled, then drains a final save.
// The checkpoint debounce timer itself runs on gocron's own goroutine (see
// New); it only ever submits a checkpointTick event, so the actual
// dirty-flag check and save still happen on this single goroutine.
func (r *Router) Run(ctx context.Context) {
	if r.scheduler != nil {
		r.scheduler.Start()
	}

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

func (r *Router) handle(ev Event) {
	switch e := ev.(type) {
	case ClientAccepted:
		r.clients[e.ID] = e.Session
	case ClientDisconnected:
		if s, ok := r.clients[e.ID]; ok {
			delete(r.clients, e.ID)
			s.State = session.Terminal
		}
	case ClientControl:
		r.handleControl(e)
	case ClientMessage:
		r.handleMessage(e)
	case checkpointTick:
		r.checkpoint()
	default:
		log.Errorf("router: unknown event type %T", ev)
	}
}

func (r *Router) handleControl(e ClientControl) {
	s, ok := r.clients[e.ID]
	if !ok {
		return
	}
	switch e.Control {
	case protocol.ControlPing:
		// the transport layer's own pong handler already answers pings;
		// the router only needs to observe liveness, nothing to do.
	case protocol.ControlClose:
		delete(r.clients, e.ID)
		s.Terminate()
	}
}

func (r *Router) markDirty() { r.dirty = true }

func (r *Router) checkpoint() {
	if !r.dirty || r.saveFunc == nil {
		return
	}
	if err := r.saveFunc(r.storage, r.slots); err != nil {
		log.Errorf("router: checkpoint save failed: %v", err)
		return
	}
	r.dirty = false
}

func (r *Router) shutdown() {
	if r.scheduler != nil {
		if err := r.scheduler.Shutdown(); err != nil {
			log.Errorf("router: scheduler shutdown failed: %v", err)
		}
	}
	for id, s := range r.clients {
		s.Terminate()
		delete(r.clients, id)
	}
	if r.dirty && r.saveFunc != nil {
		if err := r.saveFunc(r.storage, r.slots); err != nil {
			log.Errorf("router: shutdown drain save failed: %v", err)
		}
	}
}

// send delivers msgs to session s, terminating and dropping the session on
// any write error — the writer's own bounded-send-with-deadline is what
// turns a stuck client into this error in the first place.
func (r *Router) send(id string, s *session.Session, msgs ...protocol.ServerMessage) {
	if err := s.Writer.Send(msgs...); err != nil {
		log.Warnf("router: dropping client %s after write error: %v", id, err)
		delete(r.clients, id)
		s.Terminate()
	}
}

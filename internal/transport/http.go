package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/dreamware/rexec/internal/cluster"
)

// Envelope is the JSON body of a mailbox delivery.
type Envelope struct {
	ID      string       `json:"id"`
	Source  cluster.Rank `json:"source"`
	Tag     cluster.Tag  `json:"tag"`
	Payload []byte       `json:"payload"`
}

// HTTP is the transport of a rank running as its own process. Each rank
// serves POST /mailbox, which drops the envelope into its local mailbox,
// and GET /health, which answers 200 once the listener is up.
type HTTP struct {
	self  cluster.Rank
	peers Peers
	box   *Mailbox
	log   *zap.Logger
	ready atomic.Bool
	srv   *http.Server
	seen  recentIDs

	// Delivery is retried while the destination is not yet listening.
	SendAttempts int
	RetryDelay   time.Duration
}

// NewHTTP creates the transport for rank self.
func NewHTTP(self cluster.Rank, peers Peers, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{
		self:         self,
		peers:        peers,
		box:          NewMailbox(),
		seen:         recentIDs{limit: recentEnvelopes},
		log:          logger.With(zap.Int("rank", int(self))),
		SendAttempts: 10,
		RetryDelay:   400 * time.Millisecond,
	}
}

// RegisterRoutes mounts the mailbox and health endpoints on r.
func (h *HTTP) RegisterRoutes(r chi.Router) {
	r.Post("/mailbox", h.handleMailbox)
	r.Get("/health", h.handleHealth)
}

// Handler returns a router serving the transport endpoints.
func (h *HTTP) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

// Start listens on the rank's own address and serves in the background.
func (h *HTTP) Start() error {
	addr, err := h.peers.ListenAddr(h.self)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	h.srv = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	h.ready.Store(true)
	go func() {
		h.log.Info("transport listening", zap.String("addr", addr))
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("transport serve", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops the listener and closes the mailbox.
func (h *HTTP) Shutdown(ctx context.Context) error {
	h.ready.Store(false)
	h.box.Close()
	if h.srv == nil {
		return nil
	}
	return h.srv.Shutdown(ctx)
}

func (h *HTTP) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *HTTP) handleMailbox(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if !h.seen.add(env.ID) {
		h.log.Debug("duplicate envelope dropped", zap.String("id", env.ID))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.box.Put(env.Source, env.Tag, env.Payload); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.log.Debug("envelope queued",
		zap.String("id", env.ID),
		zap.Int("source", int(env.Source)),
		zap.Stringer("tag", env.Tag))
	w.WriteHeader(http.StatusNoContent)
}

// recentEnvelopes is how many delivered envelope IDs a rank remembers.
const recentEnvelopes = 4096

// recentIDs remembers the last limit envelope IDs so a retried POST whose
// first attempt did arrive is not queued twice.
type recentIDs struct {
	mu    sync.Mutex
	limit int
	ids   map[string]struct{}
	order []string
}

// add records id and reports whether it was new. Empty IDs are always new.
func (r *recentIDs) add(id string) bool {
	if id == "" {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	if r.ids == nil {
		r.ids = make(map[string]struct{})
	}
	if r.limit > 0 && len(r.order) >= r.limit {
		delete(r.ids, r.order[0])
		r.order = r.order[1:]
	}
	r.ids[id] = struct{}{}
	r.order = append(r.order, id)
	return true
}

// Send posts payload to dest's mailbox. Connection failures are retried
// SendAttempts times; an HTTP error status from the peer is not. Every
// attempt carries the same envelope ID, which the receiver uses to drop
// redeliveries.
func (h *HTTP) Send(ctx context.Context, payload []byte, dest cluster.Rank, tag cluster.Tag) error {
	base, err := h.peers.URL(dest)
	if err != nil {
		return err
	}
	env := Envelope{ID: uuid.NewString(), Source: h.self, Tag: tag, Payload: payload}

	attempts := h.SendAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = cluster.PostJSON(ctx, base+"/mailbox", env, nil)
		if lastErr == nil {
			return nil
		}
		var statusErr *cluster.StatusError
		if errors.As(lastErr, &statusErr) || ctx.Err() != nil {
			break
		}
		h.log.Debug("send retry", zap.Int("dest", int(dest)), zap.Int("attempt", i+1), zap.Error(lastErr))
		select {
		case <-time.After(h.RetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("send to rank %d: %w", int(dest), lastErr)
}

// Recv waits on the local mailbox.
func (h *HTTP) Recv(ctx context.Context, tag cluster.Tag, source cluster.Rank) ([]byte, cluster.Rank, error) {
	return h.box.Take(ctx, tag, source)
}

package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/hoststore"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source is the host tree the server exposes. *host.Session satisfies it.
type Source interface {
	Snapshot() *hoststore.Snapshot
	Subscribe(fn func(*hoststore.Snapshot)) (unsubscribe func())
}

// Server serves read-only debug views of a host session.
type Server struct {
	Source   Source
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves metrics from g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the debug HTTP handler for src.
func NewHandler(src Source, opts ...Option) http.Handler {
	s := &Server{
		Source:   src,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/tree", s.GetTree)
	r.Get("/events", s.SubscribeEvents)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// NodeView is the JSON form of a tree node.
type NodeView struct {
	ID            int64            `json:"id"`
	Type          string           `json:"type"`
	Text          string           `json:"text,omitempty"`
	Props         map[string]any   `json:"props,omitempty"`
	Children      []int64          `json:"children,omitempty"`
	NamedChildren map[string]int64 `json:"namedChildren,omitempty"`
}

// ToastView is the JSON form of a toast.
type ToastView struct {
	ID      int64  `json:"id"`
	Style   string `json:"style"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// TreeView is the JSON form of a snapshot. Nodes and toasts are ordered by id.
type TreeView struct {
	Version   uint64      `json:"version"`
	Root      int64       `json:"root"`
	Items     []int64     `json:"items"`
	Selected  int64       `json:"selected"`
	Primary   int64       `json:"primary"`
	Secondary int64       `json:"secondary"`
	Nodes     []NodeView  `json:"nodes"`
	Toasts    []ToastView `json:"toasts"`
}

// View converts a snapshot to its JSON form.
func View(snap *hoststore.Snapshot) TreeView {
	v := TreeView{
		Version:   snap.Version,
		Root:      snap.Root,
		Items:     orEmpty(snap.Items),
		Selected:  snap.Selected,
		Primary:   snap.Primary,
		Secondary: snap.Secondary,
		Nodes:     make([]NodeView, 0, len(snap.Nodes)),
		Toasts:    make([]ToastView, 0, len(snap.Toasts)),
	}
	for _, id := range slices.Sorted(maps.Keys(snap.Nodes)) {
		n := snap.Nodes[id]
		v.Nodes = append(v.Nodes, NodeView{
			ID:            n.ID,
			Type:          n.Kind,
			Text:          n.Text,
			Props:         n.Props,
			Children:      n.Children,
			NamedChildren: n.NamedChildren,
		})
	}
	for _, id := range slices.Sorted(maps.Keys(snap.Toasts)) {
		t := snap.Toasts[id]
		v.Toasts = append(v.Toasts, ToastView{ID: t.ID, Style: t.Style, Title: t.Title, Message: t.Message})
	}
	return v
}

// GetTree handles GET /tree.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(View(s.Source.Snapshot())); err != nil {
		s.logger.Error("tree response encode failed", "err", err)
	}
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"app":     "lattice-host",
		"version": lattice.Version,
	})
}

// eventBuffer is how many snapshots a slow client may lag before updates
// are dropped.
const eventBuffer = 10

// SubscribeEvents handles GET /events: a server-sent event per snapshot with
// its version, root and selection.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("streaming not supported")
		return
	}

	ch := make(chan *hoststore.Snapshot, eventBuffer)
	unsubscribe := s.Source.Subscribe(func(snap *hoststore.Snapshot) {
		select {
		case ch <- snap:
		default:
			s.logger.Warn("events client buffer full, dropping update", "version", snap.Version)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("events client disconnected")
			return
		case snap := <-ch:
			data, err := json.Marshal(map[string]any{
				"version":  snap.Version,
				"root":     snap.Root,
				"selected": snap.Selected,
				"items":    orEmpty(snap.Items),
			})
			if err != nil {
				s.logger.Error("event encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: tree\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func orEmpty(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/appforge/internal/metrics"
)

// Sender delivers one event to one observer.
type Sender interface {
	Send(Event) error
}

type client struct {
	sender Sender
}

// Hub tracks observers per project. The mutex guards the client sets only.
// Senders must be safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*client]struct{}
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(m *metrics.Metrics, logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		metrics: m,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// Register adds an observer for projectID and returns its unregister func.
// Calling the func more than once is harmless.
func (h *Hub) Register(projectID string, s Sender) func() {
	c := &client{sender: s}

	h.mu.Lock()
	set, ok := h.clients[projectID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[projectID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.metrics.AddObservers(1)
	h.logger.Debug().Str("project_id", projectID).Msg("observer registered")

	return func() {
		h.mu.Lock()
		removed := h.removeLocked(projectID, c)
		h.mu.Unlock()
		if removed {
			h.logger.Debug().Str("project_id", projectID).Msg("observer unregistered")
		}
	}
}

func (h *Hub) removeLocked(projectID string, c *client) bool {
	set, ok := h.clients[projectID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, projectID)
	}
	h.metrics.AddObservers(-1)
	return true
}

// Broadcast sends ev to every observer of projectID and returns how many
// received it. Observers whose send fails are dropped. Sends happen outside
// the lock, so a slow observer does not stall other projects.
func (h *Hub) Broadcast(projectID string, ev Event) int {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients[projectID]))
	for c := range h.clients[projectID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	delivered := 0
	var failed []*client
	for _, c := range targets {
		if err := c.sender.Send(ev); err != nil {
			h.logger.Debug().Err(err).Str("project_id", projectID).Msg("dropping observer")
			failed = append(failed, c)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, c := range failed {
			h.removeLocked(projectID, c)
		}
		h.mu.Unlock()
	}
	return delivered
}

// Count returns the number of observers of projectID.
func (h *Hub) Count(projectID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[projectID])
}

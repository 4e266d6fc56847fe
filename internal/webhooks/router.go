package webhooks

import (
	"strings"
	"sync"
)

const (
	defaultSubscriberCapacity = 100
	defaultBacklogLimit       = 50
	defaultDedupeWindow       = 1024
)

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// Router delivers webhook events to per-resource subscribers with buffering,
// deduplication, and bounded channel semantics. Subscriptions are keyed by
// Asana object GID, so a workflow step can watch its own onboarding task.
type Router struct {
	mu           sync.RWMutex
	subscribers  map[string]map[*subscriber]struct{}
	backlog      map[string][]Event
	recentKeys   map[string]struct{}
	recentOrder  []string
	channelSize  int
	backlogLimit int
	dedupeWindow int
	logger       Logger
}

// Subscription represents an active resource subscription.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRouter constructs a router with sane defaults.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		subscribers:  map[string]map[*subscriber]struct{}{},
		backlog:      map[string][]Event{},
		recentKeys:   map[string]struct{}{},
		recentOrder:  make([]string, 0, defaultDedupeWindow),
		channelSize:  defaultSubscriberCapacity,
		backlogLimit: defaultBacklogLimit,
		dedupeWindow: defaultDedupeWindow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RouterWithLogger injects a logger for drop/diagnostic messages.
func RouterWithLogger(logger Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// RouterWithSubscriberCapacity overrides the buffered channel size per subscriber.
func RouterWithSubscriberCapacity(cap int) RouterOption {
	return func(r *Router) {
		if cap > 0 {
			r.channelSize = cap
		}
	}
}

// RouterWithBacklogLimit overrides the backlog size for pre-subscription buffering.
func RouterWithBacklogLimit(limit int) RouterOption {
	return func(r *Router) {
		if limit > 0 {
			r.backlogLimit = limit
		}
	}
}

// RouterWithDedupeWindow controls how many recent event keys are retained.
func RouterWithDedupeWindow(size int) RouterOption {
	return func(r *Router) {
		if size > 0 {
			r.dedupeWindow = size
		}
	}
}

// Subscribe registers for events keyed by Asana object GID.
func (r *Router) Subscribe(resourceGID string) Subscription {
	gid := normalizeGID(resourceGID)
	sub := newSubscriber(r.channelSize, r.logger)
	var backlog []Event
	r.mu.Lock()
	if r.subscribers[gid] == nil {
		r.subscribers[gid] = map[*subscriber]struct{}{}
	}
	r.subscribers[gid][sub] = struct{}{}
	if existing := r.backlog[gid]; len(existing) > 0 {
		backlog = append(backlog, existing...)
		delete(r.backlog, gid)
	}
	r.mu.Unlock()
	for _, event := range backlog {
		sub.deliver(event)
	}
	return Subscription{
		Events: sub.channel(),
		cancel: func() {
			r.removeSubscriber(gid, sub)
		},
	}
}

// HandleEvent satisfies the EventProcessor interface.
func (r *Router) HandleEvent(event Event) error {
	r.Route(event)
	return nil
}

// Route delivers the event to subscribers or buffers it when no subscriber
// exists yet. Events on a subtask route to the parent task's subscribers when
// nobody watches the subtask itself.
func (r *Router) Route(event Event) {
	if key := event.Key(); key != "" && r.isDuplicate(key) {
		return
	}
	gid := normalizeGID(event.Resource.GID)
	if gid == "" {
		return
	}
	r.mu.RLock()
	subs := r.snapshotSubscribers(gid)
	if len(subs) == 0 && event.Parent != nil {
		if parent := normalizeGID(event.Parent.GID); parent != "" {
			subs = r.snapshotSubscribers(parent)
			if len(subs) > 0 {
				gid = parent
			}
		}
	}
	r.mu.RUnlock()
	if len(subs) == 0 {
		r.bufferEvent(gid, event)
		return
	}
	for _, sub := range subs {
		sub.deliver(event)
	}
}

func (r *Router) snapshotSubscribers(gid string) []*subscriber {
	live := r.subscribers[gid]
	if len(live) == 0 {
		return nil
	}
	items := make([]*subscriber, 0, len(live))
	for sub := range live {
		items = append(items, sub)
	}
	return items
}

func (r *Router) removeSubscriber(gid string, sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs := r.subscribers[gid]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(r.subscribers, gid)
		}
	}
	sub.close()
}

func (r *Router) bufferEvent(gid string, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.backlog[gid]
	if len(queue) >= r.backlogLimit {
		queue = queue[1:]
		if r.logger != nil {
			r.logger.Printf("webhooks: backlog drop for %s (limit %d)", gid, r.backlogLimit)
		}
	}
	queue = append(queue, event)
	r.backlog[gid] = queue
}

func (r *Router) isDuplicate(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recentKeys[key]; ok {
		return true
	}
	r.recentKeys[key] = struct{}{}
	r.recentOrder = append(r.recentOrder, key)
	if len(r.recentOrder) > r.dedupeWindow {
		oldest := r.recentOrder[0]
		r.recentOrder = r.recentOrder[1:]
		delete(r.recentKeys, oldest)
	}
	return false
}

func normalizeGID(gid string) string {
	return strings.TrimSpace(gid)
}

type subscriber struct {
	ch      chan Event
	logger  Logger
	closed  bool
	closeMu sync.Mutex
}

func newSubscriber(capacity int, logger Logger) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &subscriber{
		ch:     make(chan Event, capacity),
		logger: logger,
	}
}

func (s *subscriber) channel() <-chan Event {
	return s.ch
}

func (s *subscriber) deliver(event Event) {
	if s.isClosed() {
		return
	}
	select {
	case s.ch <- event:
		return
	default:
		oldest := <-s.ch
		if shouldDropOldest(oldest, event) {
			s.logDrop(oldest, "queue overflow")
			s.ch <- event
		} else {
			s.ch <- oldest
			s.logDrop(event, "queue overflow:incoming")
		}
	}
}

func (s *subscriber) logDrop(event Event, reason string) {
	if s.logger == nil {
		return
	}
	s.logger.Printf("webhooks: dropped %s on %s (%s)", event.Action, event.Resource.GID, reason)
}

func (s *subscriber) close() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.closeMu.Unlock()
}

func (s *subscriber) isClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

// shouldDropOldest decides which event to discard when a subscriber queue is
// full. Deletions and membership removals must not be lost; routine field
// changes are the first to go.
func shouldDropOldest(oldest, incoming Event) bool {
	oldestCritical := isCriticalAction(oldest.Action)
	incomingCritical := isCriticalAction(incoming.Action)
	switch {
	case oldestCritical && !incomingCritical:
		return false
	case !oldestCritical && incomingCritical:
		return true
	}
	oldestPreferred := isPreferredDrop(oldest.Action)
	incomingPreferred := isPreferredDrop(incoming.Action)
	if oldestPreferred && !incomingPreferred {
		return true
	}
	if !oldestPreferred && incomingPreferred {
		return false
	}
	return true
}

func isCriticalAction(action string) bool {
	action = strings.ToLower(strings.TrimSpace(action))
	return action == "deleted" || action == "removed"
}

func isPreferredDrop(action string) bool {
	return strings.ToLower(strings.TrimSpace(action)) == "changed"
}

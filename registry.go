package circl

import (
	"sync"

	"github.com/google/uuid"
)

type listenerKind int

const (
	kindMessage listenerKind = iota
	kindTyping
	kindNewMessage
	kindConversationUpdate
)

// listenerList keeps callbacks in registration order with O(1) removal by id.
// Removed ids stay in order until enough of them pile up to compact.
type listenerList[T any] struct {
	byID  map[uuid.UUID]func(T)
	order []uuid.UUID
}

func (l *listenerList[T]) add(id uuid.UUID, fn func(T)) {
	if l.byID == nil {
		l.byID = make(map[uuid.UUID]func(T))
	}
	l.byID[id] = fn
	l.order = append(l.order, id)
}

func (l *listenerList[T]) remove(id uuid.UUID) bool {
	if _, ok := l.byID[id]; !ok {
		return false
	}
	delete(l.byID, id)
	if len(l.order) > 2*len(l.byID)+8 {
		l.compact()
	}
	return true
}

func (l *listenerList[T]) compact() {
	kept := l.order[:0]
	for _, id := range l.order {
		if _, ok := l.byID[id]; ok {
			kept = append(kept, id)
		}
	}
	clear(l.order[len(kept):])
	l.order = kept
}

func (l *listenerList[T]) snapshot() []func(T) {
	out := make([]func(T), 0, len(l.byID))
	for _, id := range l.order {
		if fn, ok := l.byID[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (l *listenerList[T]) reset() {
	l.byID = nil
	l.order = nil
}

// listenerRegistry is the dispatch table: one ordered listener list per kind.
type listenerRegistry struct {
	mu    sync.RWMutex
	kinds map[uuid.UUID]listenerKind

	messages            listenerList[Message]
	typing              listenerList[TypingUpdate]
	newMessages         listenerList[NewMessage]
	conversationUpdates listenerList[ConversationUpdate]
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		kinds: make(map[uuid.UUID]listenerKind),
	}
}

func subscribe[T any](r *listenerRegistry, kind listenerKind, list *listenerList[T], fn func(T)) Subscription {
	id := uuid.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds[id] = kind
	list.add(id, fn)
	return Subscription{id: id, registry: r}
}

func snapshot[T any](r *listenerRegistry, list *listenerList[T]) []func(T) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return list.snapshot()
}

func (r *listenerRegistry) remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind, ok := r.kinds[id]
	if !ok {
		return false
	}
	delete(r.kinds, id)

	switch kind {
	case kindMessage:
		return r.messages.remove(id)
	case kindTyping:
		return r.typing.remove(id)
	case kindNewMessage:
		return r.newMessages.remove(id)
	case kindConversationUpdate:
		return r.conversationUpdates.remove(id)
	}
	return false
}

// len reports the number of live registrations across all kinds.
func (r *listenerRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kinds)
}

func (r *listenerRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.kinds)
	r.messages.reset()
	r.typing.reset()
	r.newMessages.reset()
	r.conversationUpdates.reset()
}

// Subscription is the handle returned by the On* methods.
type Subscription struct {
	id       uuid.UUID
	registry *listenerRegistry
}

// ID identifies the registration; it can be passed to Client.Unsubscribe.
func (s Subscription) ID() uuid.UUID {
	return s.id
}

// Unsubscribe removes this registration. It reports whether the registration
// was still live; calling it again is a no-op.
func (s Subscription) Unsubscribe() bool {
	if s.registry == nil {
		return false
	}
	return s.registry.remove(s.id)
}

package circl

import "sync"

// Group collects the subscriptions of one consumer so they can be released
// together, e.g. when a chat view goes away. The zero value is ready to use.
type Group struct {
	mu   sync.Mutex
	subs []Subscription
}

// Add tracks s and returns it unchanged.
func (g *Group) Add(s Subscription) Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs = append(g.subs, s)
	return s
}

// Len reports how many subscriptions the group tracks.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// Close unsubscribes everything added so far. The group can be reused.
func (g *Group) Close() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

package syncmanager

import "context"

// State is the lifecycle of the latest push, pull or sync of a collection.
type State string

const (
	StateIdle     State = "IDLE"
	StatePushing  State = "PUSHING"
	StatePushDone State = "PUSH_DONE"
	StatePulling  State = "PULLING"
	StateDone     State = "DONE"
	StateFailed   State = "FAILED"
)

// State reports the latest state of collection, IDLE when nothing ran yet.
func (m *Manager) State(collection string) State {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	if s, ok := m.shared.states[collection]; ok {
		return s
	}
	return StateIdle
}

func (m *Manager) SetState(ctx context.Context, collection string, s State) {
	m.shared.mu.Lock()
	prev := m.shared.states[collection]
	m.shared.states[collection] = s
	observer := m.shared.observer
	m.shared.mu.Unlock()

	if prev != s {
		m.logger.Debug(ctx, "sync state", "collection", collection, "from", prev, "to", s)
	}
	if observer != nil {
		observer(collection, s)
	}
}

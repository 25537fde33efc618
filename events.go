package xpbd

const (
	COLLISION_ENTER EventType = iota
	COLLISION_STAY
	COLLISION_EXIT
)

type EventType uint8

func (t EventType) String() string {
	switch t {
	case COLLISION_ENTER:
		return "CollisionEnter"
	case COLLISION_STAY:
		return "CollisionStay"
	case COLLISION_EXIT:
		return "CollisionExit"
	default:
		return "Unknown"
	}
}

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

type CollisionEnterEvent struct {
	BodyA BodyID
	BodyB BodyID
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

type CollisionStayEvent struct {
	BodyA BodyID
	BodyB BodyID
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

type CollisionExitEvent struct {
	BodyA BodyID
	BodyB BodyID
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

// EventListener - callback for events
type EventListener func(event Event)

// Events dispatches the collision events of a frame once all its substeps are solved
type Events struct {
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	// Pairs in contact during the previous and the current frame
	previousActivePairs *PairSet
	currentActivePairs  *PairSet
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 64),
		previousActivePairs: NewPairSet(),
		currentActivePairs:  NewPairSet(),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordCollision marks the pair as in contact during the current frame
func (e *Events) recordCollision(a, b BodyID) {
	e.currentActivePairs.Add(a, b)
}

// forget drops a removed body from the tracked pairs, without an exit event
func (e *Events) forget(id BodyID) {
	e.previousActivePairs.RemoveBody(id)
	e.currentActivePairs.RemoveBody(id)
}

// processCollisionEvents compares current and previous pairs to detect Enter/Stay/Exit
func (e *Events) processCollisionEvents() {
	for _, pair := range e.currentActivePairs.Pairs() {
		if e.previousActivePairs.Contains(pair.A, pair.B) {
			e.buffer = append(e.buffer, CollisionStayEvent{BodyA: pair.A, BodyB: pair.B})
		} else {
			e.buffer = append(e.buffer, CollisionEnterEvent{BodyA: pair.A, BodyB: pair.B})
		}
	}

	for _, pair := range e.previousActivePairs.Pairs() {
		if !e.currentActivePairs.Contains(pair.A, pair.B) {
			e.buffer = append(e.buffer, CollisionExitEvent{BodyA: pair.A, BodyB: pair.B})
		}
	}

	// Swap for next frame and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	e.currentActivePairs.Clear()
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processCollisionEvents()

	for _, event := range e.buffer {
		for _, listener := range e.listeners[event.Type()] {
			listener(event)
		}
	}
	e.buffer = e.buffer[:0]
}

// activePairs returns the pairs in contact during the last flushed frame
func (e *Events) activePairs() []CollisionPair {
	return e.previousActivePairs.Pairs()
}

// clone copies the tracked pairs; listeners are not shared
func (e *Events) clone() Events {
	clone := NewEvents()
	for _, pair := range e.previousActivePairs.Pairs() {
		clone.previousActivePairs.Add(pair.A, pair.B)
	}

	return clone
}

package xpbd

import (
	"testing"

	"github.com/akmonengine/xpbd/actor"
	"github.com/go-gl/mathgl/mgl64"
)

type eventCapture struct {
	events []Event
}

func (ec *eventCapture) capture(event Event) {
	ec.events = append(ec.events, event)
}

func (ec *eventCapture) reset() {
	ec.events = ec.events[:0]
}

func (ec *eventCapture) count() int {
	return len(ec.events)
}

func (ec *eventCapture) countType(eventType EventType) int {
	n := 0
	for _, e := range ec.events {
		if e.Type() == eventType {
			n++
		}
	}
	return n
}

func subscribeAll(events *Events, capture *eventCapture) {
	events.Subscribe(COLLISION_ENTER, capture.capture)
	events.Subscribe(COLLISION_STAY, capture.capture)
	events.Subscribe(COLLISION_EXIT, capture.capture)
}

// =============================================================================
// Subscribe and Listeners Tests
// =============================================================================

func TestEventType_String(t *testing.T) {
	tests := map[EventType]string{
		COLLISION_ENTER: "CollisionEnter",
		COLLISION_STAY:  "CollisionStay",
		COLLISION_EXIT:  "CollisionExit",
		EventType(42):   "Unknown",
	}
	for eventType, want := range tests {
		if got := eventType.String(); got != want {
			t.Errorf("EventType(%d).String() = %q, want %q", eventType, got, want)
		}
	}
}

func TestEvents_MultipleListeners(t *testing.T) {
	events := NewEvents()
	capture1 := &eventCapture{}
	capture2 := &eventCapture{}

	events.Subscribe(COLLISION_ENTER, capture1.capture)
	events.Subscribe(COLLISION_ENTER, capture2.capture)

	if len(events.listeners[COLLISION_ENTER]) != 2 {
		t.Errorf("Expected 2 listeners for COLLISION_ENTER, got %d", len(events.listeners[COLLISION_ENTER]))
	}

	events.recordCollision(1, 2)
	events.flush()

	if capture1.count() != 1 || capture2.count() != 1 {
		t.Errorf("Expected 1 event per listener, got %d and %d", capture1.count(), capture2.count())
	}
}

// =============================================================================
// Enter / Stay / Exit
// =============================================================================

func TestEvents_EnterStayExit(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	subscribeAll(&events, capture)

	// Frame 1: first contact, recorded by several substeps
	events.recordCollision(2, 1)
	events.recordCollision(1, 2)
	events.flush()

	if capture.count() != 1 {
		t.Fatalf("frame 1: %d events, want 1", capture.count())
	}
	enter, ok := capture.events[0].(CollisionEnterEvent)
	if !ok || enter.BodyA != 1 || enter.BodyB != 2 {
		t.Errorf("frame 1: event = %#v, want CollisionEnterEvent{1, 2}", capture.events[0])
	}

	// Frame 2: still in contact
	capture.reset()
	events.recordCollision(1, 2)
	events.flush()
	if capture.count() != 1 || capture.countType(COLLISION_STAY) != 1 {
		t.Errorf("frame 2: events = %v, want one CollisionStay", capture.events)
	}

	// Frame 3: separated
	capture.reset()
	events.flush()
	if capture.count() != 1 || capture.countType(COLLISION_EXIT) != 1 {
		t.Errorf("frame 3: events = %v, want one CollisionExit", capture.events)
	}

	// Frame 4: nothing left to report
	capture.reset()
	events.flush()
	if capture.count() != 0 {
		t.Errorf("frame 4: events = %v, want none", capture.events)
	}
}

func TestEvents_EnterExitEnter(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	subscribeAll(&events, capture)

	frames := []bool{true, false, true}
	want := []EventType{COLLISION_ENTER, COLLISION_EXIT, COLLISION_ENTER}
	for i, touching := range frames {
		capture.reset()
		if touching {
			events.recordCollision(3, 4)
		}
		events.flush()

		if capture.count() != 1 || capture.events[0].Type() != want[i] {
			t.Errorf("frame %d: events = %v, want %v", i, capture.events, want[i])
		}
	}
}

func TestEvents_Forget(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	subscribeAll(&events, capture)

	events.recordCollision(1, 2)
	events.recordCollision(2, 3)
	events.flush()

	capture.reset()
	events.forget(2)
	events.flush()

	if capture.count() != 0 {
		t.Errorf("events = %v, a removed body must not produce exit events", capture.events)
	}
	if len(events.activePairs()) != 0 {
		t.Errorf("activePairs() = %v, want none", events.activePairs())
	}
}

func TestEvents_NoListeners(t *testing.T) {
	events := NewEvents()
	events.recordCollision(1, 2)
	events.flush()

	if len(events.buffer) != 0 {
		t.Errorf("buffer holds %d events after flush, want 0", len(events.buffer))
	}
}

func TestEvents_Clone(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	subscribeAll(&events, capture)

	events.recordCollision(1, 2)
	events.flush()

	clone := events.clone()
	if len(clone.listeners) != 0 {
		t.Error("listeners must not be cloned")
	}

	cloneCapture := &eventCapture{}
	subscribeAll(&clone, cloneCapture)
	clone.recordCollision(1, 2)
	clone.flush()
	if cloneCapture.count() != 1 || cloneCapture.countType(COLLISION_STAY) != 1 {
		t.Errorf("clone events = %v, want one CollisionStay", cloneCapture.events)
	}

	// The source is untouched by the clone
	capture.reset()
	events.flush()
	if capture.countType(COLLISION_EXIT) != 1 {
		t.Errorf("events = %v, want one CollisionExit", capture.events)
	}
}

// =============================================================================
// Events dispatched by the step loop
// =============================================================================

func TestSimulation_EventsOfAnElasticCollision(t *testing.T) {
	config := DefaultConfig()
	config.Gravity = mgl64.Vec3{}
	s := newTestSimulation(t, config)

	capture := &eventCapture{}
	subscribeAll(&s.Events, capture)

	a := createSphere(mgl64.Vec3{-1.013, 0, 0}, 0.5, actor.BodyTypeDynamic)
	a.Velocity = mgl64.Vec3{2, 0, 0}
	b := createSphere(mgl64.Vec3{1, 0, 0}, 0.5, actor.BodyTypeDynamic)
	b.Velocity = mgl64.Vec3{-2, 0, 0}
	mustAdd(t, s, a)
	mustAdd(t, s, b)

	enterFrame, exitFrame := -1, -1
	for frame := 0; frame < 40; frame++ {
		capture.reset()
		s.Update()

		for _, event := range capture.events {
			switch event.Type() {
			case COLLISION_ENTER:
				enterFrame = frame
			case COLLISION_EXIT:
				exitFrame = frame
			case COLLISION_STAY:
				t.Errorf("frame %d: unexpected %v", frame, event)
			}
		}
	}

	if enterFrame < 0 || exitFrame != enterFrame+1 {
		t.Errorf("enter at frame %d, exit at frame %d, want an exit right after the enter", enterFrame, exitFrame)
	}
}

func TestSimulation_EventsOfARestingContact(t *testing.T) {
	s := newTestSimulation(t, DefaultConfig())
	capture := &eventCapture{}
	subscribeAll(&s.Events, capture)

	ground := mustAdd(t, s, inelastic(createGround()))
	sphere := mustAdd(t, s, inelastic(createSphere(mgl64.Vec3{0, 0, 0.99}, 1, actor.BodyTypeDynamic)))

	s.Update()
	if capture.count() != 1 || capture.countType(COLLISION_ENTER) != 1 {
		t.Fatalf("first frame: events = %v, want one CollisionEnter", capture.events)
	}
	want := []CollisionPair{MakeCollisionPair(ground, sphere)}
	if got := s.Collisions(); len(got) != 1 || got[0] != want[0] {
		t.Errorf("Collisions() = %v, want %v", got, want)
	}

	for frame := 1; frame < 10; frame++ {
		capture.reset()
		s.Update()
		if capture.count() != 1 || capture.countType(COLLISION_STAY) != 1 {
			t.Fatalf("frame %d: events = %v, want one CollisionStay", frame, capture.events)
		}
	}

	// Teleported away: the contact ends
	body, _ := s.Body(sphere)
	body.Transform.Position = mgl64.Vec3{0, 0, 50}
	body.Velocity = mgl64.Vec3{}

	capture.reset()
	s.Update()
	if capture.count() != 1 || capture.countType(COLLISION_EXIT) != 1 {
		t.Errorf("after teleport: events = %v, want one CollisionExit", capture.events)
	}
	if len(s.Collisions()) != 0 {
		t.Errorf("Collisions() = %v, want none", s.Collisions())
	}
}

package newton

// TriggerPhase tells where a body stands relative to a trigger volume
type TriggerPhase uint8

const (
	TriggerEnter TriggerPhase = iota
	TriggerInside
	TriggerExit
)

func (p TriggerPhase) String() string {
	switch p {
	case TriggerEnter:
		return "enter"
	case TriggerInside:
		return "inside"
	case TriggerExit:
		return "exit"
	}
	return "unknown"
}

// TriggerListener is called after the step for every overlap change of a
// trigger body with another body
type TriggerListener func(trigger, other *Body, phase TriggerPhase)

type triggerPair struct {
	trigger *Body
	other   *Body
}

type triggerEvent struct {
	pair  triggerPair
	phase TriggerPhase
}

// triggerEvents tracks trigger overlaps across steps: the first step of an
// overlap reports Enter only, the following ones Inside, and the first step
// without overlap Exit.
type triggerEvents struct {
	listener TriggerListener

	previousActivePairs map[triggerPair]bool
	currentActivePairs  map[triggerPair]bool
	order               []triggerPair

	buffer []triggerEvent
}

func newTriggerEvents() triggerEvents {
	return triggerEvents{
		previousActivePairs: make(map[triggerPair]bool),
		currentActivePairs:  make(map[triggerPair]bool),
	}
}

// record separates trigger overlaps from the contacts that need a response
func (e *triggerEvents) record(contacts []*ContactJoint) []*ContactJoint {
	n := 0
	for _, c := range contacts {
		switch {
		case c.BodyA.trigger:
			e.mark(triggerPair{trigger: c.BodyA, other: c.BodyB})
		case c.BodyB.trigger:
			e.mark(triggerPair{trigger: c.BodyB, other: c.BodyA})
		default:
			contacts[n] = c
			n++
		}
	}
	return contacts[:n]
}

func (e *triggerEvents) mark(pair triggerPair) {
	if !e.currentActivePairs[pair] {
		e.currentActivePairs[pair] = true
		e.order = append(e.order, pair)
	}
}

// process compares the overlaps of this step with the previous one
func (e *triggerEvents) process() {
	for _, pair := range e.order {
		if e.previousActivePairs[pair] {
			e.buffer = append(e.buffer, triggerEvent{pair: pair, phase: TriggerInside})
		} else {
			e.buffer = append(e.buffer, triggerEvent{pair: pair, phase: TriggerEnter})
		}
	}
	for pair := range e.previousActivePairs {
		if !e.currentActivePairs[pair] {
			e.buffer = append(e.buffer, triggerEvent{pair: pair, phase: TriggerExit})
		}
	}

	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
	e.order = e.order[:0]
}

// flush sends all buffered events and clears the buffer
func (e *triggerEvents) flush() {
	e.process()
	for _, event := range e.buffer {
		if e.listener != nil && !event.pair.trigger.destroyed && !event.pair.other.destroyed {
			e.listener(event.pair.trigger, event.pair.other, event.phase)
		}
	}
	e.buffer = e.buffer[:0]
}

// forget drops every pair involving body
func (e *triggerEvents) forget(body *Body) {
	for pair := range e.previousActivePairs {
		if pair.trigger == body || pair.other == body {
			delete(e.previousActivePairs, pair)
		}
	}
	for pair := range e.currentActivePairs {
		if pair.trigger == body || pair.other == body {
			delete(e.currentActivePairs, pair)
		}
	}
	n := 0
	for _, pair := range e.order {
		if pair.trigger != body && pair.other != body {
			e.order[n] = pair
			n++
		}
	}
	e.order = e.order[:n]
}

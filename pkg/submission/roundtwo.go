package submission

import (
	"fmt"

	"github.com/ffportal/ffsubmit/pkg/schema"
)

// enterRoundTwo rebuilds contexts of queued keys with second-round fields only,
// from their submitted records, and activates the first of them.
func (o *Orchestrator) enterRoundTwo() {
	o.roundTwo = true
	queue := o.reg.RoundTwoQueue()
	for _, k := range queue {
		s, err := o.set.Lookup(o.reg.Type(k))
		if err != nil {
			panic(fmt.Sprintf("queued key %s has no schema: %s", k, err))
		}
		record, _ := o.reg.Record(k)
		o.reg.contexts[k] = Context(schema.Filter(s, record, o.filterOption(true)))
		o.reg.setValidity(k, NotReady)
	}
	o.active = queue[0]
	o.logger.Printf("round two: %d object(s) waiting", len(queue))
}

// finishRoundTwo marks key Submitted and drops it from the queue.
//
// It returns the @id of the root when the queue gets empty (the session is finalized),
// or "" when the next queued key is activated.
func (o *Orchestrator) finishRoundTwo(key Key) string {
	o.reg.setValidity(key, Submitted)
	o.reg.dequeue(key)
	if len(o.reg.roundTwo) == 0 {
		id, _ := o.reg.CompletionOf(Root)
		o.finalize(id)
		return id
	}
	o.active = o.reg.roundTwo[0]
	return ""
}

// FinishRoundTwo completes the active round-two object.
//
// # Returns
//
// - string: @id of the root when this completes the session, or "".
//
// - error: ErrNotRoundTwo if the active key is not waiting for round two.
func (o *Orchestrator) FinishRoundTwo() (string, error) {
	o.mux.Lock()
	defer o.mux.Unlock()
	if err := o.guard(); err != nil {
		return "", err
	}
	if !o.roundTwo || !o.reg.InRoundTwo(o.active) {
		return "", fmt.Errorf("%w: %s", ErrNotRoundTwo, o.active)
	}
	return o.finishRoundTwo(o.active), nil
}

// SkipRoundTwo leaves the active round-two object as it is submitted in round one,
// and moves on.
func (o *Orchestrator) SkipRoundTwo() (string, error) {
	o.mux.Lock()
	defer o.mux.Unlock()
	if err := o.guard(); err != nil {
		return "", err
	}
	if !o.roundTwo || !o.reg.InRoundTwo(o.active) {
		return "", fmt.Errorf("%w: %s", ErrNotRoundTwo, o.active)
	}
	o.logger.Printf("round two of %s is skipped", o.reg.Display(o.active))
	return o.finishRoundTwo(o.active), nil
}

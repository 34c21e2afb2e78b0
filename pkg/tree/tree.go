// Package tree provides the reference in-memory branch/step supplier.
// Branch and step claiming is exclusive and consistent across concurrently
// calling execution instances: no two instances ever claim the same step.
package tree

import (
	"sync"
	"time"

	"github.com/stridekit/stride/pkg/script"
)

// Tree owns the branches of one run and hands them out for execution.
type Tree struct {
	mu       sync.Mutex
	name     string
	branches []*script.Branch
	byTitle  map[string]*script.Branch
	claimed  map[*script.Branch]bool
	cursors  map[*script.Branch]int
	aborted  map[*script.Branch]bool
}

// New builds a tree from a loaded document.
func New(doc *script.Document) *Tree {
	return FromBranches(doc.Meta.Name, doc.Branches)
}

// FromBranches builds a tree from an already-constructed branch list.
func FromBranches(name string, branches []*script.Branch) *Tree {
	t := &Tree{
		name:     name,
		branches: branches,
		byTitle:  make(map[string]*script.Branch, len(branches)),
		claimed:  make(map[*script.Branch]bool),
		cursors:  make(map[*script.Branch]int),
		aborted:  make(map[*script.Branch]bool),
	}
	for _, b := range branches {
		t.byTitle[b.Title] = b
	}
	return t
}

// NextBranch claims the next runnable branch. A branch is runnable once
// every branch named in its after list is done. (nil, true) is the idle
// token: unclaimed branches exist but none is runnable yet. (nil, false)
// means every branch has been claimed and the run is over.
func (t *Tree) NextBranch() (*script.Branch, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idle := false
	for _, b := range t.branches {
		if t.claimed[b] {
			continue
		}
		if !t.ready(b) {
			idle = true
			continue
		}
		t.claimed[b] = true
		b.Passed = true // until a step says otherwise
		return b, false
	}
	return nil, idle
}

func (t *Tree) ready(b *script.Branch) bool {
	for _, dep := range b.After {
		d, ok := t.byTitle[dep]
		if !ok || !d.Done {
			return false
		}
	}
	return true
}

// NextStep claims the next unexecuted step of a branch, or nil when the
// branch is exhausted or has been abandoned by a fail-branch directive.
func (t *Tree) NextStep(b *script.Branch) *script.Step {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.cursors[b]
	if t.aborted[b] || cur >= len(b.Steps) {
		if !b.Done {
			b.Done = true
		}
		return nil
	}
	t.cursors[b] = cur + 1
	return b.Steps[cur]
}

// MarkStep records a step outcome. A not-as-expected outcome fails the
// owning branch; failBranch abandons its remaining steps.
func (t *Tree) MarkStep(b *script.Branch, s *script.Step, passed, asExpected bool, fault *script.Fault, failBranch bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s.Done = true
	s.Passed = passed
	s.AsExpected = asExpected
	s.Fault = fault

	if b == nil {
		return
	}
	if !asExpected {
		b.Passed = false
		if b.Fault == nil {
			b.Fault = fault
		}
	}
	if failBranch {
		t.aborted[b] = true
	}
}

// MarkBranch records a branch-level outcome, used for faults raised by
// branch-hook steps when no step is active.
func (t *Tree) MarkBranch(b *script.Branch, passed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b.Passed = passed
}

// Serialize produces a structured snapshot of the run for reporting.
func (t *Tree) Serialize() *script.RunSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := &script.RunSnapshot{
		Name:     t.name,
		Taken:    time.Now(),
		Branches: t.branches,
	}
	for _, b := range t.branches {
		snap.Summary.Total++
		switch {
		case !b.Done:
			snap.Summary.Pending++
		case b.Passed:
			snap.Summary.Passed++
		default:
			snap.Summary.Failed++
		}
	}
	return snap
}

// Package script defines the Go struct types for the stride script document
// and the data model shared between the tree and the execution core.
package script

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Fault kinds. Payload faults are raised while running a step's executable
// content; the other two are synthesized by the execution core itself.
const (
	FaultPayload        = "payload"
	FaultUnexpectedPass = "unexpected-pass"
	FaultHook           = "hook"
)

// BrowserDirective is the reserved step text that routes execution to the
// in-browser path registered by a setup hook instead of the step's payload.
const BrowserDirective = "execute in browser"

// Fault is a structured error attached to a step or branch.
type Fault struct {
	Kind       string `yaml:"kind"                 json:"kind"`
	Message    string `yaml:"message"              json:"message"`
	File       string `yaml:"file,omitempty"       json:"file,omitempty"`
	Line       int    `yaml:"line,omitempty"       json:"line,omitempty"`
	FailBranch bool   `yaml:"failBranch,omitempty" json:"failBranch,omitempty"`
}

func (f *Fault) Error() string {
	if f.File != "" {
		return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Message)
	}
	return f.Message
}

// Failf builds a payload fault. Payloads return it (or any error) to fail
// the running step.
func Failf(format string, args ...any) *Fault {
	return &Fault{Kind: FaultPayload, Message: fmt.Sprintf(format, args...)}
}

// FailBranchf builds a payload fault carrying the fail-branch-immediately
// directive: the owning branch's remaining steps are abandoned.
func FailBranchf(format string, args ...any) *Fault {
	f := Failf(format, args...)
	f.FailBranch = true
	return f
}

// Stamp converts an arbitrary payload error into a Fault located at the
// step that produced it. An error that already is a Fault keeps its kind
// and fail-branch directive; the location is overwritten either way.
func Stamp(err error, file string, line int) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		stamped := *f
		stamped.File = file
		stamped.Line = line
		return &stamped
	}
	return &Fault{Kind: FaultPayload, Message: err.Error(), File: file, Line: line}
}

// Vars is an unordered variable bag. The persistent bag is shared across all
// execution instances of a run with no built-in locking (last write wins);
// the contextual bag is private to one instance.
type Vars map[string]any

// Frame is one scope frame: the variable mapping of one nesting level.
type Frame map[string]any

// Env is the fixed capability surface a step payload executes against:
// the three variable bags plus the log sink. Payloads read and write the
// bags directly; they never see the instance that owns them.
type Env struct {
	Persistent Vars
	Contextual Vars
	Local      Frame
	Log        func(string)
}

// Lookup resolves a name through local, then contextual, then persistent.
func (e *Env) Lookup(name string) (any, bool) {
	if v, ok := e.Local[name]; ok {
		return v, true
	}
	if v, ok := e.Contextual[name]; ok {
		return v, true
	}
	v, ok := e.Persistent[name]
	return v, ok
}

// merged flattens the bags into a single map for expression evaluation,
// inner scopes shadowing outer ones.
func (e *Env) merged() map[string]any {
	m := make(map[string]any, len(e.Persistent)+len(e.Contextual)+len(e.Local))
	for k, v := range e.Persistent {
		m[k] = v
	}
	for k, v := range e.Contextual {
		m[k] = v
	}
	for k, v := range e.Local {
		m[k] = v
	}
	return m
}

// Step is a single executable unit within a branch. The document fields are
// decoded from YAML; the result fields are written by the execution core.
type Step struct {
	Text       string       `yaml:"text"                 json:"text"                 jsonschema:"required"`
	Depth      int          `yaml:"depth,omitempty"      json:"depth,omitempty"      jsonschema:"minimum=0"`
	Run        string       `yaml:"run,omitempty"        json:"run,omitempty"`
	Assigns    Assignments  `yaml:"set,omitempty"        json:"set,omitempty"`
	Breakpoint bool         `yaml:"breakpoint,omitempty" json:"breakpoint,omitempty"`
	Call       bool         `yaml:"call,omitempty"       json:"call,omitempty"`
	ExpectFail bool         `yaml:"expectFail,omitempty" json:"expectFail,omitempty"`

	// Source location, stamped by the loader.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
	Line int    `yaml:"line,omitempty" json:"line,omitempty"`

	// Payload is the opaque executable unit bound at tree-construction time.
	// The loader compiles Run into an ExprPayload; hosts building trees
	// programmatically may set any Payload directly.
	Payload Payload `yaml:"-" json:"-"`

	// Execution results, written by the execution core.
	Done       bool   `yaml:"done,omitempty"       json:"done,omitempty"`
	Passed     bool   `yaml:"passed,omitempty"     json:"passed,omitempty"`
	AsExpected bool   `yaml:"asExpected,omitempty" json:"asExpected,omitempty"`
	Fault      *Fault `yaml:"fault,omitempty"      json:"fault,omitempty"`
	Log        string `yaml:"log,omitempty"        json:"log,omitempty"`
}

// Branch is an ordered sequence of steps plus its three hook lists. The
// before-list is consumed once per whole run by the runner; step-hooks run
// after every step of the branch; branch-hooks run once at exhaustion.
type Branch struct {
	Title       string    `yaml:"title"                 json:"title"                 jsonschema:"required"`
	After       []string  `yaml:"after,omitempty"       json:"after,omitempty"`
	Steps       []*Step   `yaml:"steps,omitempty"       json:"steps,omitempty"`
	Before      []*Branch `yaml:"before,omitempty"      json:"before,omitempty"`
	StepHooks   []*Branch `yaml:"stepHooks,omitempty"   json:"stepHooks,omitempty"`
	BranchHooks []*Branch `yaml:"branchHooks,omitempty" json:"branchHooks,omitempty"`

	// Execution results, written by the execution core and the tree.
	Done   bool   `yaml:"done,omitempty"   json:"done,omitempty"`
	Passed bool   `yaml:"passed,omitempty" json:"passed,omitempty"`
	Fault  *Fault `yaml:"fault,omitempty"  json:"fault,omitempty"`
	Log    string `yaml:"log,omitempty"    json:"log,omitempty"`
}

// Meta contains document metadata and initial variables.
type Meta struct {
	Name        string            `yaml:"name"                  json:"name" jsonschema:"required"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Vars        map[string]string `yaml:"vars,omitempty"        json:"vars,omitempty"`
}

// Document is a pre-built tree of branches, produced by an external front
// end. stride loads and executes documents; it does not parse scripts.
type Document struct {
	APIVersion string    `yaml:"apiVersion" json:"apiVersion" jsonschema:"required,enum=script/v1"`
	Meta       Meta      `yaml:"meta"       json:"meta"       jsonschema:"required"`
	Branches   []*Branch `yaml:"branches"   json:"branches"   jsonschema:"required"`
}

// Summary counts branch results.
type Summary struct {
	Total   int `yaml:"total"   json:"total"`
	Passed  int `yaml:"passed"  json:"passed"`
	Failed  int `yaml:"failed"  json:"failed"`
	Pending int `yaml:"pending" json:"pending"`
}

// RunSnapshot is the structured view of a run handed to reporters.
type RunSnapshot struct {
	Name     string    `yaml:"name"     json:"name"`
	Taken    time.Time `yaml:"taken"    json:"taken"`
	Summary  Summary   `yaml:"summary"  json:"summary"`
	Branches []*Branch `yaml:"branches" json:"branches"`
}

// Canonical normalizes step text for directive matching: lower case,
// whitespace collapsed.
func Canonical(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

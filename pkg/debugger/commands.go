package debugger

import (
	"context"
	"fmt"
	"sort"

	"github.com/stridekit/stride/pkg/exec"
	"github.com/stridekit/stride/pkg/script"
)

// handleNext arms the single-step flag and resumes. The instance executes
// exactly one step (including its hooks) and pauses again.
func (d *Debugger) handleNext(ctx context.Context) {
	d.run.RequestSingleStep()
	out := d.in.Run(ctx)
	if out == exec.Completed {
		fmt.Fprintf(d.output, "Run completed.\n")
		return
	}
	d.printStepResult(d.in.ActiveStep())
}

// handleContinue resumes free running. Execution pauses again only on a
// breakpoint, an armed onfail, or completion.
func (d *Debugger) handleContinue(ctx context.Context) {
	out := d.in.Run(ctx)
	if out == exec.Completed {
		fmt.Fprintf(d.output, "Run completed.\n")
		return
	}
	fmt.Fprintf(d.output, "Paused.\n")
	d.printStepResult(d.in.ActiveStep())
}

// handleProbe compiles an expression into a one-step branch and injects it
// into the paused instance. The enclosing position and scopes are untouched.
func (d *Debugger) handleProbe(ctx context.Context, src string) {
	if !d.in.Paused() {
		fmt.Fprintf(d.output, "Probes are only valid while paused.\n")
		return
	}
	if src == "" {
		fmt.Fprintf(d.output, "Usage: probe <expression>\n")
		return
	}
	payload, err := script.CompilePayload(src)
	if err != nil {
		fmt.Fprintf(d.output, "Compile error: %v\n", err)
		return
	}
	step := &script.Step{Text: src, Payload: payload}
	b := &script.Branch{Title: "probe", Steps: []*script.Step{step}}
	d.in.InjectAndRun(ctx, b)
	if step.Fault != nil {
		fmt.Fprintf(d.output, "probe failed: %s\n", step.Fault.Message)
		return
	}
	fmt.Fprintf(d.output, "probe passed\n")
}

// handlePrint dumps a variable bag: locals (default), contextual,
// persistent, or all three.
func (d *Debugger) handlePrint(parts []string) {
	which := "locals"
	if len(parts) > 1 {
		which = parts[1]
	}
	switch which {
	case "locals":
		d.printBag("locals", map[string]any(d.in.Locals()))
	case "contextual":
		d.printBag("contextual", map[string]any(d.in.Contextual()))
	case "persistent":
		d.printBag("persistent", map[string]any(d.run.Persistent()))
	case "all":
		d.printBag("persistent", map[string]any(d.run.Persistent()))
		d.printBag("contextual", map[string]any(d.in.Contextual()))
		d.printBag("locals", map[string]any(d.in.Locals()))
	default:
		fmt.Fprintf(d.output, "Usage: print [locals|contextual|persistent|all]\n")
	}
}

func (d *Debugger) printBag(name string, bag map[string]any) {
	fmt.Fprintf(d.output, "%s:\n", name)
	if len(bag) == 0 {
		fmt.Fprintf(d.output, "  (empty)\n")
		return
	}
	keys := make([]string, 0, len(bag))
	for k := range bag {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(d.output, "  %s = %v\n", k, bag[k])
	}
}

// handleWhere reports the current position.
func (d *Debugger) handleWhere() {
	b := d.in.ActiveBranch()
	if b == nil {
		fmt.Fprintf(d.output, "Not inside a branch.\n")
		return
	}
	fmt.Fprintf(d.output, "branch: %s\n", b.Title)
	if s := d.in.ActiveStep(); s != nil {
		fmt.Fprintf(d.output, "step:   %s (%s:%d, depth %d)\n", s.Text, s.File, s.Line, s.Depth)
	}
	if !d.in.Paused() {
		fmt.Fprintf(d.output, "state:  running\n")
	} else {
		fmt.Fprintf(d.output, "state:  paused\n")
	}
}

func (d *Debugger) printStepResult(s *script.Step) {
	if s == nil {
		return
	}
	switch {
	case s.Fault != nil && !s.AsExpected:
		fmt.Fprintf(d.output, "FAIL %s: %s\n", s.Text, s.Fault.Message)
	case s.AsExpected && !s.Passed:
		fmt.Fprintf(d.output, "ok   %s (failed as expected)\n", s.Text)
	default:
		fmt.Fprintf(d.output, "ok   %s\n", s.Text)
	}
}

func (d *Debugger) handleHelp() {
	fmt.Fprintf(d.output, `Commands:
  next, n           execute one step (hooks included), then pause
  continue, c       resume free running
  onfail            pause on the next step that fails
  probe, p <expr>   evaluate an expression against the paused scopes
  print [bag]       dump locals, contextual, persistent, or all
  where, w          show the current branch and step
  log <text>        append a note to the active step's log
  report            refresh the report output
  help, ?           this text
  quit, q           exit the debugger
`)
}

package debugger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stridekit/stride/pkg/report"
	"github.com/stridekit/stride/pkg/runner"
	"github.com/stridekit/stride/pkg/script"
	"github.com/stridekit/stride/pkg/tree"
)

func testDebugger(t *testing.T, branches []*script.Branch) (*Debugger, *bytes.Buffer) {
	t.Helper()
	doc := &script.Document{
		APIVersion: "script/v1",
		Meta:       script.Meta{Name: "test"},
		Branches:   branches,
	}
	run := runner.New(tree.New(doc), report.Nop{}, 1)
	d := New(doc, run)
	var buf bytes.Buffer
	d.output = &buf
	return d, &buf
}

// TestDebuggerCommandHelp verifies help output lists all commands.
func TestDebuggerCommandHelp(t *testing.T) {
	var buf bytes.Buffer
	d := &Debugger{output: &buf}
	d.handleHelp()
	out := buf.String()
	cmds := []string{"next", "continue", "onfail", "probe", "print", "where", "log", "report", "help", "quit"}
	for _, cmd := range cmds {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing command %q", cmd)
		}
	}
}

// TestDebuggerPrintPersistent verifies print persistent output.
func TestDebuggerPrintPersistent(t *testing.T) {
	d, buf := testDebugger(t, nil)
	d.run.SetVar("service", "api")
	d.handlePrint([]string{"print", "persistent"})
	out := buf.String()
	if !strings.Contains(out, "service") || !strings.Contains(out, "api") {
		t.Errorf("print persistent missing expected content: %s", out)
	}
}

// TestDebuggerProbeRequiresPause verifies probes are rejected while running.
func TestDebuggerProbeRequiresPause(t *testing.T) {
	d, buf := testDebugger(t, nil)
	// next completes the empty run, clearing the pause.
	d.handleNext(context.Background())
	buf.Reset()
	d.handleProbe(context.Background(), "1 == 1")
	if !strings.Contains(buf.String(), "only valid while paused") {
		t.Errorf("probe should be rejected while running: %s", buf.String())
	}
}

// TestDebuggerProbe verifies a probe evaluates against the paused scopes.
func TestDebuggerProbe(t *testing.T) {
	d, buf := testDebugger(t, nil)
	d.run.SetVar("threshold", 5)
	d.handleProbe(context.Background(), "threshold == 5")
	if !strings.Contains(buf.String(), "probe passed") {
		t.Errorf("expected passing probe: %s", buf.String())
	}
	buf.Reset()
	d.handleProbe(context.Background(), "threshold == 6")
	if !strings.Contains(buf.String(), "probe failed") {
		t.Errorf("expected failing probe: %s", buf.String())
	}
}

// TestDebuggerNextStepsOnce verifies next executes exactly one step.
func TestDebuggerNextStepsOnce(t *testing.T) {
	b := &script.Branch{
		Title: "steps",
		Steps: []*script.Step{
			{Text: "first", Payload: script.PayloadFunc(func(context.Context, *script.Env) error { return nil })},
			{Text: "second", Payload: script.PayloadFunc(func(context.Context, *script.Env) error { return nil })},
		},
	}
	d, buf := testDebugger(t, []*script.Branch{b})
	d.handleNext(context.Background())
	if !b.Steps[0].Done {
		t.Error("first step should have executed")
	}
	if b.Steps[1].Done {
		t.Error("second step should not have executed yet")
	}
	if !strings.Contains(buf.String(), "first") {
		t.Errorf("next output should name the executed step: %s", buf.String())
	}
}

// TestDebuggerWhere verifies where reports the active position.
func TestDebuggerWhere(t *testing.T) {
	b := &script.Branch{
		Title: "checkout flow",
		Steps: []*script.Step{
			{Text: "open cart", Payload: script.PayloadFunc(func(context.Context, *script.Env) error { return nil })},
		},
	}
	d, buf := testDebugger(t, []*script.Branch{b})
	d.handleNext(context.Background())
	buf.Reset()
	d.handleWhere()
	out := buf.String()
	if !strings.Contains(out, "checkout flow") || !strings.Contains(out, "open cart") {
		t.Errorf("where missing position info: %s", out)
	}
}

// TestDebuggerPromptFormat verifies prompt shows branch and step.
func TestDebuggerPromptFormat(t *testing.T) {
	b := &script.Branch{
		Title: "login",
		Steps: []*script.Step{
			{Text: "enter credentials", Payload: script.PayloadFunc(func(context.Context, *script.Env) error { return nil })},
		},
	}
	d, _ := testDebugger(t, []*script.Branch{b})
	if got := d.buildPrompt(); got != "stride> " {
		t.Errorf("idle prompt unexpected: %q", got)
	}
	d.handleNext(context.Background())
	prompt := d.buildPrompt()
	if !strings.Contains(prompt, "login") || !strings.Contains(prompt, "enter credentials") {
		t.Errorf("prompt format unexpected: %q", prompt)
	}
}

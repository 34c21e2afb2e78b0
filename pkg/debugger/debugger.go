// Package debugger implements the interactive REPL over the execution
// core's pause/resume controller.
package debugger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/stridekit/stride/pkg/exec"
	"github.com/stridekit/stride/pkg/runner"
	"github.com/stridekit/stride/pkg/script"
)

// Debugger drives one execution instance step by step through the runner's
// one-shot flags and the instance's injection entry point.
type Debugger struct {
	doc    *script.Document
	run    *runner.Runner
	in     *exec.Instance
	output io.Writer
	rl     *readline.Instance
}

// New creates a debugger over the runner's first worker instance. The
// instance starts paused so probes are valid before any step has run.
func New(doc *script.Document, run *runner.Runner) *Debugger {
	in := run.Instances()[0]
	in.Pause()
	return &Debugger{
		doc:    doc,
		run:    run,
		in:     in,
		output: os.Stdout,
	}
}

// Run starts the interactive REPL loop.
func (d *Debugger) Run(ctx context.Context) error {
	commands := []string{"next", "continue", "onfail", "probe", "print",
		"where", "log", "report", "help", "quit"}

	var completer = readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          d.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	d.rl = rl
	defer rl.Close()

	fmt.Fprintf(d.output, "stride debugger — %s, %d branches\n", d.doc.Meta.Name, len(d.doc.Branches))
	fmt.Fprintf(d.output, "Type 'help' for available commands, 'next' to execute one step.\n\n")

	d.run.RunSetup(ctx, d.doc.Branches)

	for {
		rl.SetPrompt(d.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		switch parts[0] {
		case "next", "n":
			d.handleNext(ctx)
		case "continue", "c":
			d.handleContinue(ctx)
		case "onfail":
			d.run.RequestPauseOnFail()
			fmt.Fprintf(d.output, "Armed: execution will pause on the next failing step.\n")
		case "probe", "p":
			d.handleProbe(ctx, strings.TrimSpace(strings.TrimPrefix(line, parts[0])))
		case "print":
			d.handlePrint(parts)
		case "where", "w":
			d.handleWhere()
		case "log":
			d.in.Log(strings.TrimSpace(strings.TrimPrefix(line, "log")))
		case "report":
			d.run.Reporter().GenerateReport()
			fmt.Fprintf(d.output, "Report refreshed.\n")
		case "help", "?":
			d.handleHelp()
		case "quit", "q":
			fmt.Fprintf(d.output, "Exiting debugger.\n")
			return nil
		default:
			fmt.Fprintf(d.output, "Unknown command: %q. Type 'help' for available commands.\n", parts[0])
		}
	}
}

// buildPrompt creates the prompt string: stride[branch | step]>
func (d *Debugger) buildPrompt() string {
	b := d.in.ActiveBranch()
	if b == nil {
		return "stride> "
	}
	s := d.in.ActiveStep()
	if s == nil {
		return fmt.Sprintf("stride[%s]> ", b.Title)
	}
	return fmt.Sprintf("stride[%s | %s]> ", b.Title, s.Text)
}

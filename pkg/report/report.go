// Package report contains reporter implementations that keep a live view of
// a run current on disk. The execution core only ever asks for a refresh;
// scheduling and rendering beyond these files belongs to outer layers.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stridekit/stride/pkg/script"
)

// Reporter is re-stated here so reporters compose without importing the
// execution core.
type Reporter interface {
	GenerateReport()
}

// Source produces run snapshots. The tree implements it.
type Source interface {
	Serialize() *script.RunSnapshot
}

// Writer renders the run snapshot to a YAML file on every refresh,
// replacing the file atomically so readers never see a torn view.
type Writer struct {
	mu   sync.Mutex
	src  Source
	path string
}

// NewWriter creates a snapshot writer targeting path.
func NewWriter(src Source, path string) *Writer {
	return &Writer{src: src, path: path}
}

func (w *Writer) GenerateReport() {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := yaml.Marshal(w.src.Serialize())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: marshal report: %v\n", err)
		return
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "warning: write report: %v\n", err)
		return
	}
	if err := os.Rename(tmp, w.path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: replace report: %v\n", err)
	}
}

// traceEvent is one line of the JSONL progress trace.
type traceEvent struct {
	Type      string         `json:"type"` // refresh
	Timestamp time.Time      `json:"timestamp"`
	Run       string         `json:"run"`
	Summary   script.Summary `json:"summary"`
}

// Trace appends a JSONL progress event per refresh and flushes at step
// boundaries, giving an append-only feed of the run's advance.
type Trace struct {
	mu     sync.Mutex
	src    Source
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
}

// NewTrace creates a trace reporter that appends to the given file.
func NewTrace(src Source, path string) (*Trace, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	w := bufio.NewWriter(f)
	return &Trace{src: src, file: f, writer: w, enc: json.NewEncoder(w)}, nil
}

func (t *Trace) GenerateReport() {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.src.Serialize()
	event := traceEvent{
		Type:      "refresh",
		Timestamp: snap.Taken,
		Run:       snap.Name,
		Summary:   snap.Summary,
	}
	if err := t.enc.Encode(event); err != nil {
		fmt.Fprintf(os.Stderr, "warning: encode trace event: %v\n", err)
		return
	}
	if err := t.writer.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: flush trace: %v\n", err)
	}
}

// Close flushes and closes the trace file.
func (t *Trace) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writer.Flush(); err != nil {
		return err
	}
	return t.file.Close()
}

// Nop discards refresh requests.
type Nop struct{}

func (Nop) GenerateReport() {}

// Multi fans a refresh out to several reporters.
type Multi []Reporter

func (m Multi) GenerateReport() {
	for _, r := range m {
		r.GenerateReport()
	}
}

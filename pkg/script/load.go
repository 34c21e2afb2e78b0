package script

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a step and records the document line it came from,
// so faults can point back at the source.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	type plain Step
	if err := value.Decode((*plain)(s)); err != nil {
		return err
	}
	s.Line = value.Line
	return nil
}

// Load decodes a script document from a reader using strict field checking.
func Load(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// LoadFile reads, decodes, and compiles a script document. Every step's
// payload and assignments are bound here, stamped with the file path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	doc, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := doc.Compile(path); err != nil {
		return nil, err
	}
	return doc, nil
}

// Compile binds executable content on every step of every branch and hook.
func (d *Document) Compile(file string) error {
	for _, b := range d.Branches {
		if err := compileBranch(b, file); err != nil {
			return err
		}
	}
	return nil
}

func compileBranch(b *Branch, file string) error {
	for _, s := range b.Steps {
		if err := s.Compile(file); err != nil {
			return err
		}
	}
	for _, hooks := range [][]*Branch{b.Before, b.StepHooks, b.BranchHooks} {
		for _, hb := range hooks {
			if err := compileBranch(hb, file); err != nil {
				return err
			}
		}
	}
	return nil
}

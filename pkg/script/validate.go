package script

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError is a single validation finding with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g. "branches[0].steps[2]")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile runs the full 3-phase validation pipeline on a document file.
// Phase 1: structural (strict YAML decode + compile)
// Phase 2: semantic (JSON Schema)
// Phase 3: domain (Go rules)
func ValidateFile(path string) (*Document, []*ValidationError) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return doc, Validate(doc)
}

// Validate runs the semantic and domain phases on an already-loaded document.
func Validate(doc *Document) []*ValidationError {
	errs := validateSemantic(doc)
	errs = append(errs, ValidateDomain(doc)...)
	return errs
}

// validateSemantic checks the document against the generated JSON Schema.
func validateSemantic(doc *Document) []*ValidationError {
	data, err := json.Marshal(doc)
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("marshal for schema validation: %v", err),
			Severity: "error",
		}}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("generate schema: %v", err),
			Severity: "error",
		}}
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("unmarshal schema: %v", err),
			Severity: "error",
		}}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("script-v1.json", schemaDoc); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("add schema resource: %v", err),
			Severity: "error",
		}}
	}
	sch, err := c.Compile("script-v1.json")
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("compile schema: %v", err),
			Severity: "error",
		}}
	}

	var inst any
	if err := json.Unmarshal(data, &inst); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("unmarshal document: %v", err),
			Severity: "error",
		}}
	}

	if err := sch.Validate(inst); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Message:  err.Error(),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain runs the Go-level rules the schema cannot express:
// depth discipline, hook shape, and after-ordering consistency.
func ValidateDomain(doc *Document) []*ValidationError {
	var errs []*ValidationError

	if doc.APIVersion != "script/v1" {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "apiVersion",
			Message:  fmt.Sprintf("unrecognized apiVersion %q, expected %q", doc.APIVersion, "script/v1"),
			Severity: "error",
		})
	}

	titles := make(map[string]int)
	for i, b := range doc.Branches {
		path := fmt.Sprintf("branches[%d]", i)
		if _, dup := titles[b.Title]; dup {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".title",
				Message:  fmt.Sprintf("duplicate branch title %q", b.Title),
				Severity: "error",
			})
		}
		titles[b.Title] = i
		errs = append(errs, validateBranch(b, path)...)
	}

	// after: must reference known branches, acyclically.
	for i, b := range doc.Branches {
		for _, dep := range b.After {
			if _, ok := titles[dep]; !ok {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("branches[%d].after", i),
					Message:  fmt.Sprintf("after references unknown branch %q", dep),
					Severity: "error",
				})
			}
		}
	}
	if cycle := findAfterCycle(doc.Branches, titles); cycle != "" {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "branches",
			Message:  fmt.Sprintf("after ordering contains a cycle through %q", cycle),
			Severity: "error",
		})
	}

	return errs
}

func validateBranch(b *Branch, path string) []*ValidationError {
	var errs []*ValidationError

	prev := 0
	for j, s := range b.Steps {
		spath := fmt.Sprintf("%s.steps[%d]", path, j)
		if s.Depth < 0 {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     spath + ".depth",
				Message:  fmt.Sprintf("negative depth %d", s.Depth),
				Severity: "error",
			})
		}
		// Indentation may only deepen one level at a time; any shallower
		// depth is a legal multi-level close.
		if s.Depth > prev+1 {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     spath + ".depth",
				Message:  fmt.Sprintf("depth jumps from %d to %d; scopes nest one level at a time", prev, s.Depth),
				Severity: "error",
			})
		}
		prev = s.Depth
	}

	for _, group := range []struct {
		name  string
		hooks []*Branch
	}{
		{"before", b.Before},
		{"stepHooks", b.StepHooks},
		{"branchHooks", b.BranchHooks},
	} {
		for k, hb := range group.hooks {
			hpath := fmt.Sprintf("%s.%s[%d]", path, group.name, k)
			if len(hb.After) > 0 || len(hb.Before) > 0 || len(hb.StepHooks) > 0 || len(hb.BranchHooks) > 0 {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     hpath,
					Message:  "hook branches are plain step sequences; they carry no ordering or hooks of their own",
					Severity: "error",
				})
			}
			errs = append(errs, validateBranch(hb, hpath)...)
		}
	}
	return errs
}

// findAfterCycle reports a branch title participating in an after: cycle,
// or "" when the ordering is a DAG.
func findAfterCycle(branches []*Branch, titles map[string]int) string {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make([]int, len(branches))

	var visit func(i int) string
	visit = func(i int) string {
		color[i] = grey
		for _, dep := range branches[i].After {
			j, ok := titles[dep]
			if !ok {
				continue
			}
			switch color[j] {
			case grey:
				return branches[j].Title
			case white:
				if t := visit(j); t != "" {
					return t
				}
			}
		}
		color[i] = black
		return ""
	}

	for i := range branches {
		if color[i] == white {
			if t := visit(i); t != "" {
				return t
			}
		}
	}
	return ""
}

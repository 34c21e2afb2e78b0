package exec

import "github.com/stridekit/stride/pkg/script"

// classify maps a step's expectation and fault onto its recorded outcome:
//
//	expectFail  fault   →  passed  asExpected  recorded fault
//	false       none       true    true        none
//	false       some       false   false       the fault
//	true        some       false   true        the fault
//	true        none       true    false       synthesized unexpected-pass
//
// The synthesized fault carries the step's own file and line.
func classify(expectFail bool, fault *script.Fault, s *script.Step) (passed, asExpected bool, recorded *script.Fault) {
	switch {
	case !expectFail && fault == nil:
		return true, true, nil
	case !expectFail:
		return false, false, fault
	case fault != nil:
		return false, true, fault
	default:
		return true, false, &script.Fault{
			Kind:    script.FaultUnexpectedPass,
			Message: "expected to fail, but passed",
			File:    s.File,
			Line:    s.Line,
		}
	}
}

// Package classify maps an error trace to a fault category and the signature
// used to decide whether a repaired program still reproduces that fault.
package classify

import (
	"regexp"
	"strings"

	"github.com/venkatnarayana7/Python-Debugger/types"
)

var (
	syntaxMarkers = []string{
		"SyntaxError",
		"IndentationError",
		"TabError",
		"invalid syntax",
		"syntax error",
		"unexpected EOF",
	}

	runtimeExceptions = []string{
		"ZeroDivisionError",
		"IndexError",
		"KeyError",
		"TypeError",
		"ValueError",
		"AttributeError",
		"UnboundLocalError",
		"NameError",
		"ModuleNotFoundError",
		"ImportError",
		"RecursionError",
		"FileNotFoundError",
		"PermissionError",
		"OverflowError",
		"FloatingPointError",
		"MemoryError",
		"StopIteration",
		"NotImplementedError",
		"RuntimeError",
		"OSError",
		"UnicodeDecodeError",
		"UnicodeEncodeError",
		"LookupError",
		"ArithmeticError",
		"NullPointerException",
		"ArrayIndexOutOfBoundsException",
		"ClassCastException",
		"ReferenceError",
		"RangeError",
		"panic: runtime error",
		"Segmentation fault",
	}

	logicMarkers = []string{
		"AssertionError",
		"AssertionFailedError",
		"assert ",
		"mismatch",
	}

	timeoutMarkers = []string{
		"TimeoutError",
		"TimeoutExpired",
		"timed out",
		"Time Limit Exceeded",
		"deadline exceeded",
		"Timeout",
	}

	// expected 3, got 4 / expected: 3 but was: 4
	expectationPattern = regexp.MustCompile(`(?i)\bexpected\b.*\b(got|but was|actual|received)\b`)
	exceptionPattern   = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*\.)*([A-Z][A-Za-z0-9_]*(Error|Exception|Exit|Interrupt|Expired))\b`)
	pythonFramePattern = regexp.MustCompile(`File "([^"]+)", line (\d+)(?:, in (\S+))?`)
	goFramePattern     = regexp.MustCompile(`^\s*(\S+\.go):(\d+)`)
)

// Classify derives the error category of the submitted code and trace.
// It is a pure function of its inputs.
func Classify(code, errorLog string) types.ErrorCategory {
	lines := traceLines(errorLog)
	sig := types.Signature{
		Exception: findException(lines),
		Frame:     findFrame(lines),
	}
	return types.ErrorCategory{
		Category:  categorize(lines, sig.Exception),
		Signature: sig,
	}
}

// traceLines returns non-empty lines in bottom-up order
func traceLines(errorLog string) []string {
	raw := strings.Split(strings.ReplaceAll(errorLog, "\r\n", "\n"), "\n")
	rt := make([]string, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(raw[i]); l != "" {
			rt = append(rt, l)
		}
	}
	return rt
}

func categorize(lines []string, exception string) types.Category {
	// the final line (or the exception name found closest to it) wins over
	// any marker buried in earlier frames
	if exception != "" {
		if c, ok := categoryOf(exception); ok {
			return c
		}
	}
	for _, l := range lines {
		if c, ok := categoryOf(l); ok {
			return c
		}
	}
	return types.CategoryUnknown
}

func categoryOf(s string) (types.Category, bool) {
	switch {
	case containsAny(s, syntaxMarkers):
		return types.CategorySyntax, true
	case containsAny(s, runtimeExceptions):
		return types.CategoryRuntime, true
	case containsAny(s, logicMarkers) || expectationPattern.MatchString(s):
		return types.CategoryLogic, true
	case containsAny(s, timeoutMarkers):
		return types.CategoryTimeout, true
	}
	return types.CategoryUnknown, false
}

func findException(lines []string) string {
	for _, l := range lines {
		if pythonFramePattern.MatchString(l) {
			continue
		}
		if m := exceptionPattern.FindStringSubmatch(l); m != nil {
			return m[2]
		}
		for _, r := range []string{"panic: runtime error", "Segmentation fault"} {
			if strings.Contains(l, r) {
				return r
			}
		}
	}
	return ""
}

func findFrame(lines []string) string {
	for _, l := range lines {
		if m := pythonFramePattern.FindStringSubmatch(l); m != nil {
			frame := m[1] + ":" + m[2]
			if m[3] != "" {
				frame += " in " + m[3]
			}
			return frame
		}
		if m := goFramePattern.FindStringSubmatch(l); m != nil {
			return m[1] + ":" + m[2]
		}
	}
	return ""
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Reproduced reports whether the output of a repaired program still shows the
// original fault. A fault without a signature is only reproduced by a timeout
// marker when its category is Timeout.
func Reproduced(fault types.ErrorCategory, output string) bool {
	if e := fault.Signature.Exception; e != "" {
		if exceptionPattern.MatchString(e) {
			for _, m := range exceptionPattern.FindAllStringSubmatch(output, -1) {
				if m[2] == e {
					return true
				}
			}
			return false
		}
		return strings.Contains(output, e)
	}
	if fault.Category == types.CategoryTimeout {
		return containsAny(output, timeoutMarkers)
	}
	return false
}

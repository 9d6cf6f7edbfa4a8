package cmd

import (
	"fmt"
	"strconv"

	"github.com/lc3zk/lc3zk/lc3go/fast"
)

const matcherPatterns = "'never', 'always', '=<step>', '%<interval>' or '@<pc>'"

// StepMatcher selects the states a run acts on.
type StepMatcher func(st *fast.VMState) bool

// ParseStepMatcher parses a step pattern. '@' matches a program counter, in hex.
func ParseStepMatcher(pattern string) (StepMatcher, error) {
	switch {
	case pattern == "" || pattern == "never":
		return func(*fast.VMState) bool { return false }, nil
	case pattern == "always":
		return func(*fast.VMState) bool { return true }, nil
	case pattern[0] == '=':
		step, err := strconv.ParseUint(pattern[1:], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse step number %q: %w", pattern, err)
		}
		return func(st *fast.VMState) bool { return st.Step == step }, nil
	case pattern[0] == '%':
		interval, err := strconv.ParseUint(pattern[1:], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse step interval %q: %w", pattern, err)
		}
		if interval == 0 {
			return nil, fmt.Errorf("step interval %q must be positive", pattern)
		}
		return func(st *fast.VMState) bool { return st.Step%interval == 0 }, nil
	case pattern[0] == '@':
		pc, err := strconv.ParseUint(pattern[1:], 16, 16)
		if err != nil {
			return nil, fmt.Errorf("failed to parse pc %q: %w", pattern, err)
		}
		return func(st *fast.VMState) bool { return st.Registers.PC == uint16(pc) }, nil
	default:
		return nil, fmt.Errorf("unrecognized step pattern %q, expected %s", pattern, matcherPatterns)
	}
}

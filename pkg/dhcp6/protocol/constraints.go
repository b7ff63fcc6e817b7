package protocol

import "fmt"

// Unbounded as a Constraint maximum allows any number of occurrences.
const Unbounded = -1

// Constraint limits how often options matching Codes may appear in a
// container. An empty Codes list matches every option and therefore acts
// as the fallback for options no narrower constraint covers.
type Constraint struct {
	Codes []OptionCode
	Min   int
	Max   int
}

type Constraints []Constraint

// Option groups standing in for a common base type.
var (
	GroupIA      = []OptionCode{OptionIANA, OptionIATA, OptionIAPD}
	GroupAddress = []OptionCode{OptionIANA, OptionIATA}
)

func Exactly(n int, codes ...OptionCode) Constraint {
	return Constraint{Codes: codes, Min: n, Max: n}
}

func AtMost(n int, codes ...OptionCode) Constraint {
	return Constraint{Codes: codes, Min: 0, Max: n}
}

func AnyNumber(codes ...OptionCode) Constraint {
	return Constraint{Codes: codes, Min: 0, Max: Unbounded}
}

func (c Constraint) matches(code OptionCode) bool {
	if len(c.Codes) == 0 {
		return true
	}
	for _, cc := range c.Codes {
		if cc == code {
			return true
		}
	}
	return false
}

func (c Constraint) specificity() int {
	if len(c.Codes) == 0 {
		return int(^uint(0) >> 1)
	}
	return len(c.Codes)
}

// match returns the index of the narrowest constraint covering code, or -1.
func (cs Constraints) match(code OptionCode) int {
	best := -1
	for i, c := range cs {
		if !c.matches(code) {
			continue
		}
		if best < 0 || c.specificity() < cs[best].specificity() {
			best = i
		}
	}
	return best
}

func (c Constraint) describe() string {
	if len(c.Codes) == 0 {
		return "options"
	}
	if len(c.Codes) == 1 {
		return c.Codes[0].String()
	}
	return fmt.Sprintf("%v", c.Codes)
}

// ValidateContainment checks the occurrence counts of opts against
// constraints and then validates each child.
func ValidateContainment(element string, constraints Constraints, opts []Option) error {
	counts := make([]int, len(constraints))
	for _, opt := range opts {
		if opt == nil {
			return invalid(element, ErrInvalidValue, "nil option")
		}
		idx := constraints.match(opt.Code())
		if idx < 0 {
			return invalid(element, ErrContainment, "%s may not contain %s", element, opt.Code())
		}
		counts[idx]++
	}

	for i, c := range constraints {
		if counts[i] < c.Min {
			return invalid(element, ErrContainment, "%s must contain at least %d %s, has %d", element, c.Min, c.describe(), counts[i])
		}
		if c.Max != Unbounded && counts[i] > c.Max {
			return invalid(element, ErrContainment, "%s may contain at most %d %s, has %d", element, c.Max, c.describe(), counts[i])
		}
	}

	for _, opt := range opts {
		if err := opt.Validate(); err != nil {
			return err
		}
	}
	return nil
}

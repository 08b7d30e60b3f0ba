package clean

import (
	"cmp"
	"context"
	"slices"
)

// StepFunc does the work of a declared step
type StepFunc func(ctx context.Context, node *Node, ports []Port) error

type declaredStep struct {
	info StepInfo
	fn   StepFunc
}

// NewStep builds a Step from its declaration and implementation
func NewStep(info StepInfo, fn StepFunc) Step {
	return &declaredStep{info: info, fn: fn}
}

func (s *declaredStep) Name() string          { return s.info.Step }
func (s *declaredStep) Priority() int         { return s.info.Priority }
func (s *declaredStep) Interface() string     { return s.info.Interface }
func (s *declaredStep) RebootRequested() bool { return s.info.RebootRequested }
func (s *declaredStep) Abortable() bool       { return s.info.Abortable }

func (s *declaredStep) Execute(ctx context.Context, node *Node, ports []Port) error {
	return s.fn(ctx, node, ports)
}

// Info returns the declaration of any Step
func Info(s Step) StepInfo {
	return StepInfo{
		Step:            s.Name(),
		Priority:        s.Priority(),
		Interface:       s.Interface(),
		RebootRequested: s.RebootRequested(),
		Abortable:       s.Abortable(),
	}
}

// Override changes how a declared step is scheduled
type Override struct {
	Priority *int
	Disabled bool
}

type prioritized struct {
	Step
	priority int
}

func (p *prioritized) Priority() int { return p.priority }

// Order applies overrides, drops disabled steps and sorts by ascending
// priority. Steps with equal priority keep their declaration order.
func Order(steps []Step, overrides map[string]Override) []Step {
	ordered := make([]Step, 0, len(steps))
	for _, s := range steps {
		o, ok := overrides[s.Name()]
		if ok && o.Disabled {
			continue
		}
		if ok && o.Priority != nil {
			s = &prioritized{Step: s, priority: *o.Priority}
		}
		ordered = append(ordered, s)
	}

	slices.SortStableFunc(ordered, func(a, b Step) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})
	return ordered
}

package clean

import (
	"fmt"
	"sync"
)

// Registry holds the hardware managers known to the agent
type Registry struct {
	mu       sync.RWMutex
	managers []Manager
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a manager; names must be unique
func (r *Registry) Register(m Manager) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.managers {
		if existing.Name() == m.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateManager, m.Name())
		}
	}
	r.managers = append(r.managers, m)
	return nil
}

// Managers returns the registered managers in registration order
func (r *Registry) Managers() []Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Manager, len(r.managers))
	copy(out, r.managers)
	return out
}

// Versions maps manager name to version. A change in this map means
// previously started cleaning must start over.
func (r *Registry) Versions() map[string]string {
	versions := make(map[string]string)
	for _, m := range r.Managers() {
		versions[m.Name()] = m.Version()
	}
	return versions
}

// Steps gathers the steps of every manager that supports the hardware.
// When several managers declare the same step, the one with the highest
// support level wins; the step keeps the position of its first declaration.
func (r *Registry) Steps(node *Node, ports []Port) ([]Step, error) {
	type candidate struct {
		step    Step
		support HardwareSupport
	}

	var order []string
	chosen := make(map[string]candidate)

	for _, m := range r.Managers() {
		support := m.EvaluateHardwareSupport()
		if support <= SupportNone {
			continue
		}

		seen := make(map[string]bool)
		for _, s := range m.CleanSteps(node, ports) {
			name := s.Name()
			if seen[name] {
				return nil, fmt.Errorf("%w: %s in manager %s", ErrDuplicateStep, name, m.Name())
			}
			seen[name] = true

			existing, ok := chosen[name]
			if !ok {
				order = append(order, name)
			}
			if !ok || support > existing.support {
				chosen[name] = candidate{step: s, support: support}
			}
		}
	}

	steps := make([]Step, 0, len(order))
	for _, name := range order {
		steps = append(steps, chosen[name].step)
	}
	return steps, nil
}

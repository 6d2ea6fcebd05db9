package plugin

import (
	"errors"
	"sync"
)

// entry is the Manager's bookkeeping for one registered plugin.
type entry struct {
	plugin      Plugin
	regIndex    int
	enabled     bool
	initialized bool
}

// Manager is the plugin lifecycle system: registration, dependency
// resolution via topological sort, ordered initialization, and runtime
// enable/disable under dependency constraints. Ordering comes from
// Kahn's algorithm, the textbook approach to dependency-ordered
// initialization.
type Manager struct {
	mu sync.Mutex

	entries map[ID]*entry
	order   []ID // registration order, topo tie-break

	built bool
	topo  []ID // dependency order, computed by Build
}

// NewManager creates an empty, unbuilt Manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[ID]*entry)}
}

// Register adds a plugin. It must be called before Build; registering
// two plugins with the same ID, or registering after Build, is an
// error.
func (m *Manager) Register(p Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.built {
		return ErrAfterBuild
	}
	id := p.ID()
	if _, exists := m.entries[id]; exists {
		return ErrDuplicate
	}
	m.entries[id] = &entry{plugin: p, regIndex: len(m.order)}
	m.order = append(m.order, id)
	return nil
}

// Build validates the dependency graph, computes a dependency order via
// Kahn's algorithm (ties broken by registration order), runs
// ConfigureStateMachine then Initialize on every plugin in that order,
// and finally enables every successfully initialized plugin in the same
// order. If validation fails, no plugin is touched. If Initialize fails
// partway through, already-initialized plugins are disposed in reverse
// order before Build returns the error.
func (m *Manager) Build(ctx Context) error {
	m.mu.Lock()
	if m.built {
		m.mu.Unlock()
		return ErrAfterBuild
	}

	topo, err := m.topoSort()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.topo = topo
	m.mu.Unlock()

	for _, id := range topo {
		e := m.entries[id]
		e.plugin.ConfigureStateMachine(ctx)
	}

	var initialized []ID
	for _, id := range topo {
		e := m.entries[id]
		if err := e.plugin.Initialize(ctx); err != nil {
			m.disposeInOrder(ctx, reverse(initialized))
			return err
		}
		e.initialized = true
		initialized = append(initialized, id)
	}

	m.mu.Lock()
	m.built = true
	m.mu.Unlock()

	for _, id := range topo {
		if err := m.Enable(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// topoSort runs Kahn's algorithm over the registered plugins, breaking
// ties among simultaneously-ready nodes by registration order so build
// order is deterministic across runs.
func (m *Manager) topoSort() ([]ID, error) {
	indegree := make(map[ID]int, len(m.entries))
	dependents := make(map[ID][]ID, len(m.entries))
	missing := make(map[ID][]ID)

	for id, e := range m.entries {
		var unresolved []ID
		for _, dep := range e.plugin.Dependencies() {
			if _, ok := m.entries[dep]; !ok {
				unresolved = append(unresolved, dep)
				continue
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
		if len(unresolved) > 0 {
			missing[id] = unresolved
		}
	}
	if len(missing) > 0 {
		return nil, &DependencyError{Missing: missing}
	}

	ready := make([]ID, 0, len(m.order))
	for _, id := range m.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	var topo []ID
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		topo = append(topo, id)

		var unblocked []ID
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				unblocked = append(unblocked, dep)
			}
		}
		// Keep the ready queue in registration order among newly
		// unblocked nodes, for deterministic tie-breaking.
		if len(unblocked) > 0 {
			ready = append(ready, unblocked...)
			ready = stableByRegIndex(ready, m.entries)
		}
	}

	if len(topo) != len(m.entries) {
		return nil, &DependencyError{Cycle: cycleRemainder(m.entries, topo)}
	}
	return topo, nil
}

func stableByRegIndex(ids []ID, entries map[ID]*entry) []ID {
	out := append([]ID(nil), ids...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && entries[out[j-1]].regIndex > entries[out[j]].regIndex; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func cycleRemainder(entries map[ID]*entry, topo []ID) []ID {
	done := make(map[ID]bool, len(topo))
	for _, id := range topo {
		done[id] = true
	}
	var rem []ID
	for id := range entries {
		if !done[id] {
			rem = append(rem, id)
		}
	}
	return rem
}

func reverse(ids []ID) []ID {
	out := make([]ID, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

func (m *Manager) disposeInOrder(ctx Context, ids []ID) error {
	var errs []error
	for _, id := range ids {
		if e, ok := m.entries[id]; ok {
			if err := e.plugin.Dispose(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Enable enables the plugin with the given ID. Its dependencies are
// enabled first (recursively) if not already enabled. Enabling an
// already-enabled plugin is a no-op.
func (m *Manager) Enable(ctx Context, id ID) error {
	m.mu.Lock()
	if !m.built {
		m.mu.Unlock()
		return ErrNotBuilt
	}
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if e.enabled {
		m.mu.Unlock()
		return nil
	}
	deps := append([]ID(nil), e.plugin.Dependencies()...)
	m.mu.Unlock()

	for _, dep := range deps {
		if err := m.Enable(ctx, dep); err != nil {
			return err
		}
	}

	m.mu.Lock()
	if e.enabled {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := e.plugin.OnEnabled(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	e.enabled = true
	m.mu.Unlock()
	return nil
}

// Disable disables the plugin with the given ID, failing with
// HasDependentsError if any currently-enabled plugin depends on it.
func (m *Manager) Disable(ctx Context, id ID) error {
	m.mu.Lock()
	if !m.built {
		m.mu.Unlock()
		return ErrNotBuilt
	}
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if !e.enabled {
		m.mu.Unlock()
		return nil
	}

	var dependents []ID
	for otherID, other := range m.entries {
		if !other.enabled || otherID == id {
			continue
		}
		for _, dep := range other.plugin.Dependencies() {
			if dep == id {
				dependents = append(dependents, otherID)
				break
			}
		}
	}
	m.mu.Unlock()

	if len(dependents) > 0 {
		return &HasDependentsError{Target: id, Dependents: dependents}
	}

	if err := e.plugin.OnDisabled(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	e.enabled = false
	m.mu.Unlock()
	return nil
}

// Get returns the registered plugin with the given ID.
func (m *Manager) Get(id ID) (Plugin, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return e.plugin, true
}

// IsEnabled reports whether the plugin with the given ID is currently
// enabled. It returns false for an unknown ID.
func (m *Manager) IsEnabled(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	return ok && e.enabled
}

// All returns every registered plugin, in registration order.
func (m *Manager) All() []Plugin {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Plugin, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id].plugin)
	}
	return out
}

// Dispose calls Dispose on every registered plugin in reverse
// dependency order, joining any errors returned.
func (m *Manager) Dispose(ctx Context) error {
	m.mu.Lock()
	topo := m.topo
	if topo == nil {
		topo = m.order
	}
	m.mu.Unlock()
	return m.disposeInOrder(ctx, reverse(topo))
}

package registry

import (
	"errors"
	"sort"
	"sync"
)

// ErrUnknownAdapter is returned when a mutation names an adapter that was never merged.
var ErrUnknownAdapter = errors.New("unknown adapter")

// Device is a confirmed device reachable through an adapter.
type Device struct {
	Name    string
	Address string
}

// Adapter is a point-in-time copy of one host network interface and its
// discovery state. Mutating a copy has no effect on the registry.
type Adapter struct {
	Name             string
	Index            uint32
	Description      string
	SupportsEthernet bool
	IsListening      bool
	IsProbing        bool

	// ProbingAddress is the candidate a probe has taken and not yet finished.
	ProbingAddress string
	// CandidateAddresses are captured but not yet probed, in discovery order.
	CandidateAddresses []string
	// SearchedAddresses are already probed, in probe order.
	SearchedAddresses []string
	DiscoveredDevices []Device
}

// entry is the registry-owned state behind an Adapter.
type entry struct {
	name        string
	index       uint32
	description string
	supports    bool
	listening   bool
	probing     bool
	inFlight    string
	candidates  []string
	searched    []string
	searchedSet map[string]struct{}
	devices     []Device
}

func (e *entry) isSearched(address string) bool {
	_, ok := e.searchedSet[address]
	return ok
}

func (e *entry) isCandidate(address string) bool {
	if e.inFlight == address {
		return true
	}
	for _, c := range e.candidates {
		if c == address {
			return true
		}
	}
	return false
}

func (e *entry) snapshot() Adapter {
	return Adapter{
		Name:               e.name,
		Index:              e.index,
		Description:        e.description,
		SupportsEthernet:   e.supports,
		IsListening:        e.listening,
		IsProbing:          e.probing,
		ProbingAddress:     e.inFlight,
		CandidateAddresses: append([]string(nil), e.candidates...),
		SearchedAddresses:  append([]string(nil), e.searched...),
		DiscoveredDevices:  append([]Device(nil), e.devices...),
	}
}

// Registry maps adapter names to their discovery state.
//
// Every method takes the single registry lock for the duration of one read or
// one bounded mutation and never calls out while holding it.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string // insertion order, used for deterministic scans
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Merge inserts every adapter whose name is not yet known and returns the
// inserted ones. Known adapters are left untouched: their capability flags,
// candidates, searched set and devices survive any number of merges.
func (r *Registry) Merge(found []Adapter) []Adapter {
	r.mu.Lock()
	defer r.mu.Unlock()

	var inserted []Adapter
	for _, a := range found {
		if a.Name == "" {
			continue
		}
		if _, exists := r.entries[a.Name]; exists {
			continue
		}
		e := &entry{
			name:        a.Name,
			index:       a.Index,
			description: a.Description,
			supports:    a.SupportsEthernet,
			searchedSet: make(map[string]struct{}),
		}
		r.entries[a.Name] = e
		r.order = append(r.order, a.Name)
		inserted = append(inserted, e.snapshot())
	}
	return inserted
}

// ClaimCapture marks every Ethernet-capable adapter that has no live capture
// as listening and returns them. The caller owns one capture per returned
// adapter and must call ReleaseCapture when it exits.
func (r *Registry) ClaimCapture() []Adapter {
	r.mu.Lock()
	defer r.mu.Unlock()

	var claimed []Adapter
	for _, name := range r.order {
		e := r.entries[name]
		if e.supports && !e.listening {
			e.listening = true
			claimed = append(claimed, e.snapshot())
		}
	}
	return claimed
}

// ReleaseCapture clears the listening flag so the adapter can be claimed again.
func (r *Registry) ReleaseCapture(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return ErrUnknownAdapter
	}
	e.listening = false
	return nil
}

// ClaimProbe marks every adapter with pending candidates and no active probe
// as probing and returns their names.
func (r *Registry) ClaimProbe() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var claimed []string
	for _, name := range r.order {
		e := r.entries[name]
		if len(e.candidates) > 0 && !e.probing {
			e.probing = true
			claimed = append(claimed, name)
		}
	}
	return claimed
}

// AddCandidate appends address to the adapter's candidate queue unless it is
// already queued or already searched. It reports whether the address was added.
func (r *Registry) AddCandidate(name, address string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return false, ErrUnknownAdapter
	}
	if e.isCandidate(address) || e.isSearched(address) {
		return false, nil
	}
	e.candidates = append(e.candidates, address)
	return true, nil
}

// NextCandidate pops the oldest unsearched candidate of a probing adapter.
// The popped address stays reserved until FinishProbe, so a capture cannot
// queue it again meanwhile. When nothing is left to probe it clears the
// probing flag and returns false.
func (r *Registry) NextCandidate(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return "", false
	}

	pending := e.candidates[:0]
	for _, c := range e.candidates {
		if !e.isSearched(c) {
			pending = append(pending, c)
		}
	}
	e.candidates = pending

	if len(e.candidates) == 0 {
		e.probing = false
		return "", false
	}

	address := e.candidates[0]
	e.candidates = append([]string(nil), e.candidates[1:]...)
	e.inFlight = address
	return address, true
}

// FinishProbe records address as searched and clears the probing flag. A
// non-nil device is appended to the adapter's discovered devices.
func (r *Registry) FinishProbe(name, address string, device *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return ErrUnknownAdapter
	}
	if !e.isSearched(address) {
		e.searchedSet[address] = struct{}{}
		e.searched = append(e.searched, address)
	}
	if device != nil {
		e.devices = append(e.devices, *device)
	}
	if e.inFlight == address {
		e.inFlight = ""
	}
	e.probing = false
	return nil
}

// AbortProbe clears the probing flag without recording any address.
func (r *Registry) AbortProbe(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[name]; ok {
		e.probing = false
		e.inFlight = ""
	}
}

// Get returns a copy of the named adapter.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return Adapter{}, false
	}
	return e.snapshot(), true
}

// List returns copies of all adapters in insertion order.
func (r *Registry) List() []Adapter {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].snapshot())
	}
	return out
}

// Discovered returns copies of the adapters holding at least one device,
// ordered by interface index.
func (r *Registry) Discovered() []Adapter {
	r.mu.Lock()
	var out []Adapter
	for _, name := range r.order {
		if e := r.entries[name]; len(e.devices) > 0 {
			out = append(out, e.snapshot())
		}
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Len returns the number of known adapters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

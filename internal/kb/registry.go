// Package kb implements the KB Builder and the two-tier KB Registry.
package kb

import (
	"sort"

	"github.com/ragforge/kbengine/internal/vectorindex"
)

// Origin tags where a knowledge base entry came from.
type Origin string

const (
	OriginSystem Origin = "SYSTEM"
	OriginUser   Origin = "USER"
)

// Entry is a loaded knowledge base.
type Entry struct {
	Name       string
	SourcePath string
	Index      *vectorindex.Index
	Origin     Origin
}

// Listed is one row of list_kbs() output.
type Listed struct {
	Name   string
	Path   string
	Active bool
}

// Registry holds the two-tier system/user maps and the active-KB pointer.
// It is NOT internally synchronized: the engine facade serializes all
// access under its single mutex, so Registry stays a plain,
// easily-testable data structure.
type Registry struct {
	userKBs    map[string]*Entry
	systemKBs  map[string]*Entry
	activeName string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{userKBs: make(map[string]*Entry), systemKBs: make(map[string]*Entry)}
}

// MergedEntry looks up name in the merged view: user shadows system.
func (r *Registry) MergedEntry(name string) (*Entry, bool) {
	if e, ok := r.userKBs[name]; ok {
		return e, true
	}
	e, ok := r.systemKBs[name]
	return e, ok
}

// HasUser reports whether name is present in user_kbs specifically (used by
// add_kb's ALREADY_EXISTS check and by the system loader's collision skip).
func (r *Registry) HasUser(name string) bool {
	_, ok := r.userKBs[name]
	return ok
}

// List returns list_kbs() output: system-only entries alphabetically,
// then all user entries alphabetically (a user entry that shadows a
// system entry of the same name appears once, in the user segment).
func (r *Registry) List() []Listed {
	systemOnly := make([]string, 0, len(r.systemKBs))
	for name := range r.systemKBs {
		if _, shadowed := r.userKBs[name]; !shadowed {
			systemOnly = append(systemOnly, name)
		}
	}
	sort.Strings(systemOnly)

	userNames := make([]string, 0, len(r.userKBs))
	for name := range r.userKBs {
		userNames = append(userNames, name)
	}
	sort.Strings(userNames)

	out := make([]Listed, 0, len(systemOnly)+len(userNames))
	for _, n := range systemOnly {
		e := r.systemKBs[n]
		out = append(out, Listed{Name: n, Path: e.SourcePath, Active: n == r.activeName})
	}
	for _, n := range userNames {
		e := r.userKBs[n]
		out = append(out, Listed{Name: n, Path: e.SourcePath, Active: n == r.activeName})
	}
	return out
}

// Names returns every name in the merged view, lexicographically sorted.
func (r *Registry) Names() []string {
	seen := make(map[string]struct{}, len(r.userKBs)+len(r.systemKBs))
	for n := range r.userKBs {
		seen[n] = struct{}{}
	}
	for n := range r.systemKBs {
		seen[n] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// IsEmpty reports whether the merged view has no entries.
func (r *Registry) IsEmpty() bool {
	return len(r.userKBs) == 0 && len(r.systemKBs) == 0
}

// AddUser inserts e into user_kbs. Callers must have already checked
// !HasUser(e.Name) to produce ALREADY_EXISTS themselves.
func (r *Registry) AddUser(e *Entry) {
	e.Origin = OriginUser
	r.userKBs[e.Name] = e
}

// AddSystem inserts e into system_kbs unless a user KB of the same name
// already exists, in which case it is skipped and AddSystem returns
// false.
func (r *Registry) AddSystem(e *Entry) bool {
	if r.HasUser(e.Name) {
		return false
	}
	e.Origin = OriginSystem
	r.systemKBs[e.Name] = e
	return true
}

// Remove deletes name from whichever map holds it, clearing active_name if
// it pointed at the removed entry. Returns the entry's origin and whether
// it was found.
func (r *Registry) Remove(name string) (Origin, bool) {
	if _, ok := r.userKBs[name]; ok {
		delete(r.userKBs, name)
		if r.activeName == name {
			r.activeName = ""
		}
		return OriginUser, true
	}
	if _, ok := r.systemKBs[name]; ok {
		delete(r.systemKBs, name)
		if r.activeName == name {
			r.activeName = ""
		}
		return OriginSystem, true
	}
	return "", false
}

// Switch marks name active if present in the merged view.
func (r *Registry) Switch(name string) bool {
	if _, ok := r.MergedEntry(name); !ok {
		return false
	}
	r.activeName = name
	return true
}

// SetActive force-sets active_name without existence validation; used by
// the auto-activation paths (first add_kb into an empty registry, first
// system-KB load into an empty registry) where the caller already knows
// the name is valid.
func (r *Registry) SetActive(name string) { r.activeName = name }

// ClearActive empties active_name.
func (r *Registry) ClearActive() { r.activeName = "" }

// ActiveName returns the current active_name (possibly empty).
func (r *Registry) ActiveName() string { return r.activeName }

// TotalChunks sums ChunkCount across the merged view.
func (r *Registry) TotalChunks() int {
	total := 0
	for _, n := range r.Names() {
		e, _ := r.MergedEntry(n)
		total += e.Index.ChunkCount()
	}
	return total
}

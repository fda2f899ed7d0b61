package resolve

import (
	"path"
	"strings"

	"atlas/internal/engine/classify"
	"atlas/internal/shared/util"
)

// Resolver turns the raw outbound reference strings on each entity into
// confirmed edges. Resolution is total: strings that match no entity stay
// as opaque text and are never an error.
type Resolver struct {
	byName   map[string]*classify.Entity
	byExport map[string]*classify.Entity
	byFile   map[string]*classify.Entity
}

func NewResolver(entities []*classify.Entity) *Resolver {
	r := &Resolver{
		byName:   make(map[string]*classify.Entity, len(entities)),
		byExport: make(map[string]*classify.Entity),
		byFile:   make(map[string]*classify.Entity),
	}
	for _, e := range entities {
		if e == nil {
			continue
		}
		index(r.byName, e.Name, e)
		for _, exp := range e.Exports {
			index(r.byExport, exp, e)
		}
		base := strings.TrimSuffix(path.Base(e.File), path.Ext(e.File))
		index(r.byFile, base, e)
		index(r.byFile, capitalize(base), e)
	}
	return r
}

// index records the first entity claiming a key; later claimants never
// displace an earlier one.
func index(m map[string]*classify.Entity, key string, e *classify.Entity) {
	if key == "" {
		return
	}
	if _, taken := m[key]; !taken {
		m[key] = e
	}
}

// Resolve rewrites each entity's uses in place and fills in the derived
// usedBy index. Running it again over already-resolved entities is a no-op.
func Resolve(entities []*classify.Entity) {
	NewResolver(entities).Resolve(entities)
}

func (r *Resolver) Resolve(entities []*classify.Entity) {
	for _, e := range entities {
		if e == nil {
			continue
		}
		for i, raw := range e.Uses {
			target, ok := r.lookup(raw)
			if !ok {
				continue
			}
			e.Uses[i] = target.Name
			if target == e {
				continue
			}
			if !contains(target.UsedBy, e.Name) {
				target.UsedBy = append(target.UsedBy, e.Name)
			}
		}
	}

	for _, e := range entities {
		if e == nil {
			continue
		}
		e.Uses = util.Dedupe(stripSelf(e.Uses, e.Name))
		e.UsedBy = util.Dedupe(stripSelf(e.UsedBy, e.Name))
	}
}

// lookup tries the three indexes in fixed order; the first hit wins.
func (r *Resolver) lookup(raw string) (*classify.Entity, bool) {
	// 1. Declared entity name.
	if e, ok := r.byName[raw]; ok {
		return e, true
	}
	// 2. Exported identifier.
	if e, ok := r.byExport[raw]; ok {
		return e, true
	}
	// 3. Filename, as written or capitalized.
	if e, ok := r.byFile[raw]; ok {
		return e, true
	}
	if e, ok := r.byFile[capitalize(raw)]; ok {
		return e, true
	}
	return nil, false
}

func stripSelf(values []string, self string) []string {
	out := values[:0]
	for _, v := range values {
		if v != self {
			out = append(out, v)
		}
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/engine/classify"
)

func entity(name, file string, uses ...string) *classify.Entity {
	return &classify.Entity{
		Name:   name,
		Role:   classify.RoleReusableUnit,
		File:   file,
		Uses:   uses,
		UsedBy: []string{},
	}
}

func TestResolveImportEdge(t *testing.T) {
	a := entity("A", "components/a.tsx", "B", "b")
	b := entity("B", "components/b.tsx")

	Resolve([]*classify.Entity{a, b})

	assert.Equal(t, []string{"B"}, a.Uses)
	assert.Equal(t, []string{"A"}, b.UsedBy)
}

func TestResolveByExportName(t *testing.T) {
	a := entity("A", "components/a.tsx", "formatPrice")
	helpers := entity("Helpers", "lib/money.ts")
	helpers.Exports = []string{"formatPrice"}

	Resolve([]*classify.Entity{a, helpers})

	assert.Equal(t, []string{"Helpers"}, a.Uses)
	assert.Equal(t, []string{"A"}, helpers.UsedBy)
}

func TestResolveByFilename(t *testing.T) {
	a := entity("A", "components/a.tsx", "badge")
	badge := entity("StatusBadge", "components/badge.tsx")

	Resolve([]*classify.Entity{a, badge})

	assert.Equal(t, []string{"StatusBadge"}, a.Uses)
	assert.Equal(t, []string{"A"}, badge.UsedBy)
}

func TestDeclaredNameOutranksFilename(t *testing.T) {
	// "Card" is both an entity name and another entity's filename; the
	// declared-name index is consulted first.
	a := entity("A", "components/a.tsx", "Card")
	card := entity("Card", "components/fancy.tsx")
	decoy := entity("Wrapper", "components/Card.tsx")

	Resolve([]*classify.Entity{a, card, decoy})

	assert.Equal(t, []string{"Card"}, a.Uses)
	assert.Equal(t, []string{"A"}, card.UsedBy)
	assert.Empty(t, decoy.UsedBy)
}

func TestUnresolvedReferencesAreKept(t *testing.T) {
	a := entity("A", "components/a.tsx", "clsx", "B")
	b := entity("B", "components/b.tsx")

	Resolve([]*classify.Entity{a, b})

	assert.Equal(t, []string{"clsx", "B"}, a.Uses)
}

func TestNoSelfReferences(t *testing.T) {
	// A file importing its own name and its own filename must not edge to
	// itself.
	a := entity("A", "components/a.tsx", "A", "a", "B")
	b := entity("B", "components/b.tsx", "b")

	Resolve([]*classify.Entity{a, b})

	assert.NotContains(t, a.Uses, "A")
	assert.NotContains(t, a.UsedBy, "A")
	assert.NotContains(t, b.Uses, "B")
	assert.NotContains(t, b.UsedBy, "B")
	assert.Equal(t, []string{"B"}, a.Uses)
}

func TestUsedBySymmetry(t *testing.T) {
	a := entity("A", "components/a.tsx", "B", "C")
	b := entity("B", "components/b.tsx", "C")
	c := entity("C", "components/c.tsx")
	all := []*classify.Entity{a, b, c}

	Resolve(all)

	byName := map[string]*classify.Entity{}
	for _, e := range all {
		byName[e.Name] = e
	}
	for _, e := range all {
		for _, used := range e.UsedBy {
			user, ok := byName[used]
			require.True(t, ok, "usedBy names an unknown entity %q", used)
			assert.Contains(t, user.Uses, e.Name)
		}
		for _, use := range e.Uses {
			if target, ok := byName[use]; ok {
				assert.Contains(t, target.UsedBy, e.Name)
			}
		}
	}
}

func TestResolveIdempotent(t *testing.T) {
	a := entity("A", "components/a.tsx", "B", "b", "B")
	b := entity("B", "components/b.tsx", "A")
	all := []*classify.Entity{a, b}

	Resolve(all)
	usesA, usedByA := append([]string{}, a.Uses...), append([]string{}, a.UsedBy...)
	usesB, usedByB := append([]string{}, b.Uses...), append([]string{}, b.UsedBy...)

	Resolve(all)

	assert.Equal(t, usesA, a.Uses)
	assert.Equal(t, usedByA, a.UsedBy)
	assert.Equal(t, usesB, b.Uses)
	assert.Equal(t, usedByB, b.UsedBy)
}

func TestDefaultImportEndToEnd(t *testing.T) {
	// file a: import { B } from './b', default-exports A
	// file b: default-exports B
	a := entity("A", "src/a.ts", "B", "b")
	b := entity("B", "src/b.ts")

	Resolve([]*classify.Entity{a, b})

	assert.Equal(t, []string{"B"}, a.Uses)
	assert.Equal(t, []string{"A"}, b.UsedBy)
	assert.Empty(t, a.UsedBy)
	assert.Empty(t, b.Uses)
}

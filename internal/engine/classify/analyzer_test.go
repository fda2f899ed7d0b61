package classify

import (
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(Options{
		StructuralDirs: []string{"components", "app", "pages", "hooks", "context", "lib", "src/components"},
		ExcludeFiles:   []string{"**/*.d.ts"},
	})
	require.NoError(t, err)
	return a
}

func TestBareExportOutsideStructuralDirsNotClassified(t *testing.T) {
	a := newAnalyzer(t)

	_, ok := a.Analyze("scripts/x.ts", []byte("export const x = 1\n"))
	assert.False(t, ok)
}

func TestInspectVerdicts(t *testing.T) {
	a := newAnalyzer(t)

	_, verdict := a.Inspect("scripts/x.ts", []byte("export const x = 1\n"))
	assert.Equal(t, VerdictNotEntity, verdict)

	_, verdict = a.Inspect("components/Broken.ts", []byte("}}}} not a program {{{{"))
	assert.Equal(t, VerdictParseFailed, verdict)

	_, verdict = a.Inspect("docs/readme.md", []byte("# docs\n"))
	assert.Equal(t, VerdictSkipped, verdict)

	_, verdict = a.Inspect("components/Button.test.tsx", []byte("export default function Button() { return <button /> }\n"))
	assert.Equal(t, VerdictSkipped, verdict)

	entity, verdict := a.Inspect("components/Button.tsx", []byte("export default function Button() { return <button /> }\n"))
	assert.Equal(t, VerdictEntity, verdict)
	require.NotNil(t, entity)
}

func TestHookFilenameClassifiesAsStatefulHook(t *testing.T) {
	a := newAnalyzer(t)

	entity, ok := a.Analyze("useX.ts", []byte("export const x = 1\n"))
	require.True(t, ok)
	assert.Equal(t, RoleStatefulHook, entity.Role)
	assert.Equal(t, "x", entity.Name)
}

func TestHookExportClassifiesRegardlessOfFilename(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`export function useToggle(initial) {
  return initial
}
`)
	entity, ok := a.Analyze("state.ts", source)
	require.True(t, ok)
	assert.Equal(t, RoleStatefulHook, entity.Role)
	assert.Equal(t, "useToggle", entity.Name)
}

func TestPageClassification(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`export default function HomePage() {
  return <main>hello</main>
}
`)
	entity, ok := a.Analyze("app/page.tsx", source)
	require.True(t, ok)
	assert.Equal(t, RolePage, entity.Role)
	assert.Equal(t, "HomePage", entity.Name)
	assert.Equal(t, "app/page.tsx", entity.File)
}

func TestLayoutOutranksReusableUnit(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`export default function RootLayout({ children }) {
  return <html><body>{children}</body></html>
}
`)
	entity, ok := a.Analyze("app/layout.tsx", source)
	require.True(t, ok)
	assert.Equal(t, RoleLayout, entity.Role)
}

func TestComponentDefaultsToReusableUnit(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`interface ButtonProps {
  label: string
  disabled?: boolean
}

export default function Button(props: ButtonProps) {
  return <button disabled={props.disabled}>{props.label}</button>
}
`)
	entity, ok := a.Analyze("components/Button.tsx", source)
	require.True(t, ok)
	assert.Equal(t, RoleReusableUnit, entity.Role)
	assert.Equal(t, "Button", entity.Name)

	require.Len(t, entity.Props, 2)
	assert.Equal(t, PropField{Name: "label", Type: "string", Required: true}, entity.Props[0])
	assert.Equal(t, PropField{Name: "disabled", Type: "boolean", Required: false}, entity.Props[1])
}

func TestContextClassification(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`import { createContext } from 'react'

export const ThemeContext = createContext(null)
`)
	entity, ok := a.Analyze("context/theme.ts", source)
	require.True(t, ok)
	assert.Equal(t, RoleSharedCtx, entity.Role)
	assert.Equal(t, "ThemeContext", entity.Name)
}

func TestUtilityByPath(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`export function FormatDate(d: Date): string {
  return d.toISOString()
}
`)
	entity, ok := a.Analyze("lib/dates.ts", source)
	require.True(t, ok)
	assert.Equal(t, RoleUtility, entity.Role)
	assert.Equal(t, "FormatDate", entity.Name)
}

func TestUsesCollectsImportsAndCallees(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`import { Badge } from './badge'
import Avatar from '../Avatar'
import axios from 'axios'

export default function Card() {
  const data = formatData()
  return <div><Badge /><Avatar /></div>
}
`)
	entity, ok := a.Analyze("components/Card.tsx", source)
	require.True(t, ok)

	assert.Contains(t, entity.Uses, "Badge")
	assert.Contains(t, entity.Uses, "Avatar")
	assert.Contains(t, entity.Uses, "badge")
	assert.Contains(t, entity.Uses, "formatData")
	// bare package imports are not local references
	assert.NotContains(t, entity.Uses, "axios")
	// no duplicates after merging import and callee sources
	seen := map[string]int{}
	for _, u := range entity.Uses {
		seen[u]++
	}
	for name, n := range seen {
		assert.Equal(t, 1, n, "duplicate use %q", name)
	}
}

func TestRuntimeHintFromDirective(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`"use client"

export default function Counter() {
  const [n, setN] = useState(0)
  return <button onClick={() => setN(n + 1)}>{n}</button>
}
`)
	entity, ok := a.Analyze("components/Counter.tsx", source)
	require.True(t, ok)
	assert.Equal(t, "client", entity.RuntimeHint)
}

func TestHookUsageImpliesClientHint(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`export function useCounter() {
  const [n, setN] = useState(0)
  return { n, setN }
}
`)
	entity, ok := a.Analyze("hooks/useCounter.ts", source)
	require.True(t, ok)
	assert.Equal(t, RoleStatefulHook, entity.Role)
	assert.Equal(t, "client", entity.RuntimeHint)
}

func TestAppPathDefaultsToServerHint(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`export default function Dashboard() {
  return <main>dashboard</main>
}
`)
	entity, ok := a.Analyze("app/dashboard/page.tsx", source)
	require.True(t, ok)
	assert.Equal(t, RolePage, entity.Role)
	assert.Equal(t, "server", entity.RuntimeHint)
}

func TestTestFilesSkipped(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`export default function Button() { return <button /> }
`)
	_, ok := a.Analyze("components/Button.test.tsx", source)
	assert.False(t, ok)

	_, ok = a.Analyze("components/__tests__/Button.tsx", source)
	assert.False(t, ok)
}

func TestExcludePatterns(t *testing.T) {
	a := newAnalyzer(t)

	_, ok := a.Analyze("components/types.d.ts", []byte("export interface Foo {}\n"))
	assert.False(t, ok)
}

func TestNonSourceFilesIgnored(t *testing.T) {
	a := newAnalyzer(t)

	_, ok := a.Analyze("components/readme.md", []byte("# docs\n"))
	assert.False(t, ok)
}

func TestGarbageContentReturnsAbsent(t *testing.T) {
	a := newAnalyzer(t)

	_, ok := a.Analyze("components/Broken.ts", []byte("}}}} not a program {{{{"))
	assert.False(t, ok)
}

func TestDescriptionFromLeadingDocComment(t *testing.T) {
	a := newAnalyzer(t)

	source := []byte(`/**
 * Renders the site footer with legal links.
 */
export default function Footer() {
  return <footer />
}
`)
	entity, ok := a.Analyze("components/Footer.tsx", source)
	require.True(t, ok)
	assert.Equal(t, "Renders the site footer with legal links.", entity.Description)
}

func TestRolePrecedenceOrder(t *testing.T) {
	facts := &fileFacts{}
	cases := []struct {
		path string
		want Role
	}{
		{"app/api/users/route.ts", RoleUtility},
		{"app/dashboard/page.tsx", RolePage},
		{"pages/about.tsx", RolePage},
		{"app/layout.tsx", RoleLayout},
		{"app/loading.tsx", RolePage},
		{"hooks/whatever.ts", RoleStatefulHook},
		{"context/store.ts", RoleSharedCtx},
		{"lib/math.ts", RoleUtility},
		{"components/Widget.tsx", RoleReusableUnit},
	}
	for _, tc := range cases {
		in := roleInput{path: tc.path, base: strings.ToLower(trimExt(path.Base(tc.path))), facts: facts}
		assert.Equal(t, tc.want, determineRole(in), tc.path)
	}
}

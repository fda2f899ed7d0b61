package classify

import (
	"path"
	"strings"

	"github.com/gobwas/glob"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"atlas/internal/core/errors"
	"atlas/internal/shared/util"
)

// Options configures eligibility filtering.
type Options struct {
	// StructuralDirs are directory prefixes whose files are always candidates.
	StructuralDirs []string
	// ExcludeFiles are glob patterns for files never analyzed.
	ExcludeFiles []string
	// IncludeTests keeps .test/.spec files instead of skipping them.
	IncludeTests bool
}

// Analyzer classifies source files into structural entities.
type Analyzer struct {
	grammars *grammarSet
	opts     Options
	excludes []glob.Glob
}

func New(opts Options) (*Analyzer, error) {
	excludes := make([]glob.Glob, 0, len(opts.ExcludeFiles))
	for _, pattern := range opts.ExcludeFiles {
		g, err := glob.Compile(util.NormalizePatternPath(pattern), '/')
		if err != nil {
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodeValidationError, "invalid exclude pattern"), errors.CtxPath, pattern)
		}
		excludes = append(excludes, g)
	}
	return &Analyzer{
		grammars: loadGrammars(),
		opts:     opts,
		excludes: excludes,
	}, nil
}

// Verdict reports how far analysis of one file got.
type Verdict int

const (
	// VerdictSkipped covers files never parsed: unsupported language,
	// excluded patterns, test files.
	VerdictSkipped Verdict = iota
	// VerdictParseFailed means no grammar produced a clean tree.
	VerdictParseFailed
	// VerdictNotEntity means the file parsed but is not a structural
	// building block.
	VerdictNotEntity
	VerdictEntity
)

// Analyze inspects one file and returns its entity, or false when the file
// is not a structural building block. It never returns an error: parse
// failures and ineligible files both report absent.
func (a *Analyzer) Analyze(filePath string, content []byte) (*Entity, bool) {
	entity, verdict := a.Inspect(filePath, content)
	return entity, verdict == VerdictEntity
}

// Inspect is Analyze with the skip reason preserved.
func (a *Analyzer) Inspect(filePath string, content []byte) (*Entity, Verdict) {
	normalized := util.NormalizePatternPath(filePath)
	lang := detectLanguage(normalized)
	if lang == "" {
		return nil, VerdictSkipped
	}
	if a.excluded(normalized) {
		return nil, VerdictSkipped
	}
	if !a.opts.IncludeTests && isTestFile(normalized) {
		return nil, VerdictSkipped
	}

	facts := a.parse(lang, content)
	if facts == nil {
		return nil, VerdictParseFailed
	}

	origBase := trimExt(path.Base(normalized))
	if !a.pathEligible(normalized, origBase) && !contentEligible(facts) {
		return nil, VerdictNotEntity
	}

	name := entityName(normalized, facts)
	entity := &Entity{
		Name: name,
		Role: determineRole(roleInput{
			path:     strings.ToLower(normalized),
			base:     strings.ToLower(origBase),
			hookFile: isHookName(origBase),
			facts:    facts,
		}),
		Description: facts.description,
		Props:       propsFor(name, facts),
		Uses:        util.Dedupe(collectUses(facts)),
		UsedBy:      []string{},
		File:        normalized,
		Source:      string(content),
		RuntimeHint: runtimeHint(normalized, facts),
		Exports:     util.Dedupe(facts.exports),
	}
	return entity, VerdictEntity
}

// parse runs the strict grammar and retries once with the tolerant grammar
// when the strict tree contains errors. A nil return means neither strategy
// produced a clean tree.
func (a *Analyzer) parse(lang string, content []byte) *fileFacts {
	if facts, ok := a.parseWith(a.grammars.strict(lang), content); ok {
		return facts
	}
	if tolerant := a.grammars.tolerant(lang); tolerant != nil {
		if facts, ok := a.parseWith(tolerant, content); ok {
			return facts
		}
	}
	return nil
}

func (a *Analyzer) parseWith(grammar *sitter.Language, content []byte) (*fileFacts, bool) {
	if grammar == nil {
		return nil, false
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, false
	}
	return extractFacts(root, content), true
}

func (a *Analyzer) excluded(p string) bool {
	for _, g := range a.excludes {
		if g.Match(p) {
			return true
		}
	}
	return false
}

func (a *Analyzer) pathEligible(p, origBase string) bool {
	for _, dir := range a.opts.StructuralDirs {
		if util.HasPathPrefix(p, dir) {
			return true
		}
	}
	if isHookName(origBase) {
		return true
	}
	return frameworkSpecial(strings.ToLower(origBase))
}

func frameworkSpecial(base string) bool {
	switch base {
	case "page", "layout", "loading", "error", "not-found", "global-error",
		"template", "route", "_app", "_document":
		return true
	}
	return false
}

// contentEligible checks the source-derived signals: JSX-returning code,
// capitalized exported declarations, and hook exports. A bare lowercase
// export on its own does not qualify, so plain config modules outside the
// structural directories stay unclassified.
func contentEligible(facts *fileFacts) bool {
	if facts.hasJSX {
		return true
	}
	if len(facts.hooks) > 0 {
		return true
	}
	for _, name := range facts.exports {
		if isCapitalized(name) || isHookName(name) {
			return true
		}
	}
	if facts.defaultExport != "" && isCapitalized(facts.defaultExport) {
		return true
	}
	return false
}

// entityName applies name precedence: default export, then the first
// top-level function, then the first top-level const, then the filename.
func entityName(p string, facts *fileFacts) string {
	if facts.defaultExport != "" {
		return facts.defaultExport
	}
	if len(facts.functions) > 0 {
		return facts.functions[0]
	}
	if len(facts.consts) > 0 {
		return facts.consts[0]
	}
	return capitalize(trimExt(path.Base(p)))
}

// propsFor returns the members of <Name>Props, falling back to a bare
// Props declaration. Absence is an empty list, never an error.
func propsFor(name string, facts *fileFacts) []PropField {
	if fields, ok := facts.interfaces[name+"Props"]; ok {
		return fields
	}
	if fields, ok := facts.interfaces["Props"]; ok {
		return fields
	}
	return []PropField{}
}

// collectUses gathers raw outbound references: local import bindings, names
// derived from imported module paths, and plain lowercase callees. The set
// is deliberately over-inclusive; the resolver discards what it cannot match.
func collectUses(facts *fileFacts) []string {
	var uses []string
	for _, imp := range facts.imports {
		if !isLocalModule(imp.Module) {
			continue
		}
		if imp.DefaultName != "" {
			uses = append(uses, imp.DefaultName)
		}
		uses = append(uses, imp.Named...)

		base := trimExt(path.Base(imp.Module))
		if base != "" && base != "." && base != "index" {
			uses = append(uses, base, capitalize(base))
		}
	}
	for _, callee := range facts.calls {
		if isCapitalized(callee) || reservedCallee(callee) {
			continue
		}
		uses = append(uses, callee)
	}
	return uses
}

func isLocalModule(module string) bool {
	return strings.HasPrefix(module, "./") || strings.HasPrefix(module, "../") ||
		strings.HasPrefix(module, "@/") || strings.HasPrefix(module, "~/")
}

func runtimeHint(p string, facts *fileFacts) string {
	for _, d := range facts.directives {
		switch d {
		case "use client":
			return "client"
		case "use server":
			return "server"
		}
	}
	for _, c := range facts.calls {
		if isHookName(c) {
			return "client"
		}
	}
	if util.HasPathPrefix(p, "app") || util.HasPathPrefix(p, "src/app") {
		return "server"
	}
	return ""
}

func isTestFile(p string) bool {
	base := strings.ToLower(path.Base(p))
	if strings.Contains(base, ".test.") || strings.Contains(base, ".spec.") {
		return true
	}
	return strings.Contains(p, "__tests__/") || strings.Contains(p, "__mocks__/")
}

// reservedCallees are language keywords and ambient globals that would
// otherwise pollute the reference set.
var reservedCallees = map[string]struct{}{
	"require": {}, "import": {}, "fetch": {}, "console": {}, "alert": {},
	"parseInt": {}, "parseFloat": {}, "isNaN": {}, "encodeURIComponent": {},
	"decodeURIComponent": {}, "setTimeout": {}, "setInterval": {},
	"clearTimeout": {}, "clearInterval": {}, "structuredClone": {},
	"if": {}, "for": {}, "while": {}, "switch": {}, "return": {},
	"typeof": {}, "eval": {},
}

func reservedCallee(name string) bool {
	_, ok := reservedCallees[name]
	return ok
}

func isCapitalized(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func capitalize(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func trimExt(base string) string {
	if ext := path.Ext(base); ext != "" {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

package classify

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type importFact struct {
	Module      string
	DefaultName string
	Named       []string
}

// fileFacts is everything the classifier needs from one parsed source file.
type fileFacts struct {
	defaultExport string
	exports       []string
	hooks         []string
	functions     []string
	consts        []string
	classes       []string
	hasJSX        bool
	directives    []string
	imports       []importFact
	calls         []string
	interfaces    map[string][]PropField
	description   string
}

// extractFacts walks the AST: one shallow pass over top-level declarations,
// one deep pass for JSX presence and call expressions.
func extractFacts(root *sitter.Node, source []byte) *fileFacts {
	facts := &fileFacts{interfaces: make(map[string][]PropField)}
	if root == nil {
		return facts
	}

	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		node := root.Child(i)
		if node == nil {
			continue
		}
		switch node.Kind() {
		case "comment":
			if facts.description == "" && i == 0 {
				facts.description = docFirstLine(nodeText(node, source))
			}

		case "expression_statement":
			if d := directiveText(node, source); d != "" {
				facts.directives = append(facts.directives, d)
			}

		case "import_statement":
			if imp, ok := extractImport(node, source); ok {
				facts.imports = append(facts.imports, imp)
			}

		case "export_statement":
			extractExport(node, source, facts)

		case "function_declaration", "generator_function_declaration":
			if name := fieldText(node, "name", source); name != "" {
				facts.functions = append(facts.functions, name)
			}

		case "lexical_declaration", "variable_declaration":
			facts.consts = append(facts.consts, declaratorNames(node, source)...)

		case "class_declaration":
			if name := fieldText(node, "name", source); name != "" {
				facts.classes = append(facts.classes, name)
			}

		case "interface_declaration":
			if name := fieldText(node, "name", source); name != "" {
				facts.interfaces[name] = extractMembers(node, source)
			}

		case "type_alias_declaration":
			if name := fieldText(node, "name", source); name != "" {
				if value := node.ChildByFieldName("value"); value != nil && value.Kind() == "object_type" {
					facts.interfaces[name] = extractMembers(node, source)
				}
			}
		}
	}

	walkDeep(root, source, facts)

	for _, name := range facts.exports {
		if isHookName(name) {
			facts.hooks = append(facts.hooks, name)
		}
	}
	return facts
}

// extractExport handles every export_statement form: default declarations,
// default identifiers, exported declarations, and export clauses.
func extractExport(node *sitter.Node, source []byte, facts *fileFacts) {
	isDefault := false
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := node.Child(i)
		if ch != nil && ch.Kind() == "default" {
			isDefault = true
		}
	}

	if decl := node.ChildByFieldName("declaration"); decl != nil {
		switch decl.Kind() {
		case "function_declaration", "generator_function_declaration":
			name := fieldText(decl, "name", source)
			if name != "" {
				facts.functions = append(facts.functions, name)
				facts.exports = append(facts.exports, name)
				if isDefault {
					facts.defaultExport = name
				}
			} else if isDefault {
				facts.defaultExport = "" // anonymous default function
			}
			return
		case "class_declaration":
			if name := fieldText(decl, "name", source); name != "" {
				facts.classes = append(facts.classes, name)
				facts.exports = append(facts.exports, name)
				if isDefault {
					facts.defaultExport = name
				}
			}
			return
		case "lexical_declaration", "variable_declaration":
			names := declaratorNames(decl, source)
			facts.consts = append(facts.consts, names...)
			facts.exports = append(facts.exports, names...)
			return
		case "interface_declaration":
			if name := fieldText(decl, "name", source); name != "" {
				facts.interfaces[name] = extractMembers(decl, source)
			}
			return
		case "type_alias_declaration":
			if name := fieldText(decl, "name", source); name != "" {
				if value := decl.ChildByFieldName("value"); value != nil && value.Kind() == "object_type" {
					facts.interfaces[name] = extractMembers(decl, source)
				}
			}
			return
		}
	}

	if value := node.ChildByFieldName("value"); value != nil && value.Kind() == "identifier" {
		name := nodeText(value, source)
		facts.exports = append(facts.exports, name)
		if isDefault {
			facts.defaultExport = name
		}
		return
	}

	// export { A, B as C }
	for i := uint(0); i < count; i++ {
		ch := node.Child(i)
		if ch == nil || ch.Kind() != "export_clause" {
			continue
		}
		for j := uint(0); j < ch.ChildCount(); j++ {
			spec := ch.Child(j)
			if spec == nil || spec.Kind() != "export_specifier" {
				continue
			}
			if name := fieldText(spec, "name", source); name != "" {
				facts.exports = append(facts.exports, name)
			}
		}
	}
}

// extractImport reads one import_statement into an importFact.
func extractImport(node *sitter.Node, source []byte) (importFact, bool) {
	src := node.ChildByFieldName("source")
	if src == nil {
		return importFact{}, false
	}
	fact := importFact{Module: strings.Trim(nodeText(src, source), `"'`)}

	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		clause := node.Child(i)
		if clause == nil || clause.Kind() != "import_clause" {
			continue
		}
		for j := uint(0); j < clause.ChildCount(); j++ {
			ch := clause.Child(j)
			if ch == nil {
				continue
			}
			switch ch.Kind() {
			case "identifier":
				fact.DefaultName = nodeText(ch, source)
			case "named_imports":
				for k := uint(0); k < ch.ChildCount(); k++ {
					spec := ch.Child(k)
					if spec == nil || spec.Kind() != "import_specifier" {
						continue
					}
					// `import { A as B }` binds B locally.
					name := fieldText(spec, "alias", source)
					if name == "" {
						name = fieldText(spec, "name", source)
					}
					if name != "" {
						fact.Named = append(fact.Named, name)
					}
				}
			case "namespace_import":
				for k := uint(0); k < ch.ChildCount(); k++ {
					id := ch.Child(k)
					if id != nil && id.Kind() == "identifier" {
						fact.DefaultName = nodeText(id, source)
					}
				}
			}
		}
	}
	return fact, true
}

// extractMembers collects PropFields from an interface or object-type body.
func extractMembers(decl *sitter.Node, source []byte) []PropField {
	var body *sitter.Node
	if b := decl.ChildByFieldName("body"); b != nil {
		body = b
	} else if v := decl.ChildByFieldName("value"); v != nil {
		body = v
	}
	if body == nil {
		return nil
	}

	fields := make([]PropField, 0, body.ChildCount())
	for i := uint(0); i < body.ChildCount(); i++ {
		member := body.Child(i)
		if member == nil || member.Kind() != "property_signature" {
			continue
		}
		name := fieldText(member, "name", source)
		if name == "" {
			continue
		}
		typeText := ""
		if ta := member.ChildByFieldName("type"); ta != nil {
			typeText = strings.TrimSpace(strings.TrimPrefix(nodeText(ta, source), ":"))
		}
		required := true
		for j := uint(0); j < member.ChildCount(); j++ {
			if ch := member.Child(j); ch != nil && ch.Kind() == "?" {
				required = false
			}
		}
		fields = append(fields, PropField{Name: name, Type: typeText, Required: required})
	}
	return fields
}

// walkDeep visits every node for JSX presence and call-expression callees.
func walkDeep(node *sitter.Node, source []byte, facts *fileFacts) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
		facts.hasJSX = true
	case "call_expression":
		if fn := node.ChildByFieldName("function"); fn != nil && fn.Kind() == "identifier" {
			facts.calls = append(facts.calls, nodeText(fn, source))
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		walkDeep(node.Child(i), source, facts)
	}
}

func declaratorNames(decl *sitter.Node, source []byte) []string {
	var names []string
	for i := uint(0); i < decl.ChildCount(); i++ {
		ch := decl.Child(i)
		if ch == nil || ch.Kind() != "variable_declarator" {
			continue
		}
		if name := fieldText(ch, "name", source); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// directiveText returns the string value of a bare string expression
// statement ("use client" etc), or "".
func directiveText(node *sitter.Node, source []byte) string {
	if node.ChildCount() == 0 {
		return ""
	}
	ch := node.Child(0)
	if ch == nil || ch.Kind() != "string" {
		return ""
	}
	return strings.Trim(nodeText(ch, source), `"'`)
}

// docFirstLine extracts the first prose line from a leading block comment.
func docFirstLine(comment string) string {
	if !strings.HasPrefix(comment, "/**") {
		return ""
	}
	for _, line := range strings.Split(comment, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "/*"))
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "@") {
			return line
		}
	}
	return ""
}

func fieldText(node *sitter.Node, field string, source []byte) string {
	return nodeText(node.ChildByFieldName(field), source)
}

// nodeText returns the source bytes spanned by a node as a trimmed string.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start >= end || end > uint(len(source)) {
		return ""
	}
	return strings.TrimSpace(string(source[start:end]))
}

func isHookName(name string) bool {
	return len(name) > 3 && strings.HasPrefix(name, "use") && name[3] >= 'A' && name[3] <= 'Z'
}

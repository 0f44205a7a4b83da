package chunk

import (
	"context"
	"log/slog"
)

// EntityExtractor pulls function and class declarations out of source files
// via tree-sitter. Extraction is fail-soft: a file that cannot be parsed
// contributes no entities and never aborts a run.
type EntityExtractor struct {
	parser *Parser
}

// NewEntityExtractor creates a new extractor.
func NewEntityExtractor() *EntityExtractor {
	return &EntityExtractor{parser: NewParser()}
}

// Close releases parser resources.
func (e *EntityExtractor) Close() {
	e.parser.Close()
}

// Extract parses source and returns its entities in document order.
// Languages outside the grammar set yield an empty list.
func (e *EntityExtractor) Extract(ctx context.Context, source []byte, path string, language Language) ([]Entity, error) {
	if !language.HasEntities() {
		return []Entity{}, nil
	}

	tree, err := e.parser.Parse(ctx, source, language)
	if err != nil {
		return nil, err
	}

	var entities []Entity
	switch language {
	case LangPython:
		entities = extractPython(tree, path)
	case LangJavaScript, LangJSX, LangTypeScript, LangTSX:
		entities = extractJavaScript(tree, path)
	case LangGo:
		entities = extractGo(tree, path)
	}

	if entities == nil {
		entities = []Entity{}
	}
	return entities, nil
}

// ExtractAll runs extraction over every file and groups entities by relative
// path. Only files that produced entities appear in the result; parse
// failures are logged and skipped.
func (e *EntityExtractor) ExtractAll(ctx context.Context, files []*FileInput) map[string][]Entity {
	byFile := make(map[string][]Entity)
	var functions, classes int

	for _, f := range files {
		lang := f.Language
		if lang == "" {
			lang = LanguageForPath(f.Path)
		}
		if !lang.HasEntities() {
			continue
		}

		entities, err := e.Extract(ctx, f.Content, f.Path, lang)
		if err != nil {
			slog.Warn("entity_extraction_failed",
				slog.String("path", f.Path),
				slog.String("error", err.Error()))
			continue
		}
		if len(entities) == 0 {
			continue
		}

		byFile[f.Path] = entities
		for _, ent := range entities {
			switch ent.Kind {
			case EntityFunction:
				functions++
			case EntityClass:
				classes++
			}
		}
	}

	if functions > 0 || classes > 0 {
		slog.Debug("entity_extraction_complete",
			slog.Int("files", len(byFile)),
			slog.Int("functions", functions),
			slog.Int("classes", classes))
	}
	return byFile
}

func extractPython(tree *Tree, path string) []Entity {
	var out []Entity
	tree.Root.Walk(func(n *Node) bool {
		switch n.Type {
		case "function_definition":
			// Methods are function_definition nodes inside a class body, so
			// they come out as function entities too.
			if name := namedChild(n, tree.Source, "identifier"); name != "" {
				out = append(out, entityAt(EntityFunction, name, n, path))
			}
		case "class_definition":
			if name := namedChild(n, tree.Source, "identifier"); name != "" {
				out = append(out, entityAt(EntityClass, name, n, path))
			}
		}
		return true
	})
	return out
}

// extractJavaScript covers JavaScript, JSX, TypeScript and TSX; the grammars
// share their statement-level node types.
func extractJavaScript(tree *Tree, path string) []Entity {
	var out []Entity
	tree.Root.Walk(func(n *Node) bool {
		switch n.Type {
		case "function_declaration", "function", "function_expression":
			// Anonymous function expressions have no identifier child and
			// are skipped here; the declaration they are assigned to is
			// handled below.
			if name := namedChild(n, tree.Source, "identifier"); name != "" {
				out = append(out, entityAt(EntityFunction, name, n, path))
			}
		case "method_definition":
			if name := namedChild(n, tree.Source, "property_identifier"); name != "" {
				out = append(out, entityAt(EntityFunction, name, n, path))
			}
		case "class_declaration":
			if name := namedChild(n, tree.Source, "identifier", "type_identifier"); name != "" {
				out = append(out, entityAt(EntityClass, name, n, path))
			}
		case "lexical_declaration", "variable_declaration":
			out = append(out, variableFunctions(n, tree.Source, path)...)
		}
		return true
	})
	return out
}

// variableFunctions yields a function entity for each declarator whose
// initializer is an arrow function or function expression. The entity spans
// the whole declaration statement, not just the initializer.
func variableFunctions(n *Node, source []byte, path string) []Entity {
	var out []Entity
	for _, decl := range n.Children {
		if decl.Type != "variable_declarator" {
			continue
		}
		var name string
		var isFunc bool
		for _, c := range decl.Children {
			switch c.Type {
			case "identifier":
				if name == "" {
					name = c.GetContent(source)
				}
			case "arrow_function", "function", "function_expression":
				isFunc = true
			}
		}
		if name != "" && isFunc {
			out = append(out, entityAt(EntityFunction, name, n, path))
		}
	}
	return out
}

// extractGo maps Go declarations onto the two entity kinds: functions and
// methods become function entities, struct and interface types become class
// entities. Other type declarations are not surfaced.
func extractGo(tree *Tree, path string) []Entity {
	var out []Entity
	tree.Root.Walk(func(n *Node) bool {
		switch n.Type {
		case "function_declaration":
			if name := namedChild(n, tree.Source, "identifier"); name != "" {
				out = append(out, entityAt(EntityFunction, name, n, path))
			}
		case "method_declaration":
			if name := namedChild(n, tree.Source, "field_identifier"); name != "" {
				out = append(out, entityAt(EntityFunction, name, n, path))
			}
		case "type_declaration":
			for _, spec := range n.FindChildrenByType("type_spec") {
				if spec.FindChildByType("struct_type") == nil && spec.FindChildByType("interface_type") == nil {
					continue
				}
				if name := namedChild(spec, tree.Source, "type_identifier"); name != "" {
					out = append(out, entityAt(EntityClass, name, spec, path))
				}
			}
		}
		return true
	})
	return out
}

// entityAt builds an entity spanning a node, converting tree-sitter's
// 0-indexed rows to 1-indexed lines.
func entityAt(kind EntityKind, name string, n *Node, path string) Entity {
	return Entity{
		Kind:      kind,
		Name:      name,
		StartLine: int(n.StartPoint.Row) + 1,
		EndLine:   int(n.EndPoint.Row) + 1,
		FilePath:  path,
	}
}

// namedChild returns the content of the first direct child matching any of
// the given node types.
func namedChild(n *Node, source []byte, types ...string) string {
	for _, child := range n.Children {
		for _, t := range types {
			if child.Type == t {
				return child.GetContent(source)
			}
		}
	}
	return ""
}

package chunk

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language tags a supported source language. The set is closed: every lookup
// goes through the tables in this file, and unknown extensions map to
// LangText rather than failing.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangJSX        Language = "jsx"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangGo         Language = "go"
	LangJava       Language = "java"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangCSharp     Language = "csharp"
	LangPHP        Language = "php"
	LangRuby       Language = "ruby"
	LangRust       Language = "rust"
	LangSwift      Language = "swift"
	LangKotlin     Language = "kotlin"
	LangMarkdown   Language = "markdown"
	LangText       Language = "text"
)

// extToLang covers exactly the ingestion extension allowlist.
var extToLang = map[string]Language{
	".py":    LangPython,
	".js":    LangJavaScript,
	".jsx":   LangJSX,
	".ts":    LangTypeScript,
	".tsx":   LangTSX,
	".go":    LangGo,
	".java":  LangJava,
	".c":     LangC,
	".h":     LangC,
	".cpp":   LangCPP,
	".cs":    LangCSharp,
	".php":   LangPHP,
	".rb":    LangRuby,
	".rs":    LangRust,
	".swift": LangSwift,
	".kt":    LangKotlin,
	".md":    LangMarkdown,
	".txt":   LangText,
}

// LanguageForPath returns the language tag for a file path based on its
// extension. Unknown extensions map to LangText.
func LanguageForPath(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extToLang[ext]; ok {
		return lang
	}
	return LangText
}

// grammars holds the tree-sitter grammars for entity-bearing languages.
// JSX shares the JavaScript grammar; TSX has its own.
var grammars = map[Language]*sitter.Language{
	LangPython:     python.GetLanguage(),
	LangJavaScript: javascript.GetLanguage(),
	LangJSX:        javascript.GetLanguage(),
	LangTypeScript: typescript.GetLanguage(),
	LangTSX:        tsx.GetLanguage(),
	LangGo:         golang.GetLanguage(),
}

// Grammar returns the tree-sitter grammar for l, if entity extraction
// supports it.
func (l Language) Grammar() (*sitter.Language, bool) {
	g, ok := grammars[l]
	return g, ok
}

// HasEntities reports whether entity extraction supports l.
func (l Language) HasEntities() bool {
	_, ok := grammars[l]
	return ok
}

// genericSeparators is the fallback list: paragraph, line, word, character.
var genericSeparators = []string{"\n\n", "\n", " ", ""}

// langSeparators lists splitter separator patterns per language, tried in
// order. Patterns are regular expressions; a separator stays attached to the
// front of the segment it introduces, so chunks open at declaration
// boundaries. Every list ends with "" to guarantee chunks fit the size
// budget.
var langSeparators = map[Language][]string{
	LangPython: {
		"\nclass ", "\ndef ", "\n\tdef ",
		"\n\n", "\n", " ", "",
	},
	LangGo: {
		"\nfunc ", "\nvar ", "\nconst ", "\ntype ",
		"\nif ", "\nfor ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	LangJavaScript: jsSeparators,
	LangJSX:        jsSeparators,
	LangTypeScript: tsSeparators,
	LangTSX:        tsSeparators,
	LangJava: {
		"\nclass ", "\npublic ", "\nprotected ", "\nprivate ", "\nstatic ",
		"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	LangC:   cSeparators,
	LangCPP: cSeparators,
	LangCSharp: {
		"\ninterface ", "\nenum ", "\ndelegate ", "\nevent ",
		"\nclass ", "\nabstract ", "\npublic ", "\nprotected ", "\nprivate ", "\nstatic ",
		"\nreturn ", "\nif ", "\ncontinue ", "\nfor ", "\nforeach ", "\nwhile ",
		"\nswitch ", "\nbreak ", "\ncase ", "\nelse ",
		"\ntry ", "\nthrow ", "\nfinally ", "\ncatch ",
		"\n\n", "\n", " ", "",
	},
	LangPHP: {
		"\nfunction ", "\nclass ",
		"\nif ", "\nforeach ", "\nwhile ", "\ndo ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	LangRuby: {
		"\ndef ", "\nclass ",
		"\nif ", "\nunless ", "\nwhile ", "\nfor ", "\ndo ", "\nbegin ", "\nrescue ",
		"\n\n", "\n", " ", "",
	},
	LangRust: {
		"\nfn ", "\nconst ", "\nlet ",
		"\nif ", "\nwhile ", "\nfor ", "\nloop ", "\nmatch ",
		"\n\n", "\n", " ", "",
	},
	LangSwift: {
		"\nfunc ", "\nclass ", "\nstruct ", "\nenum ",
		"\nif ", "\nfor ", "\nwhile ", "\ndo ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	LangKotlin: {
		"\nclass ", "\nfun ", "\nval ", "\nvar ",
		"\nif ", "\nfor ", "\nwhile ", "\nwhen ", "\ncase ", "\nelse ",
		"\n\n", "\n", " ", "",
	},
	LangMarkdown: {
		"\n#{1,6} ", "```\n",
		"\n\\*\\*\\*+\n", "\n---+\n", "\n___+\n",
		"\n\n", "\n", " ", "",
	},
}

var jsSeparators = []string{
	"\nfunction ", "\nconst ", "\nlet ", "\nvar ", "\nclass ",
	"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ", "\ndefault ",
	"\n\n", "\n", " ", "",
}

var tsSeparators = []string{
	"\nenum ", "\ninterface ", "\nnamespace ", "\ntype ",
	"\nclass ", "\nfunction ", "\nconst ", "\nlet ", "\nvar ",
	"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ", "\ndefault ",
	"\n\n", "\n", " ", "",
}

var cSeparators = []string{
	"\nclass ", "\nvoid ", "\nint ", "\nfloat ", "\ndouble ",
	"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ",
	"\n\n", "\n", " ", "",
}

// Separators returns the splitter separator patterns for l. Languages without
// a dedicated list use the generic separators.
func (l Language) Separators() []string {
	if seps, ok := langSeparators[l]; ok {
		return seps
	}
	return genericSeparators
}

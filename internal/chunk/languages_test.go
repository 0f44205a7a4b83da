package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Extension Mapping
// ============================================================================

func TestLanguageForPath(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"main.py", LangPython},
		{"app.js", LangJavaScript},
		{"index.ts", LangTypeScript},
		{"App.tsx", LangTSX},
		{"Button.jsx", LangJSX},
		{"README.md", LangMarkdown},
		{"notes.txt", LangText},
		{"Main.java", LangJava},
		{"server.go", LangGo},
		{"engine.cpp", LangCPP},
		{"util.c", LangC},
		{"defs.h", LangC},
		{"Program.cs", LangCSharp},
		{"index.php", LangPHP},
		{"model.rb", LangRuby},
		{"lib.rs", LangRust},
		{"View.swift", LangSwift},
		{"Main.kt", LangKotlin},
		// Case-insensitive
		{"LEGACY.PY", LangPython},
		{"Page.Tsx", LangTSX},
		// Unknown or missing extensions fall back to plain text
		{"data.xyz", LangText},
		{"Makefile", LangText},
		{"nested/dir/app.py", LangPython},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, LanguageForPath(tt.path))
		})
	}
}

// ============================================================================
// Grammars
// ============================================================================

func TestLanguage_Grammar(t *testing.T) {
	withGrammar := []Language{LangPython, LangJavaScript, LangJSX, LangTypeScript, LangTSX, LangGo}
	for _, lang := range withGrammar {
		t.Run(string(lang), func(t *testing.T) {
			g, ok := lang.Grammar()
			assert.True(t, ok)
			assert.NotNil(t, g)
			assert.True(t, lang.HasEntities())
		})
	}

	withoutGrammar := []Language{LangJava, LangCPP, LangC, LangCSharp, LangPHP, LangRuby, LangRust, LangSwift, LangKotlin, LangMarkdown, LangText}
	for _, lang := range withoutGrammar {
		t.Run(string(lang), func(t *testing.T) {
			_, ok := lang.Grammar()
			assert.False(t, ok)
			assert.False(t, lang.HasEntities())
		})
	}
}

// ============================================================================
// Separators
// ============================================================================

func TestLanguage_Separators(t *testing.T) {
	t.Run("python prefers declaration boundaries", func(t *testing.T) {
		seps := LangPython.Separators()
		require.NotEmpty(t, seps)
		assert.Equal(t, "\nclass ", seps[0])
		assert.Contains(t, seps, "\ndef ")
	})

	t.Run("go lists top-level keywords", func(t *testing.T) {
		seps := LangGo.Separators()
		assert.Equal(t, "\nfunc ", seps[0])
		assert.Contains(t, seps, "\ntype ")
	})

	t.Run("markdown starts at headings", func(t *testing.T) {
		seps := LangMarkdown.Separators()
		assert.Equal(t, "\n#{1,6} ", seps[0])
	})

	t.Run("plain text falls back to the generic list", func(t *testing.T) {
		seps := LangText.Separators()
		assert.Equal(t, []string{"\n\n", "\n", " ", ""}, seps)
	})

	t.Run("every list ends with the character split", func(t *testing.T) {
		all := []Language{
			LangPython, LangJavaScript, LangJSX, LangTypeScript, LangTSX,
			LangMarkdown, LangText, LangJava, LangGo, LangCPP, LangC,
			LangCSharp, LangPHP, LangRuby, LangRust, LangSwift, LangKotlin,
		}
		for _, lang := range all {
			seps := lang.Separators()
			require.NotEmpty(t, seps, "language %s", lang)
			assert.Equal(t, "", seps[len(seps)-1], "language %s", lang)
		}
	})
}

// Package domain contains entity without logic, just meta-data
package domain

// LanguageID identifies one of the supported editor languages.
type LanguageID string

const (
	LangJavaScript LanguageID = "javascript"
	LangPython     LanguageID = "python"
	LangJava       LanguageID = "java"
	LangCPP        LanguageID = "cpp"
	LangC          LanguageID = "c"
	LangTypeScript LanguageID = "typescript"
	LangGo         LanguageID = "go"
	LangRuby       LanguageID = "ruby"
	LangRust       LanguageID = "rust"
)

// DefaultLanguage is the language every fresh room starts on.
const DefaultLanguage = LangJava

var snippets = map[LanguageID]string{
	LangJavaScript: "// Write your JavaScript code here",
	LangPython:     "# Write your Python code here",
	LangJava:       "// Write your Java code here",
	LangCPP:        "// Write your C++ code here",
	LangC:          "// Write your C code here",
	LangTypeScript: "// Write your TypeScript code here",
	LangGo:         "// Write your Go code here",
	LangRuby:       "# Write your Ruby code here",
	LangRust:       "// Write your Rust code here",
}

// Snippet returns the default buffer template for a language.
// Unknown languages map to an empty buffer, not an error.
func Snippet(id LanguageID) string {
	return snippets[id]
}

// Known reports whether id is one of the supported languages.
func Known(id LanguageID) bool {
	_, ok := snippets[id]
	return ok
}

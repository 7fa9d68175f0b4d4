package chunk

import (
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/chunk/parserpool"
)

func init() {
	Register(&tsPlugin{})
}

var tsTestFilePattern = regexp.MustCompile(`(?i)(__tests__/|\.(spec|test)\.(ts|tsx|js|jsx|mjs)$)`)

// tsSpec is shared by every grammar the TS/JS family plugin dispatches to;
// all three grammars use the same node-type names for these constructs.
var tsSpec = NodeSpec{
	FunctionTypes: map[string]bool{
		"function_declaration": true,
		"function":             true,
		"generator_function":   true,
		"method_definition":    true,
	},
	ClassTypes: map[string]bool{
		"class_declaration": true,
	},
	DecoratedTypes: map[string]bool{
		"decorated_definition": true,
	},
	ExportWrapperTypes: map[string]bool{
		"export_statement": true,
	},
	NameField:    "name",
	HeaderPrefix: "// file: ",
	IsImportLine: func(trimmed string) bool {
		return strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "import(") ||
			strings.HasPrefix(trimmed, "export ") ||
			strings.HasPrefix(trimmed, "const ") && strings.Contains(trimmed, "require(")
	},
}

// tsPlugin covers the TypeScript/JavaScript family: .ts, .tsx, .js, .jsx,
// .mjs, .mts. Dispatch to the TSX grammar is reserved for JSX-bearing
// extensions (.tsx/.jsx); everything else parses with the TS grammar, per
// the documented extension table.
type tsPlugin struct{}

func (p *tsPlugin) Name() string { return "typescript" }

func (p *tsPlugin) Extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".mts"}
}

func (p *tsPlugin) IsTestFile(path string) bool {
	return tsTestFilePattern.MatchString(path)
}

func (p *tsPlugin) ChunkFile(path string, content []byte, maxTokens int) ([]Chunk, error) {
	grammar := parserpool.LangTypeScript
	if strings.HasSuffix(path, ".tsx") || strings.HasSuffix(path, ".jsx") {
		grammar = parserpool.LangTSX
	}

	return ChunkWithCST(path, content, maxTokens, "typescript", grammar, tsSpec)
}

// chunkAsJavaScript parses content with the standalone JavaScript grammar,
// used for extensionless scripts whose language enry detects as JavaScript
// (e.g. a shebang'd `#!/usr/bin/env node` tool with no file extension).
func chunkAsJavaScript(path string, content []byte, maxTokens int) ([]Chunk, error) {
	return ChunkWithCST(path, content, maxTokens, "javascript", parserpool.LangJavaScript, tsSpec)
}

package chunk

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/chunk/parserpool"
)

const (
	smallFileLineThreshold = 50
	defaultPreludeLines    = 10
	charsPerToken          = 4
	truncationMarker       = "\n... [truncated]"
)

// NodeSpec parameterizes the shared chunking policy by the CST node-type
// names a given grammar uses for functions, classes, and decorated
// definitions, plus the field name holding a definition's identifier.
type NodeSpec struct {
	FunctionTypes map[string]bool
	ClassTypes    map[string]bool
	// DecoratedTypes wrap a function/class under a `@decorator`-style
	// prefix; the wrapper itself becomes the chunk, typed TypeDecorator.
	DecoratedTypes map[string]bool
	// ExportWrapperTypes wrap a function/class in an export statement
	// (`export function f(){}`); the inner definition is unwrapped and
	// classified normally, with Exported forced true.
	ExportWrapperTypes map[string]bool
	NameField          string
	HeaderPrefix       string
	IsImportLine       func(trimmed string) bool
}

// ChunkWithCST implements the chunking policy shared by every language
// plugin: the small-file rule, a top-level CST walk dispatching on spec,
// content assembly with header + prelude, and token-estimate truncation.
func ChunkWithCST(path string, content []byte, maxTokens int, language, grammar string, spec NodeSpec) ([]Chunk, error) {
	lines := strings.Split(string(content), "\n")
	if len(lines) < smallFileLineThreshold {
		return []Chunk{wholeFileChunk(path, content, language, spec)}, nil
	}

	tree, err := parserpool.Parse(context.Background(), grammar, content)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return []Chunk{wholeFileChunk(path, content, language, spec)}, nil
	}

	prelude := extractPrelude(lines, spec.IsImportLine)

	chunks := make([]Chunk, 0, root.NamedChildCount())

	for idx := range root.NamedChildCount() {
		child := root.NamedChild(idx)
		if child.IsNull() {
			continue
		}

		c, ok := classifyNode(child, content, path, language, prelude, maxTokens, spec)
		if ok {
			chunks = append(chunks, c)
		}
	}

	if len(chunks) == 0 {
		return []Chunk{wholeFileChunk(path, content, language, spec)}, nil
	}

	return chunks, nil
}

func classifyNode(
	n sitter.Node, content []byte, path, language string, prelude []string, maxTokens int, spec NodeSpec,
) (Chunk, bool) {
	kind := n.Type()

	switch {
	case spec.DecoratedTypes[kind]:
		inner, ok := findInnerDefinition(n, spec)
		if !ok {
			inner = n
		}

		return buildChunk(n, inner, TypeDecorator, content, path, language, prelude, maxTokens, spec), true
	case spec.ExportWrapperTypes[kind]:
		inner, ok := findInnerDefinition(n, spec)
		if !ok {
			return Chunk{}, false
		}

		chunkType := TypeFunction
		if spec.ClassTypes[inner.Type()] {
			chunkType = TypeClass
		}

		c := buildChunk(n, inner, chunkType, content, path, language, prelude, maxTokens, spec)
		c.Exported = true

		return c, true
	case spec.FunctionTypes[kind]:
		return buildChunk(n, n, TypeFunction, content, path, language, prelude, maxTokens, spec), true
	case spec.ClassTypes[kind]:
		return buildChunk(n, n, TypeClass, content, path, language, prelude, maxTokens, spec), true
	default:
		return Chunk{}, false
	}
}

// findInnerDefinition locates the function/class node wrapped by a decorated
// definition, searching direct named children first (the common shape for
// both the Python and TS/JS grammars).
func findInnerDefinition(n sitter.Node, spec NodeSpec) (sitter.Node, bool) {
	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if spec.FunctionTypes[child.Type()] || spec.ClassTypes[child.Type()] {
			return child, true
		}
	}

	return sitter.Node{}, false
}

func buildChunk(
	outer, named sitter.Node, chunkType Type, content []byte, path, language string,
	prelude []string, maxTokens int, spec NodeSpec,
) Chunk {
	name := nodeName(named, content, spec)

	start := outer.StartPoint()
	end := outer.EndPoint()
	lineStart := int(start.Row) + 1
	lineEnd := int(end.Row) + 1

	body := string(content[outer.StartByte():outer.EndByte()])
	text := assembleContent(spec.HeaderPrefix, path, prelude, body)
	text = truncateToTokens(text, maxTokens)

	return Chunk{
		ID:        FingerprintID(path, lineStart, lineEnd),
		FilePath:  path,
		Name:      name,
		ChunkType: chunkType,
		Language:  language,
		Content:   text,
		LineStart: lineStart,
		LineEnd:   lineEnd,
		Exported:  isExportedName(name),
	}
}

func nodeName(n sitter.Node, content []byte, spec NodeSpec) string {
	field := n.ChildByFieldName(spec.NameField)
	if field.IsNull() {
		return "anonymous"
	}

	name := string(content[field.StartByte():field.EndByte()])
	if name == "" {
		return "anonymous"
	}

	return name
}

// isExportedName applies the spec's visibility heuristic: an identifier not
// prefixed with an underscore is considered exported. This covers Python's
// underscore convention and is a reasonable default for the TS/JS family,
// where true export-ness would require inspecting sibling `export` keywords.
func isExportedName(name string) bool {
	return name != "anonymous" && !strings.HasPrefix(name, "_")
}

func wholeFileChunk(path string, content []byte, language string, spec NodeSpec) Chunk {
	lines := strings.Split(string(content), "\n")
	lineEnd := len(lines)

	text := assembleContent(spec.HeaderPrefix, path, nil, string(content))

	return Chunk{
		ID:        FingerprintID(path, 1, lineEnd),
		FilePath:  path,
		Name:      "anonymous",
		ChunkType: TypeOther,
		Language:  language,
		Content:   text,
		LineStart: 1,
		LineEnd:   lineEnd,
	}
}

// extractPrelude returns up to defaultPreludeLines lines from the head of
// the file whose trimmed text looks like an import statement per isImport.
func extractPrelude(lines []string, isImport func(string) bool) []string {
	if isImport == nil {
		return nil
	}

	prelude := make([]string, 0, defaultPreludeLines)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isImport(trimmed) {
			prelude = append(prelude, line)
			if len(prelude) >= defaultPreludeLines {
				break
			}
		}
	}

	return prelude
}

// assembleContent builds a chunk's Content: a synthetic header line naming
// the file, a blank separator, the prelude import lines (if any), another
// blank separator, then the extracted source text.
func assembleContent(headerPrefix, path string, prelude []string, body string) string {
	var b strings.Builder

	b.WriteString(headerPrefix)
	b.WriteString(path)
	b.WriteString("\n\n")

	if len(prelude) > 0 {
		b.WriteString(strings.Join(prelude, "\n"))
		b.WriteString("\n\n")
	}

	b.WriteString(body)

	return b.String()
}

// estimateTokens approximates token count as ceil(chars / 4).
func estimateTokens(content string) int {
	return (len(content) + charsPerToken - 1) / charsPerToken
}

// truncateToTokens truncates content to maxTokens*4 characters, appending a
// truncation marker, when its estimated token count exceeds maxTokens.
func truncateToTokens(content string, maxTokens int) string {
	if maxTokens <= 0 || estimateTokens(content) <= maxTokens {
		return content
	}

	limit := maxTokens * charsPerToken
	if limit > len(content) {
		limit = len(content)
	}

	return content[:limit] + truncationMarker
}

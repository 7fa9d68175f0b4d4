package chunk

import (
	"path/filepath"
	"strings"

	"github.com/src-d/enry/v2"
)

// Plugin declares per-language chunking behavior: which extensions it owns,
// how to recognize test files, and how to turn a file's content into chunks.
type Plugin interface {
	// Name returns the language identifier stored on each emitted Chunk.
	Name() string
	// Extensions returns the file extensions (including the leading dot)
	// this plugin claims, e.g. ".ts", ".tsx".
	Extensions() []string
	// IsTestFile reports whether path looks like a test file for this
	// language, per the plugin's own naming conventions.
	IsTestFile(path string) bool
	// ChunkFile turns file content into a bounded set of CodeChunks.
	ChunkFile(path string, content []byte, maxTokens int) ([]Chunk, error)
}

var registry = map[string]Plugin{}

// Register adds a plugin to the extension→plugin registry. Called from each
// plugin's package init so the registry is built once at process start.
func Register(p Plugin) {
	for _, ext := range p.Extensions() {
		registry[strings.ToLower(ext)] = p
	}
}

// Lookup resolves the plugin that owns the given file path's extension, or
// (nil, false) if no plugin claims it.
func Lookup(path string) (Plugin, bool) {
	p, ok := registry[strings.ToLower(filepath.Ext(path))]

	return p, ok
}

// IsTestFile resolves path's plugin and asks it whether path is a test file.
// Paths with no registered plugin are never test files.
func IsTestFile(path string) bool {
	p, ok := Lookup(path)
	if !ok {
		return false
	}

	return p.IsTestFile(path)
}

// ChunkFile resolves path's plugin and chunks content through it. Files with
// no registered plugin are handed to enry's content-based detector so
// extensionless or shebang'd scripts (no `.py`/`.ts`/`.js` suffix) still get
// meaningful chunks; true unknowns fall back to a single TypeOther chunk
// covering the whole file, so every source file is addressable.
func ChunkFile(path string, content []byte, maxTokens int) ([]Chunk, error) {
	if p, ok := Lookup(path); ok {
		return p.ChunkFile(path, content, maxTokens)
	}

	switch enry.GetLanguage(filepath.Base(path), content) {
	case "JavaScript":
		return chunkAsJavaScript(path, content, maxTokens)
	case "Python":
		return (&pyPlugin{}).ChunkFile(path, content, maxTokens)
	default:
		return []Chunk{wholeFileChunk(path, content, "", NodeSpec{HeaderPrefix: "# file: "})}, nil
	}
}

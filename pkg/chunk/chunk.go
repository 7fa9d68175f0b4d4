// Package chunk turns source files into addressable, semantically coherent
// code units using tree-sitter-style concrete syntax trees and per-language
// plugins registered against file extensions.
package chunk

// Type classifies the syntactic role of a CodeChunk.
type Type string

const (
	// TypeFunction marks a chunk extracted from a function or method definition.
	TypeFunction Type = "function"
	// TypeClass marks a chunk extracted from a class/struct/interface definition.
	TypeClass Type = "class"
	// TypeDecorator marks a chunk extracted from a decorated definition; the
	// decorator's inner name is used as the chunk name.
	TypeDecorator Type = "decorator"
	// TypeOther marks a whole-file chunk (small-file rule or CST-walk fallback).
	TypeOther Type = "other"
)

// Chunk is an addressable fragment of source code.
type Chunk struct {
	ID          string
	FilePath    string
	PackageName string
	Name        string
	ChunkType   Type
	Language    string
	Content     string
	LineStart   int
	LineEnd     int
	Exported    bool
}

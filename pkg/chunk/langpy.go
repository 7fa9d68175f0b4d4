package chunk

import (
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/chunk/parserpool"
)

func init() {
	Register(&pyPlugin{})
}

var pyTestFilePattern = regexp.MustCompile(`(?i)(^|/)(test_[^/]+\.py|[^/]+_test\.py)$`)

var pySpec = NodeSpec{
	FunctionTypes: map[string]bool{
		"function_definition": true,
	},
	ClassTypes: map[string]bool{
		"class_definition": true,
	},
	DecoratedTypes: map[string]bool{
		"decorated_definition": true,
	},
	NameField:    "name",
	HeaderPrefix: "# file: ",
	IsImportLine: func(trimmed string) bool {
		return strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ")
	},
}

// pyPlugin covers Python source files.
type pyPlugin struct{}

func (p *pyPlugin) Name() string { return "python" }

func (p *pyPlugin) Extensions() []string { return []string{".py"} }

func (p *pyPlugin) IsTestFile(path string) bool {
	return pyTestFilePattern.MatchString(path)
}

func (p *pyPlugin) ChunkFile(path string, content []byte, maxTokens int) ([]Chunk, error) {
	return ChunkWithCST(path, content, maxTokens, "python", parserpool.LangPython, pySpec)
}

// Package parserpool holds the process-wide, lazily-initialized tree-sitter
// grammar cache used by the code chunker. Grammars are loaded once behind a
// one-shot latch; callers on any goroutine share the same *sitter.Language
// handles and pull short-lived *sitter.Parser instances from a sync.Pool.
package parserpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	forest "github.com/alexaandru/go-sitter-forest"
	sitter "github.com/alexaandru/go-tree-sitter-bare"

	// Blank-imported for their init-time registration side effect against
	// the forest core registry; looked up by name via forest.GetLanguage.
	_ "github.com/alexaandru/go-sitter-forest/javascript"
	_ "github.com/alexaandru/go-sitter-forest/python"
	_ "github.com/alexaandru/go-sitter-forest/tsx"
	_ "github.com/alexaandru/go-sitter-forest/typescript"
)

// Supported grammar names, matching go-sitter-forest's registry keys.
const (
	LangTypeScript = "typescript"
	LangTSX        = "tsx"
	LangJavaScript = "javascript"
	LangPython     = "python"
)

var supportedLanguages = []string{LangTypeScript, LangTSX, LangJavaScript, LangPython}

// ErrGrammarNotFound is returned when a requested grammar name has no
// registered tree-sitter language. Grammar load failures are fatal and
// surface with the grammar name.
var ErrGrammarNotFound = errors.New("parserpool: grammar not found")

var (
	once      sync.Once
	mu        sync.RWMutex
	languages map[string]*sitter.Language
	pools     map[string]*sync.Pool
	initErr   error
)

// ensureInit performs the one-shot grammar bootstrap. Concurrent callers
// block on the same sync.Once and observe the same result.
func ensureInit() error {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()

		languages = make(map[string]*sitter.Language, len(supportedLanguages))
		pools = make(map[string]*sync.Pool, len(supportedLanguages))

		for _, name := range supportedLanguages {
			lang, err := loadLanguage(name)
			if err != nil {
				initErr = err

				return
			}

			languages[name] = lang
			pools[name] = newParserPool(lang)
		}
	})

	return initErr
}

func loadLanguage(name string) (lang *sitter.Language, err error) {
	defer func() {
		if r := recover(); r != nil {
			lang = nil
			err = fmt.Errorf("parserpool: grammar %q failed to load: %v", name, r)
		}
	}()

	l := forest.GetLanguage(name)
	if l == nil {
		return nil, fmt.Errorf("%w: %s", ErrGrammarNotFound, name)
	}

	return l, nil
}

func newParserPool(lang *sitter.Language) *sync.Pool {
	return &sync.Pool{
		New: func() any {
			p := sitter.NewParser()
			p.SetLanguage(lang)

			return p
		},
	}
}

// Parse parses content using the named grammar's pooled parser and returns
// the resulting tree. The caller must call tree.Close() when done. Parsing
// never fails on malformed input — the returned tree is best-effort.
func Parse(ctx context.Context, langName string, content []byte) (*sitter.Tree, error) {
	if err := ensureInit(); err != nil {
		return nil, err
	}

	mu.RLock()
	pool, ok := pools[langName]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGrammarNotFound, langName)
	}

	parser, _ := pool.Get().(*sitter.Parser)
	defer pool.Put(parser)

	tree, err := parser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parserpool: parse with %s: %w", langName, err)
	}

	return tree, nil
}

// ResetForBenchmark clears the cached grammars and the init latch so tests
// and benchmarks can force deterministic re-initialization.
func ResetForBenchmark() {
	mu.Lock()
	defer mu.Unlock()

	languages = nil
	pools = nil
	initErr = nil
	once = sync.Once{}
}

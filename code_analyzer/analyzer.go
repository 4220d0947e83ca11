package code_analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/meysamhadeli/docai/code_analyzer/contracts"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// languageSpec describes how imports and declarations are found for one grammar.
type languageSpec struct {
	language *sitter.Language
	// importQuery captures whole import nodes.
	importQuery string
	// keep lists node types whose text is an imported identifier.
	keep map[string]bool
	// trimQuotes strips string delimiters from kept nodes.
	trimQuotes bool
	// outlineQueries maps a tag to a query capturing declaration names.
	outlineQueries map[string]string
}

var languages = map[string]languageSpec{
	"python": {
		language:    python.GetLanguage(),
		importQuery: `[(import_statement) (import_from_statement)] @import`,
		keep:        map[string]bool{"dotted_name": true},
		outlineQueries: map[string]string{
			"class":    `(class_definition name: (_) @name)`,
			"function": `(function_definition name: (_) @name)`,
		},
	},
	"go": {
		language:    golang.GetLanguage(),
		importQuery: `(import_spec) @import`,
		keep:        map[string]bool{"interpreted_string_literal": true, "raw_string_literal": true},
		trimQuotes:  true,
		outlineQueries: map[string]string{
			"type":     `(type_spec name: (_) @name)`,
			"function": `(function_declaration name: (_) @name)`,
			"method":   `(method_declaration name: (_) @name)`,
		},
	},
	"javascript": {
		language:    javascript.GetLanguage(),
		importQuery: `(import_statement) @import`,
		keep:        map[string]bool{"string": true, "identifier": true},
		trimQuotes:  true,
		outlineQueries: map[string]string{
			"class":    `(class_declaration name: (_) @name)`,
			"function": `(function_declaration name: (_) @name)`,
		},
	},
	"typescript": {
		language:    typescript.GetLanguage(),
		importQuery: `(import_statement) @import`,
		keep:        map[string]bool{"string": true, "identifier": true},
		trimQuotes:  true,
		outlineQueries: map[string]string{
			"class":     `(class_declaration name: (_) @name)`,
			"interface": `(interface_declaration name: (_) @name)`,
			"function":  `(function_declaration name: (_) @name)`,
		},
	},
	"java": {
		language:    java.GetLanguage(),
		importQuery: `(import_declaration) @import`,
		keep:        map[string]bool{"scoped_identifier": true, "identifier": true},
		outlineQueries: map[string]string{
			"class":     `(class_declaration name: (_) @name)`,
			"interface": `(interface_declaration name: (_) @name)`,
			"method":    `(method_declaration name: (_) @name)`,
		},
	},
	"csharp": {
		language:    csharp.GetLanguage(),
		importQuery: `(using_directive) @import`,
		keep:        map[string]bool{"qualified_name": true, "identifier": true},
		outlineQueries: map[string]string{
			"class":     `(class_declaration name: (_) @name)`,
			"interface": `(interface_declaration name: (_) @name)`,
			"method":    `(method_declaration name: (_) @name)`,
		},
	},
}

var codeBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*[ \t]*\r?\n(.*?)```")

// CodeAnalyzer extracts structure from source files and post-processes annotator replies.
type CodeAnalyzer struct{}

// NewCodeAnalyzer initializes a new CodeAnalyzer.
func NewCodeAnalyzer() contracts.ICodeAnalyzer {
	return &CodeAnalyzer{}
}

// GetSupportedLanguage maps a file extension to a grammar name, or "" when unsupported.
func GetSupportedLanguage(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".py", ".pyw":
		return "python"
	case ".go":
		return "go"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".java":
		return "java"
	case ".cs":
		return "csharp"
	default:
		return ""
	}
}

func parse(spec languageSpec, sourceCode []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(spec.language)

	tree, err := parser.ParseCtx(context.Background(), nil, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	return tree, nil
}

// ExtractIdentifiers returns the modules and names a file imports, in source
// order and without duplicates. Unsupported languages yield no identifiers.
func (analyzer *CodeAnalyzer) ExtractIdentifiers(relativePath string, sourceCode []byte) ([]string, error) {
	spec, ok := languages[GetSupportedLanguage(relativePath)]
	if !ok {
		return nil, nil
	}

	tree, err := parse(spec, sourceCode)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	query, err := sitter.NewQuery([]byte(spec.importQuery), spec.language)
	if err != nil {
		return nil, fmt.Errorf("failed to compile import query: %w", err)
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, tree.RootNode())

	seen := make(map[string]bool)
	var identifiers []string
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, capture := range match.Captures {
			for _, name := range collectKept(capture.Node, spec, sourceCode) {
				if name == "" || seen[name] {
					continue
				}
				seen[name] = true
				identifiers = append(identifiers, name)
			}
		}
	}

	return identifiers, nil
}

// collectKept walks an import node and returns the text of kept node types,
// without descending into a node once it is kept.
func collectKept(node *sitter.Node, spec languageSpec, sourceCode []byte) []string {
	if node == nil {
		return nil
	}
	if spec.keep[node.Type()] {
		text := node.Content(sourceCode)
		if spec.trimQuotes {
			text = strings.Trim(text, "\"'`")
		}
		return []string{strings.TrimSpace(text)}
	}

	var names []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		names = append(names, collectKept(node.NamedChild(i), spec, sourceCode)...)
	}
	return names
}

// ProcessFile returns a tagged outline of the declarations in a file, headed by
// its path. Unsupported languages fall back to the first line of the file.
func (analyzer *CodeAnalyzer) ProcessFile(relativePath string, sourceCode []byte) []string {
	elements := []string{relativePath}

	spec, ok := languages[GetSupportedLanguage(relativePath)]
	if !ok {
		lines := strings.SplitN(string(sourceCode), "\n", 2)
		return append(elements, lines[0])
	}

	tree, err := parse(spec, sourceCode)
	if err != nil {
		return elements
	}
	defer tree.Close()

	for _, tag := range sortedTags(spec.outlineQueries) {
		query, err := sitter.NewQuery([]byte(spec.outlineQueries[tag]), spec.language)
		if err != nil {
			continue
		}

		cursor := sitter.NewQueryCursor()
		cursor.Exec(query, tree.RootNode())
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			for _, capture := range match.Captures {
				elements = append(elements, fmt.Sprintf("%s: %s", tag, capture.Node.Content(sourceCode)))
			}
		}
		cursor.Close()
		query.Close()
	}

	return elements
}

func sortedTags(queries map[string]string) []string {
	tags := make([]string, 0, len(queries))
	for tag := range queries {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// ExtractCodeBlock returns the body of the first fenced code block in a reply.
func (analyzer *CodeAnalyzer) ExtractCodeBlock(reply string) (string, error) {
	// Some models escape the closing fence.
	reply = strings.ReplaceAll(reply, "` ``", "```")

	match := codeBlockPattern.FindStringSubmatch(reply)
	if match == nil {
		return "", fmt.Errorf("no code block found in the reply")
	}
	return match[1], nil
}

// EnsureHeader puts the header line at the top of the content unless it is
// already present. A leading shebang or encoding declaration stays first.
func (analyzer *CodeAnalyzer) EnsureHeader(content string, header string) string {
	header = strings.TrimRight(header, "\r\n")
	if header == "" {
		return content
	}

	lines := strings.SplitAfter(content, "\n")
	insertAt := 0
	for insertAt < len(lines) && insertAt < 2 && isPreambleLine(lines[insertAt], insertAt) {
		insertAt++
	}

	for i := 0; i <= insertAt && i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == header {
			return content
		}
	}

	var builder strings.Builder
	for _, line := range lines[:insertAt] {
		builder.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			builder.WriteString("\n")
		}
	}
	builder.WriteString(header)
	builder.WriteString("\n")
	for _, line := range lines[insertAt:] {
		builder.WriteString(line)
	}
	return builder.String()
}

var encodingLinePattern = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*[-_.a-zA-Z0-9]+`)

func isPreambleLine(line string, index int) bool {
	if index == 0 && strings.HasPrefix(line, "#!") {
		return true
	}
	return encodingLinePattern.MatchString(line)
}

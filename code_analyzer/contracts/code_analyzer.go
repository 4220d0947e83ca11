package contracts

type ICodeAnalyzer interface {
	ExtractIdentifiers(relativePath string, sourceCode []byte) ([]string, error)
	ProcessFile(relativePath string, sourceCode []byte) []string
	ExtractCodeBlock(reply string) (string, error)
	EnsureHeader(content string, header string) string
}

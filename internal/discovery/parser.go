package discovery

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Parser lists the test functions declared in a test file
type Parser struct {
	index *SourceIndex
}

// NewParser creates a new Parser reading files through index
func NewParser(index *SourceIndex) *Parser {
	return &Parser{index: index}
}

// FindTestCases returns the names of the tests declared in filePath, in
// declaration order. Go tests are top-level func TestXxx(t *testing.T);
// Python tests are test_* functions, and test_* methods of Test* classes.
func (p *Parser) FindTestCases(ctx context.Context, filePath string) ([]string, error) {
	funcs, err := p.index.Functions(ctx, filePath)
	if err != nil {
		return nil, err
	}

	lang := DetectLanguage(filePath)
	var testCases []string
	for _, fn := range funcs {
		if isTest(lang, fn) {
			testCases = append(testCases, fn.Name)
		}
	}
	return testCases, nil
}

func isTest(lang Language, fn Function) bool {
	switch lang {
	case LanguageGo:
		return fn.Receiver == "" && isGoTestName(fn.Name) && strings.Contains(fn.Params, "*testing.T")
	case LanguagePython:
		if fn.Receiver == "" {
			return strings.HasPrefix(fn.Name, "test")
		}
		method := strings.TrimPrefix(fn.Name, fn.Receiver+".")
		return strings.HasPrefix(fn.Receiver, "Test") && strings.HasPrefix(method, "test")
	}
	return false
}

// isGoTestName follows go test: "Test" followed by nothing or by a
// character that is not a lower-case letter.
func isGoTestName(name string) bool {
	if !strings.HasPrefix(name, "Test") || name == "TestMain" {
		return false
	}
	rest := name[len("Test"):]
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !unicode.IsLower(r)
}

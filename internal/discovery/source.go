package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrSourceNotFound is returned when a file does not define the requested
// function.
var ErrSourceNotFound = errors.New("function source not found")

// Language is a source language the index can parse.
type Language string

const (
	LanguageGo      Language = "go"
	LanguagePython  Language = "python"
	LanguageUnknown Language = ""
)

// DetectLanguage picks the language from the file extension.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return LanguageGo
	case ".py":
		return LanguagePython
	}
	return LanguageUnknown
}

// Function is a function or method definition found in a source file.
type Function struct {
	Name     string // Qualified name: "Func", or "Type.Method" / "Class.method"
	Receiver string // Receiver type or enclosing class, empty for functions
	Params   string // Parameter list as written
	Line     int    // 1-based line of the first byte of Source
	Source   []byte // Exact definition text; Python includes decorators
}

// ParseFunctions lists the top-level functions and methods of content in
// declaration order.
func ParseFunctions(ctx context.Context, lang Language, content []byte) ([]Function, error) {
	parser := sitter.NewParser()
	switch lang {
	case LanguageGo:
		parser.SetLanguage(golang.GetLanguage())
	case LanguagePython:
		parser.SetLanguage(python.GetLanguage())
	default:
		return nil, fmt.Errorf("unsupported language %q", lang)
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}
	if lang == LanguageGo {
		return goFunctions(root, content), nil
	}
	return pythonFunctions(root, content, ""), nil
}

func goFunctions(root *sitter.Node, content []byte) []Function {
	var out []Function
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "function_declaration":
			out = append(out, newFunction(child, child, content, ""))
		case "method_declaration":
			recv := receiverType(child.ChildByFieldName("receiver"), content)
			out = append(out, newFunction(child, child, content, recv))
		}
	}
	return out
}

func receiverType(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	if n.Type() == "type_identifier" {
		return text(n, content)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if t := receiverType(n.Child(i), content); t != "" {
			return t
		}
	}
	return ""
}

func pythonFunctions(parent *sitter.Node, content []byte, class string) []Function {
	var out []Function
	for i := 0; i < int(parent.ChildCount()); i++ {
		child := parent.Child(i)
		def := child
		if child.Type() == "decorated_definition" {
			def = child.ChildByFieldName("definition")
			if def == nil {
				continue
			}
		}

		switch def.Type() {
		case "function_definition":
			out = append(out, newFunction(child, def, content, class))
		case "class_definition":
			if class != "" {
				continue
			}
			if body := def.ChildByFieldName("body"); body != nil {
				out = append(out, pythonFunctions(body, content, text(def.ChildByFieldName("name"), content))...)
			}
		}
	}
	return out
}

// newFunction builds a Function whose source spans outer (the decorated
// definition in Python) and whose name comes from def.
func newFunction(outer, def *sitter.Node, content []byte, receiver string) Function {
	name := text(def.ChildByFieldName("name"), content)
	if receiver != "" {
		name = receiver + "." + name
	}
	src := make([]byte, outer.EndByte()-outer.StartByte())
	copy(src, content[outer.StartByte():outer.EndByte()])
	return Function{
		Name:     name,
		Receiver: receiver,
		Params:   text(def.ChildByFieldName("parameters"), content),
		Line:     int(outer.StartPoint().Row) + 1,
		Source:   src,
	}
}

func text(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

// SourceIndex returns function source text by file and name. Each file is
// read and parsed at most once.
type SourceIndex struct {
	root  string
	files map[string]indexedFile
}

type indexedFile struct {
	funcs   []Function
	byName  map[string]int
	content []byte // Kept for languages that cannot be parsed
	err     error
}

// NewSourceIndex creates an index resolving relative paths against root.
func NewSourceIndex(root string) *SourceIndex {
	return &SourceIndex{root: root, files: make(map[string]indexedFile)}
}

// Functions returns every function defined in file.
func (x *SourceIndex) Functions(ctx context.Context, file string) ([]Function, error) {
	f := x.load(ctx, file)
	return f.funcs, f.err
}

// Function returns the exact source of the named function in file. Files in
// languages the index cannot parse are returned whole.
func (x *SourceIndex) Function(ctx context.Context, file, name string) ([]byte, error) {
	f := x.load(ctx, file)
	if f.err != nil {
		return nil, f.err
	}
	if f.byName == nil {
		return f.content, nil
	}
	i, ok := f.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", name, file, ErrSourceNotFound)
	}
	return f.funcs[i].Source, nil
}

func (x *SourceIndex) load(ctx context.Context, file string) indexedFile {
	path := x.path(file)
	if f, ok := x.files[path]; ok {
		return f
	}

	var f indexedFile
	content, err := os.ReadFile(path)
	switch {
	case err != nil:
		f.err = fmt.Errorf("read source %s: %w", file, err)
	case DetectLanguage(path) == LanguageUnknown:
		f.content = content
	default:
		lang := DetectLanguage(path)
		f.funcs, f.err = ParseFunctions(ctx, lang, content)
		f.byName = make(map[string]int, len(f.funcs))
		for i, fn := range f.funcs {
			// Python rebinds a redefined name; the last definition is the live one.
			if _, dup := f.byName[fn.Name]; !dup || lang == LanguagePython {
				f.byName[fn.Name] = i
			}
		}
	}
	x.files[path] = f
	return f
}

func (x *SourceIndex) path(file string) string {
	if filepath.IsAbs(file) || x.root == "" {
		return filepath.Clean(file)
	}
	return filepath.Join(x.root, filepath.FromSlash(file))
}

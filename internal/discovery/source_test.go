package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSource = `package calc

import "testing"

func Add(a, b int) int { return a + b }

func TestAdd(t *testing.T) {
	if Add(2, 2) != 4 {
		t.Fatal("bad sum")
	}
}

type Suite struct{}

func (s *Suite) TestMethod(t *testing.T) {}

func Testify(t *testing.T) {}

func TestMain(m *testing.M) {}

func BenchmarkAdd(b *testing.B) {}
`

const pySource = `import pytest


@pytest.fixture
def db():
    return {"rows": []}


def helper():
    return 1


def test_insert(db):
    db["rows"].append(1)
    assert len(db["rows"]) == 1


class TestGateway:
    @pytest.mark.slow
    def test_timeout(self):
        assert True

    def setup_method(self):
        pass


class Helper:
    def test_not_collected(self):
        pass
`

func TestParseFunctions_Go(t *testing.T) {
	funcs, err := ParseFunctions(context.Background(), LanguageGo, []byte(goSource))
	require.NoError(t, err)

	var names []string
	for _, fn := range funcs {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"Add", "TestAdd", "Suite.TestMethod", "Testify", "TestMain", "BenchmarkAdd"}, names)

	assert.Equal(t, "func TestAdd(t *testing.T) {\n\tif Add(2, 2) != 4 {\n\t\tt.Fatal(\"bad sum\")\n\t}\n}", string(funcs[1].Source))
	assert.Equal(t, 7, funcs[1].Line)
	assert.Equal(t, "(t *testing.T)", funcs[1].Params)
	assert.Equal(t, "Suite", funcs[2].Receiver)
}

func TestParseFunctions_Python(t *testing.T) {
	funcs, err := ParseFunctions(context.Background(), LanguagePython, []byte(pySource))
	require.NoError(t, err)

	byName := make(map[string]Function)
	for _, fn := range funcs {
		byName[fn.Name] = fn
	}
	require.Contains(t, byName, "db")
	assert.Equal(t, "@pytest.fixture\ndef db():\n    return {\"rows\": []}", string(byName["db"].Source))
	assert.Equal(t, 4, byName["db"].Line)

	require.Contains(t, byName, "TestGateway.test_timeout")
	assert.Equal(t, "@pytest.mark.slow\n    def test_timeout(self):\n        assert True", string(byName["TestGateway.test_timeout"].Source))
	assert.Equal(t, "TestGateway", byName["TestGateway.test_timeout"].Receiver)
	assert.Contains(t, byName, "Helper.test_not_collected")
}

func TestParseFunctions_Unsupported(t *testing.T) {
	_, err := ParseFunctions(context.Background(), LanguageUnknown, []byte("echo hi"))
	assert.Error(t, err)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LanguageGo, DetectLanguage("pkg/a_test.go"))
	assert.Equal(t, LanguagePython, DetectLanguage("tests/test_a.PY"))
	assert.Equal(t, LanguageUnknown, DetectLanguage("tests/run.sh"))
}

func TestSourceIndex_Function(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"calc/calc_test.go": goSource,
		"tests/test_db.py":  pySource,
		"scripts/smoke.sh":  "#!/bin/sh\ncurl localhost\n",
	})
	idx := NewSourceIndex(root)
	ctx := context.Background()

	src, err := idx.Function(ctx, "calc/calc_test.go", "TestAdd")
	require.NoError(t, err)
	assert.Contains(t, string(src), "Add(2, 2)")

	_, err = idx.Function(ctx, "calc/calc_test.go", "TestMissing")
	assert.ErrorIs(t, err, ErrSourceNotFound)

	src, err = idx.Function(ctx, "scripts/smoke.sh", "anything")
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\ncurl localhost\n", string(src))

	_, err = idx.Function(ctx, "missing_test.go", "TestX")
	assert.Error(t, err)

	// Files are parsed once per session; later edits are not observed.
	_, err = idx.Function(ctx, "tests/test_db.py", "test_insert")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "tests", "test_db.py"), []byte("def test_insert():\n    pass\n"), 0644))
	src, err = idx.Function(ctx, filepath.Join(root, "tests", "test_db.py"), "test_insert")
	require.NoError(t, err)
	assert.Contains(t, string(src), `db["rows"].append(1)`)
}

func TestSourceIndex_PythonRedefinition(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"tests/test_twice.py": "def test_x():\n    assert old()\n\n\ndef test_x():\n    assert new()\n",
	})
	src, err := NewSourceIndex(root).Function(context.Background(), "tests/test_twice.py", "test_x")
	require.NoError(t, err)
	assert.Contains(t, string(src), "new()")
	assert.NotContains(t, string(src), "old()")
}

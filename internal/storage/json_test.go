package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tia/internal/config"
	"tia/internal/domain"
)

func newJSONStorage(t *testing.T) (*JSONStorage, string) {
	t.Helper()
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	return NewJSONStorage(cfg), cfg.GetStatePath()
}

func TestJSONStorage_LoadMissingFile(t *testing.T) {
	st, path := newJSONStorage(t)
	assert.Equal(t, path, st.Location())

	s, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.Tests())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "load must not create the file")
}

func TestJSONStorage_SaveLoad(t *testing.T) {
	st, path := newJSONStorage(t)
	ctx := context.Background()

	s := NewState()
	id := domain.TestID{File: "t1_test.go", Name: "TestT1"}
	s.ReplaceDependencies(id, []string{"a.src"})
	s.SetFileDigest("a.src", "h1")
	s.SetTestDigest(id, "b1")
	s.SetOutcome(id, domain.OutcomePassed)

	require.NoError(t, st.Save(ctx, s))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Dependencies, loaded.Dependencies)
	assert.Equal(t, s.FileDigests, loaded.FileDigests)
	assert.Equal(t, s.TestDigests, loaded.TestDigests)
	assert.Equal(t, s.Outcomes, loaded.Outcomes)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestJSONStorage_SaveOverwrites(t *testing.T) {
	st, _ := newJSONStorage(t)
	ctx := context.Background()
	id := domain.TestID{File: "t1_test.go", Name: "TestT1"}

	first := NewState()
	first.ReplaceDependencies(id, []string{"a.src", "b.src"})
	require.NoError(t, st.Save(ctx, first))

	second := NewState()
	second.ReplaceDependencies(id, []string{"c.src"})
	require.NoError(t, st.Save(ctx, second))

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	deps, _ := loaded.TestDependencies(id)
	assert.Equal(t, []string{"c.src"}, deps)
}

func TestJSONStorage_LoadMalformed(t *testing.T) {
	st, path := newJSONStorage(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 1, "file_digests": []}`), 0644))

	_, err := st.Load(context.Background())
	assert.ErrorIs(t, err, ErrFormat)
}

func TestJSONStorage_CancelledContext(t *testing.T) {
	st, path := newJSONStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, st.Save(ctx, NewState()), context.Canceled)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

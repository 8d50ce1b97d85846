package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diffstream/internal/session"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newStore(t *testing.T) *session.Store {
	t.Helper()
	st := session.NewStore(nil, nil)
	sess := &session.Session{ID: "s1", Title: "sum"}
	st.Load(sess)
	return st
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "user.cpp", FileName(session.SlotUser, "cpp"))
	assert.Equal(t, "standard.py", FileName(session.SlotStd, "python"))
	assert.Equal(t, "generator.txt", FileName(session.SlotGen, "brainfuck"))
}

func TestOpen_MaterializesCodeFiles(t *testing.T) {
	dir := t.TempDir()
	st := newStore(t)

	w, err := Open(dir, st, nil)
	require.NoError(t, err)
	defer w.Close()

	for _, name := range []string{"user.cpp", "standard.cpp", "generator.cpp"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}
	assert.Equal(t, dir, w.Dir())
}

func TestOpen_RequiresLoadedSession(t *testing.T) {
	st := session.NewStore(nil, nil)
	_, err := Open(t.TempDir(), st, nil)
	require.ErrorIs(t, err, session.ErrNotLoaded)
}

func TestEditFlowsBackIntoStore(t *testing.T) {
	dir := t.TempDir()
	st := newStore(t)

	w, err := Open(dir, st, nil)
	require.NoError(t, err)
	defer w.Close()

	edited := "int main() { return 0; }\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.cpp"), []byte(edited), 0o644))

	waitFor(t, func() bool {
		return st.Session().Code(session.SlotUser).Content == edited
	})
	assert.True(t, st.HasUnsaved())
}

func TestUntrackedFileIgnored(t *testing.T) {
	dir := t.TempDir()
	st := newStore(t)

	w, err := Open(dir, st, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644))
	time.Sleep(debounceInterval + 200*time.Millisecond)

	assert.False(t, st.HasUnsaved())
}

func TestRewriteWithSameContentStaysClean(t *testing.T) {
	dir := t.TempDir()
	st := newStore(t)

	w, err := Open(dir, st, nil)
	require.NoError(t, err)
	defer w.Close()

	content := st.Session().Code(session.SlotStd).Content
	require.NoError(t, os.WriteFile(filepath.Join(dir, "standard.cpp"), []byte(content), 0o644))
	time.Sleep(debounceInterval + 200*time.Millisecond)

	assert.False(t, st.HasUnsaved())
}

func TestRefresh_WritesDivergedSlots(t *testing.T) {
	dir := t.TempDir()
	st := newStore(t)

	w, err := Open(dir, st, nil)
	require.NoError(t, err)
	defer w.Close()

	generated := "#include <random>\nint main() {}\n"
	require.NoError(t, st.UpdateCode(session.SlotGen, generated))
	require.NoError(t, w.Refresh())

	data, err := os.ReadFile(filepath.Join(dir, "generator.cpp"))
	require.NoError(t, err)
	assert.Equal(t, generated, string(data))
}

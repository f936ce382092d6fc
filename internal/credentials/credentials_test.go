package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_MissingFileUsesDefaults(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "cookie-config.json"), Record{})

	rec := s.Get()

	assert.Equal(t, DefaultSession, rec.Session)
	assert.Equal(t, DefaultCookie, rec.Cookie)
}

func TestGet_ConfiguredDefaults(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "none.json"), Record{Session: "s0"})

	rec := s.Get()

	assert.Equal(t, "s0", rec.Session)
	assert.Equal(t, DefaultCookie, rec.Cookie)
}

func TestGet_CorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookie-config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	rec := NewFileStore(path, Record{}).Get()

	assert.Equal(t, Record{Session: DefaultSession, Cookie: DefaultCookie}, rec)
}

func TestGet_PartialFileFallsBackPerField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookie-config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"session":"abc"}`), 0o600))

	rec := NewFileStore(path, Record{}).Get()

	assert.Equal(t, "abc", rec.Session)
	assert.Equal(t, DefaultCookie, rec.Cookie)
}

func TestSetThenGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config", "cookie-config.json")
	s := NewFileStore(path, Record{})

	saved, err := s.Set("sess", "cook")
	require.NoError(t, err)
	assert.Equal(t, Record{Session: "sess", Cookie: "cook"}, saved)

	assert.Equal(t, saved, s.Get())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"session\": \"sess\"")
}

func TestSet_Validation(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "c.json"), Record{})

	_, err := s.Set("", "cook")
	assert.ErrorIs(t, err, ErrSessionRequired)

	_, err = s.Set("sess", "")
	assert.ErrorIs(t, err, ErrCookieRequired)

	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr), "nothing should be written on validation failure")
}

func TestSet_WriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(blocker, []byte("file, not dir"), 0o600))

	_, err := NewFileStore(filepath.Join(blocker, "cookie-config.json"), Record{}).Set("s", "c")

	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	assert.Equal(t, "ci_session=abc; _cookie=xyz", Combine("abc", "xyz"))
	assert.Equal(t, "ci_session=abc; _cookie=xyz", Record{Session: "abc", Cookie: "xyz"}.Combined())
}

package props

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_CommentsAndContinuations(t *testing.T) {
	text := "foo.first = 1\n" +
		"# Random comment = Not included.\n" +
		"foo.second = Two\n" +
		"foo.third = Three\n" +
		"  !!\n"

	entries, err := Parse(strings.NewReader(text))
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Key: "foo.first", Value: "1"},
		{Key: "foo.second", Value: "Two"},
		{Key: "foo.third", Value: "Three\n!!"},
	}, entries)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []Entry
		wantErr  bool
	}{
		{
			name:     "colon separator and case preserved",
			text:     "Main.Home: /opt/x\n",
			expected: []Entry{{Key: "Main.Home", Value: "/opt/x"}},
		},
		{
			name:     "blank lines and semicolon comments",
			text:     "\n; note\na = 1\n\n\nb = 2\n",
			expected: []Entry{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}},
		},
		{
			name:     "value keeps later separators",
			text:     "jvm.opts = -Dfoo=bar -Dx:y\n",
			expected: []Entry{{Key: "jvm.opts", Value: "-Dfoo=bar -Dx:y"}},
		},
		{
			name:     "empty value",
			text:     "a =\n",
			expected: []Entry{{Key: "a", Value: ""}},
		},
		{
			name:     "repeated key keeps first position",
			text:     "a = 1\nb = 2\na = 3\n",
			expected: []Entry{{Key: "a", Value: "3"}, {Key: "b", Value: "2"}},
		},
		{
			name:     "crlf line endings",
			text:     "a = 1\r\nb = 2\r\n",
			expected: []Entry{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}},
		},
		{
			name:    "line without separator",
			text:    "just words\n",
			wantErr: true,
		},
		{
			name:    "leading continuation",
			text:    "  orphan\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tt.text))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, entries)
		})
	}
}

func TestFormat_ContinuationLinesParseBack(t *testing.T) {
	entries := []Entry{
		{Key: "foo.first", Value: "1"},
		{Key: "foo.third", Value: "Three\n!!"},
	}

	data := Format(entries)
	assert.Equal(t, "foo.first = 1\nfoo.third = Three\n\t!!\n", string(data))

	parsed, err := Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, entries, parsed)
}

func TestStore_CreateNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "overrides.properties")
	store := NewStore(path, true, logging.NewNopLogger())

	entries, err := store.Items()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.FileExists(t, path)
}

func TestStore_MissingFileWithoutCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.properties")
	store := NewStore(path, false, logging.NewNopLogger())

	_, err := store.Items()
	require.Error(t, err)
	assert.True(t, errors.IsPropertiesIOError(err))
	assert.NoFileExists(t, path)
}

func TestStore_SetAndDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.properties")
	require.NoError(t, os.WriteFile(path, []byte("# keep me out\nb = 2\na = 1\n"), 0o644))
	store := NewStore(path, true, logging.NewNopLogger())

	require.NoError(t, store.Set("a", "10"))
	require.NoError(t, store.Set("c", "multi\nline"))

	entries, err := store.Items()
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Key: "b", Value: "2"},
		{Key: "a", Value: "10"},
		{Key: "c", Value: "multi\nline"},
	}, entries)

	require.NoError(t, store.Delete("b"))
	require.NoError(t, store.Delete("not-there"))

	entries, err = store.Items()
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Key: "a", Value: "10"},
		{Key: "c", Value: "multi\nline"},
	}, entries)

	// no temporary files are left next to the store
	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, "overrides.properties", names[0].Name())
}

func TestStore_SetCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.properties")
	store := NewStore(path, true, logging.NewNopLogger())

	require.NoError(t, store.Set("fooservice.enabled", "true"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fooservice.enabled = true\n", string(data))
}

func TestStore_UnwritableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.properties")
	require.NoError(t, os.WriteFile(path, []byte("a = 1\n"), 0o644))
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	store := NewStore(path, true, logging.NewNopLogger())
	err := store.Set("a", "2")

	require.Error(t, err)
	assert.True(t, errors.IsPropertiesIOError(err))
}

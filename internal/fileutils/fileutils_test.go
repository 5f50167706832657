package fileutils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tendersync/tendersync/internal/fileutils"
)

func TestAtomicWrite(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		preexisting string
		data        string
	}{
		"New file":            {data: "content"},
		"Overwrites existing": {preexisting: "old", data: "new"},
		"Empty data":          {data: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := filepath.Join(dir, "target.txt")
			if tc.preexisting != "" {
				require.NoError(t, os.WriteFile(path, []byte(tc.preexisting), 0600))
			}

			require.NoError(t, fileutils.AtomicWrite(path, []byte(tc.data)))

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, tc.data, string(got))

			// No temporary leftovers.
			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Len(t, entries, 1)
		})
	}
}

func TestAtomicWriteMissingDirectory(t *testing.T) {
	t.Parallel()

	err := fileutils.AtomicWrite(filepath.Join(t.TempDir(), "missing", "target.txt"), []byte("x"))
	require.Error(t, err, "AtomicWrite should not create parent directories")
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input string

		want    map[string]any
		wantErr bool
	}{
		"Valid document":  {input: `{"key":"value"}`, want: map[string]any{"key": "value"}},
		"Empty document":  {input: `{}`, want: map[string]any{}},

		"Error with malformed JSON":          {input: `{"key":`, wantErr: true},
		"Error with trailing garbage":        {input: `{"key":"value"} extra`, wantErr: true},
		"Error with a non-object document":   {input: `[1,2]`, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var got map[string]any
			err := fileutils.ParseJSON(strings.NewReader(tc.input), &got)
			if tc.wantErr {
				require.Error(t, err, "ParseJSON should fail")
				return
			}
			require.NoError(t, err, "ParseJSON should not fail")
			require.Equal(t, tc.want, got)
		})
	}
}

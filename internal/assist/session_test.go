package assist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/nvgtls/internal/catalog"
	"github.com/leapstack-labs/nvgtls/internal/testutil"
)

const catalogJSON = `[
  {"name": "alert", "params": ["title", "text"], "description": "Shows a **message** box."},
  {"name": "clamp", "params": ["value", "min", "max"], "description": "Clamps a value."},
  {"name": "exit", "params": [], "description": "Exits."}
]`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nvgt_functions.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestInitialize(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()

	s, err := Initialize(writeCatalog(t, catalogJSON), logger)
	require.NoError(t, err)
	defer s.Shutdown()

	assert.Equal(t, 3, s.Catalog().Len())
	assert.Contains(t, logs.String(), "Loaded function catalog")
	assert.Contains(t, logs.String(), "functions=3")
}

func TestInitialize_Failures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		s, err := Initialize(filepath.Join(t.TempDir(), "none.json"), nil)
		require.Error(t, err)
		assert.Nil(t, s)
		assert.Contains(t, err.Error(), "failed to initialize session")
	})

	t.Run("malformed", func(t *testing.T) {
		s, err := Initialize(writeCatalog(t, `[{"name": "x"}]`), nil)
		require.Error(t, err)
		assert.Nil(t, s)

		var verr *catalog.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestSession_Completions(t *testing.T) {
	s, err := Initialize(writeCatalog(t, catalogJSON), nil)
	require.NoError(t, err)

	entries, err := s.Completions()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, CompletionEntry{
		Label:         "alert",
		InsertText:    "alert(",
		Detail:        "alert(title, text)",
		Documentation: "Shows a **message** box.",
	}, entries[0])
	assert.Equal(t, "clamp", entries[1].Label)
	assert.Equal(t, "exit()", entries[2].Detail)
}

func TestSession_SignatureHelp(t *testing.T) {
	s, err := Initialize(writeCatalog(t, catalogJSON), nil)
	require.NoError(t, err)

	t.Run("active call", func(t *testing.T) {
		line := "x = clamp(1, "
		help, err := s.SignatureHelp(line, len(line))
		require.NoError(t, err)
		require.NotNil(t, help)

		assert.Len(t, help.Signatures, 3, "every catalog signature is listed")
		assert.Equal(t, 1, help.ActiveSignature)
		assert.Equal(t, 1, help.ActiveParameter)
		assert.Equal(t, "clamp(value, min, max)", help.Signatures[help.ActiveSignature].Label)
		assert.Equal(t, []string{"value", "min", "max"}, help.Signatures[1].Parameters)
	})

	t.Run("unknown function retracts", func(t *testing.T) {
		help, err := s.SignatureHelp("print(1, ", 9)
		require.NoError(t, err)
		assert.Nil(t, help)
	})

	t.Run("no call", func(t *testing.T) {
		help, err := s.SignatureHelp("alert", 5)
		require.NoError(t, err)
		assert.Nil(t, help)
	})

	t.Run("comma inside string", func(t *testing.T) {
		line := `alert("Hi, there", `
		help, err := s.SignatureHelp(line, len(line))
		require.NoError(t, err)
		require.NotNil(t, help)
		assert.Equal(t, 0, help.ActiveSignature)
		assert.Equal(t, 1, help.ActiveParameter)
	})
}

func TestSession_Describe(t *testing.T) {
	s := NewSession(nil, nil)
	_, ok := s.Describe("alert")
	assert.False(t, ok)

	c, err := catalog.Parse([]byte(catalogJSON), catalog.FormatJSON)
	require.NoError(t, err)
	s = NewSession(c, nil)

	fn, ok := s.Describe("exit")
	require.True(t, ok)
	assert.Equal(t, "Exits.", fn.Description)
}

func TestSession_Shutdown(t *testing.T) {
	s := NewSession(catalog.Empty(), testutil.NewTestLogger(t))
	s.Shutdown()
	s.Shutdown()

	_, err := s.Completions()
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = s.SignatureHelp("f(", 2)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

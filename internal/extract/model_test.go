package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/civicner/internal/model"
)

func TestLoadProseModel(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the prose model")
	}
	m, err := LoadProseModel("")
	require.NoError(t, err)
	require.Equal(t, "prose/default", m.Name())
	require.NotNil(t, m.model, "bundled model must be kept after load")
	loaded := m.model

	ann, err := m.Annotate("Councillor John Smith visited Sheffield on Tuesday.")
	require.NoError(t, err)
	require.NotEmpty(t, ann.Tokens)
	require.Same(t, loaded, m.model)

	ann, err = m.Annotate("")
	require.NoError(t, err)
	require.Empty(t, ann.Entities)
}

func TestLoadProseModelBadDir(t *testing.T) {
	_, err := LoadProseModel(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, ErrModelUnavailable)

	file := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = LoadProseModel(file)
	require.ErrorIs(t, err, ErrModelUnavailable)
}

func TestNewWithProse(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the prose model")
	}
	e, err := New(model.DefaultConfig().NLP, nil)
	require.NoError(t, err)

	require.True(t, e.Extract("").Empty())
	got := e.Extract("Great turnout in Sheffield today")
	require.True(t, got.Locations.Has("Sheffield"))
	for loc := range got.Locations {
		require.True(t, e.Filter().IsPlausibleLocation(loc))
	}
}

func TestProseExtraction(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the prose model")
	}
	e, err := New(model.DefaultConfig().NLP, nil)
	require.NoError(t, err)

	got := e.Extract("Councillor John Smith (Reform UK) spoke about Birmingham City Council funding.")
	require.True(t, got.Locations.Has("Birmingham"))
	require.Equal(t, model.RoleCouncillor, got.Persons["John Smith"])

	got = e.Extract("Cllr Jane Doe spoke about housing in Leeds.")
	require.True(t, got.Locations.Has("Leeds"))
	require.NotContains(t, got.Persons, "Cllr Jane Doe")
	require.Equal(t, model.RoleCouncillor, got.Persons["Jane Doe"])

	got = e.Extract("Buses from Newcastle upon Tyne to Stoke-on-Trent were cancelled.")
	require.True(t, got.Locations.Has("Newcastle upon Tyne"))
	require.True(t, got.Locations.Has("Stoke-on-Trent"))

	got = e.Extract("Feeling very Doncasterish today")
	require.False(t, got.Locations.Has("Doncaster"))
}

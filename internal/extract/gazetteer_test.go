package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultGazetteer(t *testing.T) {
	g := testGazetteer(t)

	require.Equal(t, "GB", g.Country())
	require.True(t, g.IsCity("Sheffield"))
	require.True(t, g.IsCity("stoke-on-trent"))
	require.True(t, g.IsCounty("YORKSHIRE"))
	require.False(t, g.IsCity("Yorkshire"))
	require.False(t, g.Contains("Narnia"))
	require.Greater(t, g.Len(), 100)
	require.NotEmpty(t, g.Patterns())
}

func TestGazetteerScanKeepsSurfaceCasing(t *testing.T) {
	g := testGazetteer(t)
	hits := g.Scan("Off to Sheffield, then DONCASTER.")
	require.ElementsMatch(t, []string{"Sheffield", "DONCASTER"}, hits)
}

func TestGazetteerScanWholeWordOnly(t *testing.T) {
	g := testGazetteer(t)
	require.Empty(t, g.Scan("Feeling very Doncasterish today"))
	require.Empty(t, g.Scan("Yorkshires"))
}

func TestGazetteerScanUnicodeWordEdges(t *testing.T) {
	g := testGazetteer(t)
	require.Empty(t, g.Scan("Leedsé and Bathø"))
	require.Empty(t, g.Scan("éLeeds"))
	require.ElementsMatch(t, []string{"Leeds", "Bath"}, g.Scan("Leeds, (Bath)"))
	require.Equal(t, []string{"Leeds", "Leeds"}, g.Scan("Leeds Leeds"))
	require.Equal(t, []string{"Leeds"}, g.Scan("«Leeds»"))
}

func TestGazetteerScanOverlappingEntries(t *testing.T) {
	g := testGazetteer(t)
	hits := g.Scan("Rally in Newcastle upon Tyne")
	require.Contains(t, hits, "Newcastle")
	require.Contains(t, hits, "Newcastle upon Tyne")
}

func TestLoadGazetteer(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "places.yaml")
	require.NoError(t, os.WriteFile(path, []byte("country: GB\ncities: [\"Ambridge \", ambridge]\ncounties: [Borsetshire]\n"), 0o644))
	g, err := LoadGazetteer(path)
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())
	require.True(t, g.IsCity("Ambridge"))
	require.True(t, g.IsCounty("borsetshire"))

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("country: GB\n"), 0o644))
	_, err = LoadGazetteer(empty)
	require.ErrorIs(t, err, ErrEmptyGazetteer)

	_, err = LoadGazetteer(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("cities: {"), 0o644))
	_, err = LoadGazetteer(bad)
	require.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCitiesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCities(t *testing.T) {
	path := writeCitiesFile(t, `
cities:
  - name: Berlin
    min_lon: 13.08
    min_lat: 52.33
    max_lon: 13.76
    max_lat: 52.68
  - name: Zürich
    min_lon: 8.44
    min_lat: 47.32
    max_lon: 8.63
    max_lat: 47.43
`)

	cities, err := LoadCities(path)
	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, "Berlin", cities[0].Name)
	assert.InDelta(t, 13.08, cities[0].MinLon, 1e-9)
	assert.Equal(t, "Zürich", cities[1].Name)
}

func TestLoadCitiesErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty list", "cities: []\n"},
		{"missing name", "cities:\n  - min_lon: 1\n    min_lat: 1\n    max_lon: 2\n    max_lat: 2\n"},
		{"inverted bbox", "cities:\n  - name: X\n    min_lon: 2\n    min_lat: 1\n    max_lon: 1\n    max_lat: 2\n"},
		{"not yaml", "{{{\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCities(writeCitiesFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadCitiesMissingFile(t *testing.T) {
	_, err := LoadCities(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestFindCity(t *testing.T) {
	path := writeCitiesFile(t, `
cities:
  - name: Berlin
    min_lon: 13.08
    min_lat: 52.33
    max_lon: 13.76
    max_lat: 52.68
`)
	cities, err := LoadCities(path)
	require.NoError(t, err)

	c, ok := FindCity(cities, "Berlin")
	require.True(t, ok)
	assert.Equal(t, "Berlin", c.Name)

	_, ok = FindCity(cities, "berlin")
	assert.False(t, ok, "matching is case sensitive")
}

package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/metrograph/demandgen/internal/model"
)

type citiesFile struct {
	Cities []model.City `yaml:"cities"`
}

// LoadCities reads the city bounding-box file. Each entry needs a name and a
// valid bbox; a malformed entry fails the whole load rather than being skipped,
// so a typo in one city cannot silently shrink a batch run.
func LoadCities(path string) ([]model.City, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read cities file %s", path)
	}

	var f citiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "config: parse cities file %s", path)
	}
	if len(f.Cities) == 0 {
		return nil, eris.Errorf("config: cities file %s lists no cities", path)
	}

	for i, c := range f.Cities {
		if c.Name == "" {
			return nil, eris.Errorf("config: cities file %s: entry %d has no name", path, i)
		}
		if c.MinLon >= c.MaxLon || c.MinLat >= c.MaxLat {
			return nil, eris.Errorf("config: cities file %s: %s has an empty bounding box", path, c.Name)
		}
	}
	return f.Cities, nil
}

// FindCity returns the city with the given name, matched case-sensitively.
func FindCity(cities []model.City, name string) (model.City, bool) {
	for _, c := range cities {
		if c.Name == name {
			return c, true
		}
	}
	return model.City{}, false
}

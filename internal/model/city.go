package model

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// City is one configured processing target: a display name plus the
// bounding box to fetch and process.
type City struct {
	Name   string  `yaml:"name" json:"name"`
	MinLon float64 `yaml:"min_lon" json:"min_lon"`
	MinLat float64 `yaml:"min_lat" json:"min_lat"`
	MaxLon float64 `yaml:"max_lon" json:"max_lon"`
	MaxLat float64 `yaml:"max_lat" json:"max_lat"`
}

// Bounds returns the city bounding box.
func (c City) Bounds() Bounds {
	return Bounds{MinLon: c.MinLon, MinLat: c.MinLat, MaxLon: c.MaxLon, MaxLat: c.MaxLat}
}

// LoadCities reads the city list from a YAML file.
func LoadCities(path string) ([]City, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "model: read cities file %s", path)
	}
	var doc struct {
		Cities []City `yaml:"cities"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "model: parse cities file")
	}
	for _, c := range doc.Cities {
		if c.Name == "" {
			return nil, eris.New("model: city with empty name")
		}
		if !c.Bounds().Valid() {
			return nil, eris.Errorf("model: city %s has a degenerate bounding box", c.Name)
		}
	}
	return doc.Cities, nil
}

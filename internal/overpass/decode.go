package overpass

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/metrograph/demandgen/internal/model"
)

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type elementBounds struct {
	MinLat float64 `json:"minlat"`
	MinLon float64 `json:"minlon"`
	MaxLat float64 `json:"maxlat"`
	MaxLon float64 `json:"maxlon"`
}

type element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat"`
	Lon      float64           `json:"lon"`
	Center   *latLon           `json:"center,omitempty"`
	Bounds   *elementBounds    `json:"bounds,omitempty"`
	Geometry []latLon          `json:"geometry,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// decodeResponse incrementally parses an Overpass JSON document: elements
// are decoded one at a time off the token stream rather than buffering the
// whole array, and the remark field is captured when present.
func decodeResponse(r io.Reader) ([]model.RawFeature, string, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, "", eris.Wrap(err, "overpass: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, "", eris.Errorf("overpass: expected response object, got %v", tok)
	}

	var feats []model.RawFeature
	var remark string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, "", eris.Wrap(err, "overpass: read key")
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, "", eris.Errorf("overpass: expected object key, got %v", keyTok)
		}

		switch key {
		case "elements":
			tok, err := dec.Token()
			if err != nil {
				return nil, "", eris.Wrap(err, "overpass: read elements open")
			}
			if delim, ok := tok.(json.Delim); !ok || delim != '[' {
				return nil, "", eris.Errorf("overpass: elements is not an array")
			}
			for dec.More() {
				var el element
				if err := dec.Decode(&el); err != nil {
					return nil, "", eris.Wrap(err, "overpass: decode element")
				}
				if f, ok := toRawFeature(el); ok {
					feats = append(feats, f)
				}
			}
			if _, err := dec.Token(); err != nil {
				return nil, "", eris.Wrap(err, "overpass: read elements close")
			}
		case "remark":
			if err := dec.Decode(&remark); err != nil {
				return nil, "", eris.Wrap(err, "overpass: decode remark")
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, "", eris.Wrapf(err, "overpass: skip field %s", key)
			}
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, "", eris.Wrap(err, "overpass: read closing token")
	}
	return feats, remark, nil
}

// Package dataset persists per-city pipeline state on disk: raw feature
// dumps under raw/ and the processed outputs under processed/. Raw
// datasets exist in two encodings, a streaming JSON array and a compact
// gob form; readers auto-detect whichever is present, preferring gob.
package dataset

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metrograph/demandgen/internal/codec"
	"github.com/metrograph/demandgen/internal/model"
)

const (
	rawDirName       = "raw"
	processedDirName = "processed"

	indexFileName   = "index.json"
	demandFileName  = "demand.json"
	summaryFileName = "summary.json"
)

// ErrNotFound reports a missing city or dataset file.
var ErrNotFound = errors.New("dataset: not found")

// Store is the per-city file store rooted at one output directory.
type Store struct {
	root string
	log  *zap.Logger
}

// NewStore returns a store rooted at dir. The directory is created lazily
// on first write.
func NewStore(dir string) *Store {
	return &Store{
		root: dir,
		log:  zap.L().With(zap.String("component", "dataset")),
	}
}

// CityDir returns the directory holding one city's state.
func (s *Store) CityDir(city string) string {
	return filepath.Join(s.root, Slug(city))
}

func (s *Store) rawPath(city, dataset, ext string) string {
	return filepath.Join(s.CityDir(city), rawDirName, dataset+ext)
}

func (s *Store) processedPath(city, name string) string {
	return filepath.Join(s.CityDir(city), processedDirName, name)
}

// WriteRawText streams the feature array to raw/<dataset>.json.
func (s *Store) WriteRawText(ctx context.Context, city, dataset string, feats []model.RawFeature) error {
	path := s.rawPath(city, dataset, ".json")
	if err := s.writeFile(path, func(f *os.File) error {
		sink := codec.NewBufferedSink(f, 0)
		return codec.EncodeArray(ctx, sink, slices.Values(feats))
	}); err != nil {
		return err
	}
	s.log.Debug("wrote raw dataset", zap.String("path", path), zap.Int("features", len(feats)))
	return nil
}

// WriteRawBinary writes the compact gob form to raw/<dataset>.gob. Features
// without any usable bounds are skipped.
func (s *Store) WriteRawBinary(city, dataset string, feats []model.RawFeature) error {
	compact := make([]model.CompactFeature, 0, len(feats))
	for _, f := range feats {
		if c, ok := model.Compact(f); ok {
			compact = append(compact, c)
		}
	}

	path := s.rawPath(city, dataset, ".gob")
	if err := s.writeFile(path, func(f *os.File) error {
		return codec.EncodeBinary(f, compact)
	}); err != nil {
		return err
	}
	s.log.Debug("wrote compact dataset", zap.String("path", path), zap.Int("features", len(compact)))
	return nil
}

// ReadRaw loads one raw dataset, auto-detecting the encoding. The gob form
// wins when both exist since it parses several times faster.
func (s *Store) ReadRaw(ctx context.Context, city, dataset string) ([]model.RawFeature, error) {
	var feats []model.RawFeature
	err := s.readRawInto(ctx, city, dataset, &feats)
	return feats, err
}

func (s *Store) readRawInto(ctx context.Context, city, dataset string, out *[]model.RawFeature) error {
	path := s.rawPath(city, dataset, ".gob")
	if _, err := os.Stat(path); err != nil {
		path = s.rawPath(city, dataset, ".json")
	}
	return s.readFile(path, s.rawReader(ctx, path, out))
}

// ReadRawMany loads several raw datasets concurrently, one reader per file.
func (s *Store) ReadRawMany(ctx context.Context, city string, datasets []string) (map[string][]model.RawFeature, error) {
	out := make(map[string][]model.RawFeature, len(datasets))
	slots := make(map[string]*[]model.RawFeature, len(datasets))
	for _, ds := range datasets {
		var feats []model.RawFeature
		slots[ds] = &feats
	}

	readers := make(map[string]func(*os.File) error, len(datasets))
	for _, ds := range datasets {
		slot := slots[ds]
		path := s.rawPath(city, ds, ".gob")
		if _, err := os.Stat(path); err != nil {
			path = s.rawPath(city, ds, ".json")
		}
		readers[path] = s.rawReader(ctx, path, slot)
	}

	if err := codec.ReadFiles(ctx, readers); err != nil {
		return nil, err
	}
	for ds, slot := range slots {
		out[ds] = *slot
	}
	return out, nil
}

func (s *Store) rawReader(ctx context.Context, path string, out *[]model.RawFeature) func(*os.File) error {
	if filepath.Ext(path) == ".gob" {
		return func(f *os.File) error {
			var compact []model.CompactFeature
			if err := codec.DecodeBinary(f, &compact); err != nil {
				return err
			}
			feats := make([]model.RawFeature, 0, len(compact))
			for _, c := range compact {
				feats = append(feats, c.Expand())
			}
			*out = feats
			return nil
		}
	}
	return func(f *os.File) error {
		feats, err := codec.CollectArray[model.RawFeature](ctx, f)
		if err != nil {
			return err
		}
		*out = feats
		return nil
	}
}

// WriteIndex writes the processed building index.
func (s *Store) WriteIndex(city string, idx model.BuildingIndex) error {
	return s.writeFile(s.processedPath(city, indexFileName), func(f *os.File) error {
		sink := codec.NewBufferedSink(f, 0)
		enc := codec.NewStreamEncoder(sink)
		enc.BeginObject()
		enc.Field("bounds")
		enc.Value(idx.Bounds)
		enc.Field("cols")
		enc.Value(idx.Cols)
		enc.Field("rows")
		enc.Value(idx.Rows)
		enc.Field("cell_meters")
		enc.Value(idx.CellMeters)
		enc.Field("cells")
		enc.BeginArray()
		for _, c := range idx.Cells {
			enc.Value(c)
		}
		enc.EndArray()
		enc.Field("rectangles")
		enc.BeginArray()
		for _, r := range idx.Rectangles {
			enc.Value(r)
		}
		enc.EndArray()
		enc.EndObject()
		return enc.Close()
	})
}

// ReadIndex loads the processed building index.
func (s *Store) ReadIndex(city string) (model.BuildingIndex, error) {
	var idx model.BuildingIndex
	err := s.readFile(s.processedPath(city, indexFileName), func(f *os.File) error {
		return codec.DecodeValue(f, &idx)
	})
	return idx, err
}

// WriteDemand streams the demand dataset, connection by connection, so the
// largest output never sits fully encoded in memory.
func (s *Store) WriteDemand(city string, ds model.DemandDataset) error {
	return s.writeFile(s.processedPath(city, demandFileName), func(f *os.File) error {
		sink := codec.NewBufferedSink(f, 0)
		enc := codec.NewStreamEncoder(sink)
		enc.BeginObject()
		enc.Field("neighborhoods")
		enc.BeginArray()
		for _, h := range ds.Neighborhoods {
			enc.Value(h)
		}
		enc.EndArray()
		enc.Field("connections")
		enc.BeginArray()
		for _, c := range ds.Connections {
			enc.Value(c)
		}
		enc.EndArray()
		enc.Field("stats")
		enc.Value(ds.Stats)
		enc.EndObject()
		return enc.Close()
	})
}

// ReadDemand loads the processed demand dataset.
func (s *Store) ReadDemand(city string) (model.DemandDataset, error) {
	var ds model.DemandDataset
	err := s.readFile(s.processedPath(city, demandFileName), func(f *os.File) error {
		return codec.DecodeValue(f, &ds)
	})
	return ds, err
}

// WriteSummary writes the run summary next to the demand set.
func (s *Store) WriteSummary(city string, stats model.SummaryStats) error {
	return s.writeFile(s.processedPath(city, summaryFileName), func(f *os.File) error {
		sink := codec.NewBufferedSink(f, 0)
		enc := codec.NewStreamEncoder(sink)
		enc.Value(stats)
		return enc.Close()
	})
}

// ReadSummary loads the run summary.
func (s *Store) ReadSummary(city string) (model.SummaryStats, error) {
	var stats model.SummaryStats
	err := s.readFile(s.processedPath(city, summaryFileName), func(f *os.File) error {
		return codec.DecodeValue(f, &stats)
	})
	return stats, err
}

// HasProcessed reports whether the city has a complete processed output.
func (s *Store) HasProcessed(city string) bool {
	for _, name := range []string{indexFileName, demandFileName, summaryFileName} {
		if _, err := os.Stat(s.processedPath(city, name)); err != nil {
			return false
		}
	}
	return true
}

// ListCities returns the slugs with any stored state, sorted.
func (s *Store) ListCities() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "dataset: list cities")
	}
	var slugs []string
	for _, e := range entries {
		if e.IsDir() {
			slugs = append(slugs, e.Name())
		}
	}
	slices.Sort(slugs)
	return slugs, nil
}

// writeFile writes through a temp file and renames, so readers never see a
// half-written dataset.
func (s *Store) writeFile(path string, fill func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "dataset: create %s", filepath.Dir(path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return eris.Wrap(err, "dataset: create temp file")
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "dataset: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "dataset: close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "dataset: finalize %s", path)
	}
	return nil
}

func (s *Store) readFile(path string, read func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return eris.Wrapf(ErrNotFound, "dataset: %s", path)
		}
		return eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	if err := read(f); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return eris.Wrapf(err, "dataset: truncated file %s", path)
		}
		return eris.Wrapf(err, "dataset: read %s", path)
	}
	return nil
}

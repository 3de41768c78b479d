package codec

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// ReadFiles opens and decodes independent files concurrently. Decode costs
// are independent and usually lopsided (places is far smaller than
// buildings), so overlapping removes the smaller file from the critical
// path. Any decode failure fails the whole read.
func ReadFiles(ctx context.Context, readers map[string]func(*os.File) error) error {
	g, _ := errgroup.WithContext(ctx)
	for path, read := range readers {
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return eris.Wrapf(err, "codec: open %s", path)
			}
			defer f.Close() //nolint:errcheck
			if err := read(f); err != nil {
				return eris.Wrapf(err, "codec: read %s", path)
			}
			return nil
		})
	}
	return g.Wait()
}

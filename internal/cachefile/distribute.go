package cachefile

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Distribute copies the file at src to every sink. Sinks are written
// concurrently; each copy is atomic. A sink whose parent directory does not
// exist is skipped with a warning, since it usually means that consumer is
// not checked out on this machine. The returned slice lists the sinks that
// were written.
func Distribute(ctx context.Context, src string, sinks []string) ([]string, error) {
	if len(sinks) == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, eris.Wrapf(err, "cachefile: read %s for distribution", src)
	}

	log := zap.L().With(zap.String("component", "cachefile.distribute"))
	written := make([]bool, len(sinks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sink := range sinks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if sameFile(src, sink) {
				return nil
			}
			dir := filepath.Dir(sink)
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				log.Warn("sink directory missing, skipping", zap.String("sink", sink))
				return nil
			}
			if err := writeFileAtomic(sink, data); err != nil {
				return eris.Wrapf(err, "cachefile: distribute to %s", sink)
			}
			log.Info("distributed cache", zap.String("sink", sink), zap.Int("bytes", len(data)))
			written[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []string
	for i, ok := range written {
		if ok {
			out = append(out, sinks[i])
		}
	}
	return out, nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

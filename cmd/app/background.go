package main

import (
	"context"
	"io"

	"github.com/waste3d/coursemarket-api/internal/obs"

	"golang.org/x/sync/errgroup"
)

// startBackground запускает run в отдельной горутине. wait блокируется, пока run не
// вернется после отмены ctx, и только потом закрывает closer.
func startBackground(ctx context.Context, run func(context.Context), closer io.Closer) (wait func()) {
	var g errgroup.Group
	g.Go(func() error {
		run(ctx)
		return nil
	})
	return func() {
		_ = g.Wait()
		if err := closer.Close(); err != nil {
			obs.Logger.Warn("background worker close", "err", err)
		}
	}
}

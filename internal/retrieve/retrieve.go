// Package retrieve materializes selected archive products on local disk.
package retrieve

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/hubble-cli/internal/model"
)

// Downloader writes the resource at url to path.
type Downloader interface {
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// URLResolver maps a product to the HTTP URL serving it.
type URLResolver interface {
	DownloadURL(p model.ProductRecord) string
}

// Options configures a Retriever.
type Options struct {
	// Dir is the root of the local download tree.
	Dir string
	// Concurrency bounds parallel downloads. Values below one mean one.
	Concurrency int
}

// Retriever downloads every chosen product of a run.
type Retriever struct {
	dl   Downloader
	urls URLResolver
	opts Options
}

// New creates a Retriever.
func New(dl Downloader, urls URLResolver, opts Options) *Retriever {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	return &Retriever{dl: dl, urls: urls, opts: opts}
}

// LocalPath returns where p is stored:
// <dir>/mastDownload/<collection>/<obs_id>/<filename>.
func LocalPath(dir string, p model.ProductRecord) string {
	collection := p.Collection
	if collection == "" {
		collection = model.DefaultCollection
	}
	obs := p.ObsIDName
	if obs == "" {
		obs = p.ObsID
	}
	return filepath.Join(dir, "mastDownload", segment(collection), segment(obs), segment(p.Filename))
}

// segment reduces an archive-supplied name to a single path element that
// cannot leave its parent directory.
func segment(name string) string {
	base := filepath.Base(filepath.Clean("/" + name))
	switch base {
	case "/", ".", "..":
		return "_"
	}
	return base
}

// Retrieve downloads all products and returns them in input order. The first
// failure cancels outstanding downloads and fails the whole call.
func (r *Retriever) Retrieve(ctx context.Context, products []model.ProductRecord) ([]model.RetrievedFile, error) {
	if len(products) == 0 {
		return nil, eris.New("retrieve: no products")
	}

	for i, p := range products {
		if p.Filename == "" || p.DataURI == "" {
			return nil, eris.Errorf("retrieve: product %d has no filename or data URI", i)
		}
	}

	out := make([]model.RetrievedFile, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, p := range products {
		g.Go(func() error {
			path := LocalPath(r.opts.Dir, p)
			start := time.Now()
			n, err := r.dl.DownloadToFile(gctx, r.urls.DownloadURL(p), path)
			if err != nil {
				return eris.Wrapf(err, "retrieve %s", p.Filename)
			}
			zap.L().Info("retrieve: downloaded",
				zap.String("file", p.Filename),
				zap.String("path", path),
				zap.Int64("bytes", n),
				zap.Duration("elapsed", time.Since(start)),
			)
			p.LocalPath = path
			out[i] = model.RetrievedFile{Path: path, Product: p}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

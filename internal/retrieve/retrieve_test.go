package retrieve

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hubble-cli/internal/model"
)

type fakeDownloader struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]error
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeDownloader) DownloadToFile(ctx context.Context, url, path string) (int64, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if err := f.fail[url]; err != nil {
		return 0, err
	}
	return 42, nil
}

type resolver struct{}

func (resolver) DownloadURL(p model.ProductRecord) string {
	return "https://mast.test/" + p.DataURI
}

func product(name string) model.ProductRecord {
	return model.ProductRecord{
		ObsID:      "24139596",
		ObsIDName:  "le4a01010",
		Collection: "HST",
		SubGroup:   "X1D",
		Filename:   name,
		DataURI:    "mast:HST/product/" + name,
	}
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("/data", "mastDownload", "HST", "le4a01010", "le4a01010_x1d.fits"),
		LocalPath("/data", product("le4a01010_x1d.fits")))

	p := model.ProductRecord{ObsID: "123", Filename: "../../etc/x.fits"}
	assert.Equal(t, filepath.Join("d", "mastDownload", "HST", "123", "x.fits"), LocalPath("d", p))

	escapes := []model.ProductRecord{
		{ObsIDName: "../..", Collection: "HST", Filename: "x.fits"},
		{ObsIDName: "le4a01010", Collection: "../../tmp", Filename: "x.fits"},
		{ObsIDName: "..", Collection: "..", Filename: ".."},
		{ObsIDName: "a/../../b", Collection: "/", Filename: "x.fits"},
	}
	root := filepath.Join("d", "mastDownload") + string(filepath.Separator)
	for _, p := range escapes {
		got := LocalPath("d", p)
		assert.True(t, strings.HasPrefix(got, root), "%+v stored at %s", p, got)
		rel, err := filepath.Rel(filepath.Join("d", "mastDownload"), got)
		require.NoError(t, err)
		assert.Len(t, strings.Split(rel, string(filepath.Separator)), 3, "%+v stored at %s", p, got)
	}
}

func TestRetrieve_PreservesOrder(t *testing.T) {
	dl := &fakeDownloader{}
	r := New(dl, resolver{}, Options{Dir: "/data", Concurrency: 3})

	in := []model.ProductRecord{product("a_flc.fits"), product("b_flc.fits"), product("c_flc.fits")}
	got, err := r.Retrieve(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, f := range got {
		assert.Equal(t, in[i].Filename, f.Product.Filename)
		assert.Equal(t, LocalPath("/data", in[i]), f.Path)
		assert.Equal(t, f.Path, f.Product.LocalPath)
	}
	assert.Len(t, dl.calls, 3)
}

func TestRetrieve_SequentialByDefault(t *testing.T) {
	dl := &fakeDownloader{delay: 5 * time.Millisecond}
	r := New(dl, resolver{}, Options{Dir: t.TempDir()})

	_, err := r.Retrieve(context.Background(), []model.ProductRecord{
		product("a.fits"), product("b.fits"), product("c.fits"),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), dl.peak.Load())
	assert.Equal(t, []string{
		"https://mast.test/mast:HST/product/a.fits",
		"https://mast.test/mast:HST/product/b.fits",
		"https://mast.test/mast:HST/product/c.fits",
	}, dl.calls)
}

func TestRetrieve_AnyFailureFailsAll(t *testing.T) {
	cause := errors.New("http 404 from mast")
	dl := &fakeDownloader{fail: map[string]error{
		"https://mast.test/mast:HST/product/b.fits": cause,
	}}
	r := New(dl, resolver{}, Options{Dir: t.TempDir()})

	got, err := r.Retrieve(context.Background(), []model.ProductRecord{
		product("a.fits"), product("b.fits"), product("c.fits"),
	})
	require.Error(t, err)
	assert.Nil(t, got, "no partial success")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "b.fits")
}

func TestRetrieve_InvalidInput(t *testing.T) {
	r := New(&fakeDownloader{}, resolver{}, Options{})

	_, err := r.Retrieve(context.Background(), nil)
	assert.Error(t, err)

	_, err = r.Retrieve(context.Background(), []model.ProductRecord{{Filename: "x.fits"}})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	r := New(&fakeDownloader{}, resolver{}, Options{})
	assert.Equal(t, 1, r.opts.Concurrency)
	assert.Equal(t, ".", r.opts.Dir)
}

package p2

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/launchtower/pkg/cache"
	errs "github.com/matzehuels/launchtower/pkg/errors"
	"github.com/matzehuels/launchtower/pkg/observability"
	"github.com/matzehuels/launchtower/pkg/osgi"
)

// sourceSuffix names the companion bundle carrying sources.
const sourceSuffix = ".source"

// renameMu serializes moving finished downloads into place across all
// fetchers in the process.
var renameMu sync.Mutex

// RemoteBundle is a bundle offered by an indexed repository.
type RemoteBundle struct {
	Info    *osgi.BundleInfo
	RepoURL string // leaf repository offering the bundle

	mu    sync.Mutex
	local *osgi.BundleInfo
}

// ArtifactPath is the repository-relative location of the bundle jar.
func (rb *RemoteBundle) ArtifactPath() string {
	return "plugins/" + rb.Info.Name + "_" + rb.Info.Version + ".jar"
}

// ArtifactURL is the absolute location of the bundle jar.
func (rb *RemoteBundle) ArtifactURL() string {
	return rb.RepoURL + "/" + rb.ArtifactPath()
}

// materialized reports whether the artifact has been fetched.
func (rb *RemoteBundle) materialized() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.local != nil
}

// Fetcher downloads artifacts into a directory. Concurrent requests for the
// same file share a single transfer.
type Fetcher struct {
	client *Client
	dir    string
	logger *log.Logger
	group  singleflight.Group
}

// NewFetcher creates a Fetcher writing below dir.
func NewFetcher(client *Client, dir string, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Fetcher{client: client, dir: dir, logger: logger}
}

// Fetch stores the artifact at url under rel and returns its local path.
// An existing file is reused. A missing or redirected artifact yields an
// ARTIFACT_NOT_FOUND error.
func (f *Fetcher) Fetch(ctx context.Context, rel, url string) (string, error) {
	if err := errs.ValidatePath(rel); err != nil {
		return "", err
	}
	final := filepath.Join(f.dir, filepath.FromSlash(rel))
	v, err, _ := f.group.Do(final, func() (any, error) {
		if _, err := os.Stat(final); err == nil {
			return final, nil
		}
		start := time.Now()
		n, err := f.download(ctx, url, final)
		observability.Resolve().OnArtifactFetch(ctx, rel, n, time.Since(start), err)
		if err != nil {
			return "", err
		}
		f.logger.Debug("fetched artifact", "url", url, "bytes", n)
		return final, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (f *Fetcher) download(ctx context.Context, url, final string) (int64, error) {
	ok, err := f.client.Exists(ctx, url)
	if err != nil {
		return 0, errs.Wrap(errs.ErrCodeArtifactNotFound, err, "head %s", url)
	}
	if !ok {
		return 0, errs.New(errs.ErrCodeArtifactNotFound, "artifact %s not found", url)
	}

	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(final), ".download-*")
	if err != nil {
		return 0, err
	}
	n, err := f.client.Download(ctx, url, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		if errors.Is(err, cache.ErrNotFound) {
			return n, errs.Wrap(errs.ErrCodeArtifactNotFound, err, "download %s", url)
		}
		return n, errs.Wrap(errs.ErrCodeNetwork, err, "download %s", url)
	}

	renameMu.Lock()
	err = os.Rename(tmp.Name(), final)
	renameMu.Unlock()
	if err != nil {
		os.Remove(tmp.Name())
		return n, fmt.Errorf("install %s: %w", final, err)
	}
	return n, nil
}

// Materialize fetches the artifact of rb, reads its manifest and returns the
// bundle with Path set and its metadata completed from the manifest. A
// ".source" companion at the same version is fetched too when the index
// offers one; failing to fetch it is only logged.
func (idx *Index) Materialize(ctx context.Context, rb *RemoteBundle) (*osgi.BundleInfo, error) {
	rb.mu.Lock()
	if rb.local != nil {
		b := rb.local.Clone()
		rb.mu.Unlock()
		return b, nil
	}
	rb.mu.Unlock()

	if idx.fetcher == nil {
		return nil, errs.New(errs.ErrCodeInvalidConfig, "no artifact directory configured")
	}
	path, err := idx.fetcher.Fetch(ctx, rb.ArtifactPath(), rb.ArtifactURL())
	if err != nil {
		return nil, err
	}
	m, err := osgi.ReadBundle(path)
	if err != nil {
		return nil, err
	}
	info := rb.Info.Clone()
	info.Augment(m)
	info.Path = path

	rb.mu.Lock()
	if rb.local == nil {
		rb.local = info
	}
	out := rb.local.Clone()
	rb.mu.Unlock()

	idx.fetchSource(ctx, rb.Info)
	return out, nil
}

func (idx *Index) fetchSource(ctx context.Context, b *osgi.BundleInfo) {
	src := idx.BestBundle(b.Name+sourceSuffix, osgi.Exactly(b.ParsedVersion()))
	if src == nil || src.Info.Version != b.Version {
		return
	}
	if _, err := idx.fetcher.Fetch(ctx, src.ArtifactPath(), src.ArtifactURL()); err != nil {
		idx.opts.Logger.Debug("source bundle unavailable", "bundle", src.Info.Key(), "err", err)
	}
}

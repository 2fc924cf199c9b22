// Package fetcher materializes a workbook source (local path, http(s) URL or
// ftp URL) as a local file.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Downloader streams a remote resource.
type Downloader interface {
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Local is a fetched file. Release removes any temporary copy.
type Local struct {
	Path    string
	Release func()
}

// Options configures a Fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// TempDir holds downloaded copies. Empty means os.TempDir().
	TempDir string
}

// Fetcher dispatches on the source scheme.
type Fetcher struct {
	opts Options
	http Downloader
	ftp  Downloader
}

// New creates a Fetcher with HTTP and FTP support.
func New(opts Options) *Fetcher {
	return &Fetcher{
		opts: opts,
		http: NewHTTPFetcher(HTTPOptions{Timeout: opts.Timeout, UserAgent: opts.UserAgent}),
		ftp:  NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
	}
}

// Fetch returns a local file for source. Local paths are returned as-is;
// remote sources are downloaded to a temp file that keeps the source's
// extension.
func (f *Fetcher) Fetch(ctx context.Context, source string) (*Local, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, eris.New("fetcher: empty source")
	}

	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path (a one-letter scheme is a Windows drive).
		if _, statErr := os.Stat(source); statErr != nil {
			return nil, eris.Wrapf(statErr, "fetcher: stat %s", source)
		}
		return &Local{Path: source, Release: func() {}}, nil
	}

	var dl Downloader
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		dl = f.http
	case "ftp":
		dl = f.ftp
	case "file":
		return &Local{Path: u.Path, Release: func() {}}, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}

	return f.download(ctx, dl, source, path.Ext(u.Path))
}

func (f *Fetcher) download(ctx context.Context, dl Downloader, source, ext string) (*Local, error) {
	start := time.Now()
	rc, err := dl.Download(ctx, source)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: download %s", redact(source))
	}
	defer rc.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(f.opts.TempDir, "hitrate-*"+ext)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create temp file")
	}

	n, err := io.Copy(tmp, rc)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return nil, eris.Wrapf(err, "fetcher: write %s", tmp.Name())
	}

	zap.L().Info("fetcher: downloaded source",
		zap.String("source", redact(source)),
		zap.String("path", tmp.Name()),
		zap.Int64("bytes", n),
		zap.Duration("elapsed", time.Since(start)),
	)

	name := tmp.Name()
	return &Local{Path: name, Release: func() { os.Remove(name) }}, nil //nolint:errcheck
}

// IsRemote reports whether source needs a download.
func IsRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// redact drops credentials from a URL for logging.
func redact(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.User == nil {
		return source
	}
	return u.Redacted()
}

// BaseName returns the file name of a source for display.
func BaseName(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return path.Base(u.Path)
	}
	return filepath.Base(source)
}

package installer

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrDownload indicates a binary fetch that failed after all retries
var ErrDownload = errors.New("download failed")

// Bounded retry policy for binary fetches
const (
	downloadRetries  = 3
	downloadInterval = 2 * time.Second
)

// httpClient is swappable for tests
var httpClient = &http.Client{Timeout: 5 * time.Minute}

// download fetches url to dest with bounded exponential backoff.
// This is the only operation in a build that retries; every failure
// after the last attempt surfaces as fatal.
func (i *Installer) download(url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			slog.Debug("retrying download", "url", url, "attempt", attempt)
		}

		return fetchOnce(url, dest)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = i.retryInterval

	if err := backoff.Retry(op, backoff.WithMaxRetries(policy, downloadRetries)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDownload, url, err)
	}

	return nil
}

// fetchOnce performs a single fetch attempt
func fetchOnce(url, dest string) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}

	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dest)
		return err
	}

	return nil
}

// extractTarGz unpacks a gzipped tarball into dir, stripping the
// tarball's single top-level directory
func extractTarGz(archive, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}

	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}

	defer gz.Close()

	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		name := stripTopDir(hdr.Name)
		if name == "" {
			continue
		}

		target := filepath.Join(dir, name)
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			os.Remove(target)
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}

			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return err
			}

			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}

			out.Close()
		}
	}

	return nil
}

// stripTopDir drops the first path element of a tar entry name
func stripTopDir(name string) string {
	name = strings.TrimPrefix(name, "./")

	idx := strings.IndexByte(name, '/')
	if idx < 0 {
		return ""
	}

	return name[idx+1:]
}

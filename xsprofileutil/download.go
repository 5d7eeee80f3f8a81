/*
Copyright © 2023 the xsprofile authors.
This file is part of xsprofile.

xsprofile is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

xsprofile is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with xsprofile.  If not, see <http://www.gnu.org/licenses/>.
*/

package xsprofileutil

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// maxDownloadRetries is the number of times a failed HTTP download
// is retried.
const maxDownloadRetries = 4

// errNotFound is returned when a file to be downloaded does not exist.
var errNotFound = errors.New("file not found")

// downloader tracks the temporary directories that remote inputs are
// downloaded to.
type downloader struct {
	dirs []string
}

// tempDir creates a directory for one download.
func (d *downloader) tempDir() (string, error) {
	dir, err := ioutil.TempDir("", "xsprofile")
	if err != nil {
		return "", errors.Wrap(err, "xsprofileutil: creating temporary download directory")
	}
	d.dirs = append(d.dirs, dir)
	return dir, nil
}

// cleanup removes the downloaded files.
func (d *downloader) cleanup() {
	for _, dir := range d.dirs {
		os.RemoveAll(dir)
	}
	d.dirs = nil
}

// maybeDownload checks if the input is an existing file locally.
// If not, it checks if the file is a URL or blob location.
// If it is, it downloads the file and returns the path to the
// downloaded file. For shapefiles, it downloads all associated files
// and returns the path to the file with the ".shp" extension.
// Other paths are returned unchanged.
func (d *downloader) maybeDownload(ctx context.Context, path string, log logrus.FieldLogger) (string, error) {
	// Check if local file exists. If it does, return the given path.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}

	// If the path starts with one of these prefixes, download the file and
	// return the location it was downloaded to.
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return d.downloadHTTP(ctx, path, log)
	}
	if IsBlob(path) {
		return d.downloadBlob(ctx, path, log)
	}
	return path, nil
}

// downloadHTTP downloads a file from the specified URL and returns
// the path to the downloaded file. Failed requests are retried with
// exponential backoff.
func (d *downloader) downloadHTTP(ctx context.Context, path string, log logrus.FieldLogger) (string, error) {
	dir, err := d.tempDir()
	if err != nil {
		return "", err
	}

	fnames := expandShp(path)
	for i, fname := range fnames {
		dst := filepath.Join(dir, filepath.Base(fname))
		var missing bool
		err := backoff.RetryNotify(
			func() error {
				err := getHTTP(ctx, fname, dst)
				if err == errNotFound {
					missing = true
					return nil
				}
				return err
			},
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxDownloadRetries),
			func(err error, d time.Duration) {
				log.Warnf("downloading %s: %v: retrying in %v", fname, err, d)
			},
		)
		if err != nil {
			return "", errors.Wrapf(err, "xsprofileutil: downloading %s", fname)
		}
		if missing && (i == 0 || !optionalCompanion(fname)) {
			return "", errors.Wrapf(errNotFound, "xsprofileutil: downloading %s", fname)
		}
		if !missing {
			log.Debugf("downloaded %s", fname)
		}
	}
	return filepath.Join(dir, filepath.Base(fnames[0])), nil
}

// getHTTP copies the file at url to the local path dst.
func getHTTP(ctx context.Context, url, dst string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// downloadBlob downloads the specified file from blob storage.
func (d *downloader) downloadBlob(ctx context.Context, path string, log logrus.FieldLogger) (string, error) {
	bucketName, key, err := splitBlob(path)
	if err != nil {
		return "", err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return "", errors.Wrapf(err, "xsprofileutil: opening bucket for %s", path)
	}
	defer bucket.Close()
	dir, err := d.tempDir()
	if err != nil {
		return "", err
	}
	keys := expandShp(key)
	for i, k := range keys {
		err := copyBlob(ctx, bucket, k, filepath.Join(dir, filepath.Base(k)))
		if gcerrors.Code(err) == gcerrors.NotFound && i > 0 && optionalCompanion(k) {
			continue
		} else if err != nil {
			return "", errors.Wrapf(err, "xsprofileutil: downloading %s", path)
		}
		log.Debugf("downloaded %s from %s", k, bucketName)
	}
	return filepath.Join(dir, filepath.Base(keys[0])), nil
}

// copyBlob copies the blob at key to the local path dst.
func copyBlob(ctx context.Context, bucket *blob.Bucket, key, dst string) error {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// expandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise
func expandShp(filename string) []string {
	o := []string{filename}
	ext := filepath.Ext(filename)
	if ext != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}

// optionalCompanion returns whether a shapefile can be read without
// the given companion file.
func optionalCompanion(filename string) bool {
	return filepath.Ext(filename) == ".prj"
}

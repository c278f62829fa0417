package filestore

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	tempPrefix      = ".tmp-"
	filePerm        = 0o644
	maxNameAttempts = 1000
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// stageTemp writes fill's output to a hidden temp file inside dir and returns
// its path. The caller owns the temp file afterwards.
func stageTemp(dir string, fill func(io.Writer) error) (string, int64, error) {
	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", 0, err
	}
	tmp := f.Name()
	cw := &countingWriter{w: f}
	if err := fill(cw); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", 0, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", 0, err
	}
	if err := os.Chmod(tmp, filePerm); err != nil {
		_ = os.Remove(tmp)
		return "", 0, err
	}
	return tmp, cw.n, nil
}

// writeReplace stages the content and renames it over dir/name. Concurrent
// writers to the same name race; the last rename wins.
func writeReplace(dir, name string, fill func(io.Writer) error) (int64, error) {
	tmp, n, err := stageTemp(dir, fill)
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return n, nil
}

// linkFile is os.Link; tests swap it to simulate mounts without hard links.
var linkFile = os.Link

// writeUnique stages the content and publishes it under nameFor(ms) without
// ever replacing an existing file; on a clash ms is bumped by one. Where the
// filesystem has no hard links the name is claimed with O_EXCL and the staged
// bytes are copied in, so a reader may briefly see a partial file.
func writeUnique(dir string, ms int64, nameFor func(int64) string, fill func(io.Writer) error) (string, int64, error) {
	tmp, n, err := stageTemp(dir, fill)
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp)
	publish := linkFile
	for i := 0; i < maxNameAttempts; i++ {
		name := nameFor(ms + int64(i))
		dst := filepath.Join(dir, name)
		err := publish(tmp, dst)
		if err != nil && linkUnsupported(err) {
			publish = copyExclusive
			err = publish(tmp, dst)
		}
		if err == nil {
			return name, n, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", 0, err
		}
	}
	return "", 0, errors.New("no free filename after retries")
}

func linkUnsupported(err error) bool {
	return errors.Is(err, errors.ErrUnsupported) || errors.Is(err, fs.ErrPermission)
}

// copyExclusive creates dst, failing with fs.ErrExist when it is taken, and
// copies src into it.
func copyExclusive(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

func copyFrom(r io.Reader) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	}
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}

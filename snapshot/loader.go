package snapshot

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// List returns the complete snapshots of dir, oldest first.
func List(dir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []*Manifest
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "snapshot-") || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		m, err := readManifest(filepath.Join(dir, e.Name()))
		if errors.Is(err, errManifestNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func Latest(dir string) (*Manifest, error) {
	all, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.Wrapf(ErrNoSnapshot, "in %s", dir)
	}
	return all[len(all)-1], nil
}

// Restore seeds an empty dataDir with the latest snapshot of dir. Files
// are copied into a sibling staging directory that replaces dataDir only
// once complete, so a failed restore leaves dataDir as it found it.
func Restore(dir, dataDir string) (*Manifest, error) {
	m, err := Latest(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dataDir)
	switch {
	case err == nil && len(entries) > 0:
		return nil, errors.Wrapf(ErrDataDirNotEmpty, "%s", dataDir)
	case err != nil && !os.IsNotExist(err):
		return nil, err
	}

	staging := dataDir + ".tmp"
	if err := os.RemoveAll(staging); err != nil {
		return nil, errors.Wrapf(err, "clear %s", staging)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, err
	}
	if err := copySnapshot(m.Path, staging); err != nil {
		_ = os.RemoveAll(staging)
		return nil, err
	}

	if err := os.Remove(dataDir); err != nil && !os.IsNotExist(err) {
		_ = os.RemoveAll(staging)
		return nil, errors.Wrapf(err, "remove empty %s", dataDir)
	}
	if err := os.Rename(staging, dataDir); err != nil {
		_ = os.RemoveAll(staging)
		return nil, errors.Wrapf(err, "move %s into place", staging)
	}

	zlog.Info("snapshot restored",
		zap.Uint64("seq", m.Seq),
		zap.String("from", m.Path),
		zap.String("to", dataDir),
		zap.String("size", humanize.Bytes(uint64(m.Size))),
	)
	return m, nil
}

func copySnapshot(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == manifestName {
			continue
		}
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return errors.Wrapf(err, "restore %s", e.Name())
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

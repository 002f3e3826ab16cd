package snapshot

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/streamingfast/logging"
)

var zlog, _ = logging.PackageLogger("snapshot", "matchbook/snapshot")

const manifestName = "snapshot.gob"

var (
	ErrNoSnapshot       = errors.New("no snapshot")
	ErrDataDirNotEmpty  = errors.New("data directory is not empty")
	errManifestNotFound = errors.New("manifest not found")
)

type Manifest struct {
	Seq     uint64
	Created time.Time
	Files   int
	Size    int64
	// Path is the checkpoint directory, filled in when loaded.
	Path string
}

func dirName(seq uint64) string {
	return fmt.Sprintf("snapshot-%020d", seq)
}

func writeManifest(dir string, m *Manifest) error {
	f, err := os.Create(filepath.Join(dir, manifestName))
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(m); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readManifest(dir string) (*Manifest, error) {
	f, err := os.Open(filepath.Join(dir, manifestName))
	if os.IsNotExist(err) {
		return nil, errManifestNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := &Manifest{}
	if err := gob.NewDecoder(f).Decode(m); err != nil {
		return nil, errors.Wrapf(err, "decode manifest of %s", dir)
	}
	m.Path = dir
	return m, nil
}

// Package backup archives and restores the engine's on-disk state:
// the sqlite database and any written exports.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Metadata describes one backup archive.
type Metadata struct {
	Version   string         `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Files     map[string]int `json:"files"` // archive path -> size in bytes
}

// Manager handles backup operations over a data directory.
type Manager struct {
	dbPath     string
	exportsDir string
}

// NewManager creates a manager for the given database path and
// exports directory.
func NewManager(dbPath, exportsDir string) *Manager {
	return &Manager{dbPath: dbPath, exportsDir: exportsDir}
}

// Export writes a gzipped tar archive containing the database and all
// exports, plus a metadata file.
func (m *Manager) Export(outputPath string) (*Metadata, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("creating backup file: %w", err)
	}
	defer file.Close()

	gzw := gzip.NewWriter(file)
	defer gzw.Close()
	tw := tar.NewWriter(gzw)
	defer tw.Close()

	meta := &Metadata{
		Version:   "1.0",
		CreatedAt: time.Now().UTC(),
		Files:     make(map[string]int),
	}

	db, err := os.ReadFile(m.dbPath)
	if err != nil {
		return nil, fmt.Errorf("reading database: %w", err)
	}
	if err := addToTar(tw, "data/"+filepath.Base(m.dbPath), db); err != nil {
		return nil, err
	}
	meta.Files["data/"+filepath.Base(m.dbPath)] = len(db)

	if entries, err := os.ReadDir(m.exportsDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(m.exportsDir, e.Name()))
			if err != nil {
				continue
			}
			name := "exports/" + e.Name()
			if err := addToTar(tw, name, data); err != nil {
				return nil, err
			}
			meta.Files[name] = len(data)
		}
	}

	metaJSON, _ := json.MarshalIndent(meta, "", "  ")
	if err := addToTar(tw, "metadata.json", metaJSON); err != nil {
		return nil, err
	}

	return meta, nil
}

// Restore unpacks a backup archive into the manager's locations. The
// current database is moved aside with a .pre-restore suffix first.
func (m *Manager) Restore(archivePath string) (*Metadata, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	defer gzr.Close()
	tr := tar.NewReader(gzr)

	if _, err := os.Stat(m.dbPath); err == nil {
		if err := os.Rename(m.dbPath, m.dbPath+".pre-restore"); err != nil {
			return nil, fmt.Errorf("saving current database: %w", err)
		}
	}

	var meta *Metadata
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive entry: %w", err)
		}
		// Entries are written by Export with clean relative names;
		// reject anything that escapes.
		if filepath.IsAbs(hdr.Name) || strings.Contains(hdr.Name, "..") {
			return nil, fmt.Errorf("unsafe archive entry %q", hdr.Name)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", hdr.Name, err)
		}

		switch {
		case hdr.Name == "metadata.json":
			meta = &Metadata{}
			if err := json.Unmarshal(data, meta); err != nil {
				return nil, fmt.Errorf("parsing metadata: %w", err)
			}
		case strings.HasPrefix(hdr.Name, "data/"):
			if err := os.MkdirAll(filepath.Dir(m.dbPath), 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(m.dbPath, data, 0o644); err != nil {
				return nil, fmt.Errorf("restoring database: %w", err)
			}
		case strings.HasPrefix(hdr.Name, "exports/"):
			if err := os.MkdirAll(m.exportsDir, 0o755); err != nil {
				return nil, err
			}
			dest := filepath.Join(m.exportsDir, filepath.Base(hdr.Name))
			if err := os.WriteFile(dest, data, 0o644); err != nil {
				return nil, fmt.Errorf("restoring %s: %w", hdr.Name, err)
			}
		}
	}

	if meta == nil {
		return nil, fmt.Errorf("archive has no metadata.json")
	}
	return meta, nil
}

func addToTar(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

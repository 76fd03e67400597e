package metadata

import (
	"context"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"pact/internal/logging"
	"pact/internal/pv"
)

// Directory is a registry over the metadata files found under a root.
type Directory struct {
	root   string
	logger *slog.Logger

	mu   sync.RWMutex
	snap *Snapshot
}

// NewDirectory returns a registry over root. Files are read on first use.
func NewDirectory(root string, logger *slog.Logger) *Directory {
	return &Directory{
		root:   root,
		logger: logging.NewComponentLogger(logger, "metadata"),
	}
}

// Root returns the directory the registry reads.
func (d *Directory) Root() string {
	return d.root
}

// Snapshot returns the loaded registry view, reading the files on first use.
func (d *Directory) Snapshot(ctx context.Context) (*Snapshot, error) {
	d.mu.RLock()
	snap := d.snap
	d.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	if err := d.Reload(ctx); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap, nil
}

// Reload rereads every metadata file. On failure the previous snapshot is
// kept.
func (d *Directory) Reload(ctx context.Context) error {
	snap, err := Load(ctx, d.root)
	if err != nil {
		return err
	}
	d.mu.Lock()
	previous := d.snap
	d.snap = snap
	d.mu.Unlock()

	if previous == nil || previous.Version != snap.Version {
		d.logger.Info("metadata loaded",
			logging.String("root", d.root),
			logging.Int("devices", len(snap.Devices)),
			logging.Int("files", len(snap.Files)),
			logging.String("version", snap.Version),
		)
	}
	return nil
}

// Devices lists the registered devices ordered by identifier.
func (d *Directory) Devices(ctx context.Context) ([]pv.Device, error) {
	snap, err := d.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.DeviceList(), nil
}

// Device returns one registered device.
func (d *Directory) Device(ctx context.Context, id string) (pv.Device, error) {
	snap, err := d.Snapshot(ctx)
	if err != nil {
		return pv.Device{}, err
	}
	return snap.Device(id)
}

// ModuleMetadata returns the indoor and censor windows of one device.
func (d *Directory) ModuleMetadata(ctx context.Context, id string) (pv.ModuleMetadata, error) {
	snap, err := d.Snapshot(ctx)
	if err != nil {
		return pv.ModuleMetadata{}, err
	}
	return snap.ModuleMetadata(id)
}

// SiteMetadata returns the site-wide metadata.
func (d *Directory) SiteMetadata(ctx context.Context) (pv.SiteMetadata, error) {
	snap, err := d.Snapshot(ctx)
	if err != nil {
		return pv.SiteMetadata{}, err
	}
	return snap.SiteMetadata()
}

// Version identifies the loaded snapshot.
func (d *Directory) Version(ctx context.Context) (string, error) {
	snap, err := d.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return snap.Version, nil
}

type fileKind int

const (
	kindModules fileKind = iota + 1
	kindSite
	kindSetup
	kindCensored
)

func classify(name string) fileKind {
	lower := strings.ToLower(name)
	switch {
	case lower == ModuleMetadataFile:
		return kindModules
	case lower == SiteMetadataFile:
		return kindSite
	case strings.HasSuffix(lower, setupSuffix):
		return kindSetup
	case strings.HasSuffix(lower, censoredSuffix):
		return kindCensored
	default:
		return 0
	}
}

// Load reads every metadata file under root into a snapshot. Setup sheets
// are applied first, then module documents, site documents, and finally the
// censored days sheets.
func Load(ctx context.Context, root string) (*Snapshot, error) {
	files := make(map[fileKind][]string)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if kind := classify(entry.Name()); kind != 0 {
			files[kind] = append(files[kind], path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan metadata under %s: %w", root, err)
	}

	digest := xxhash.New()
	var all []string
	read := func(path string) ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		_, _ = digest.WriteString(filepath.ToSlash(rel))
		_, _ = digest.Write([]byte{0})
		_, _ = digest.Write(data)
		all = append(all, path)
		return data, nil
	}

	b := newBuilder()
	for _, kind := range []fileKind{kindSetup, kindModules, kindSite, kindCensored} {
		paths := files[kind]
		sort.Strings(paths)
		for _, path := range paths {
			data, err := read(path)
			if err != nil {
				return nil, err
			}
			reader := strings.NewReader(string(data))
			switch kind {
			case kindSetup:
				rows, err := parseSetup(reader)
				if err != nil {
					return nil, fmt.Errorf("parse %s: %w", path, err)
				}
				b.addSetup(rows)
			case kindModules:
				entries, err := decodeModules(reader)
				if err != nil {
					return nil, fmt.Errorf("parse %s: %w", path, err)
				}
				if err := b.addModules(entries); err != nil {
					return nil, fmt.Errorf("parse %s: %w", path, err)
				}
			case kindSite:
				doc, err := decodeSite(reader)
				if err != nil {
					return nil, fmt.Errorf("parse %s: %w", path, err)
				}
				if err := b.addSite(doc); err != nil {
					return nil, fmt.Errorf("parse %s: %w", path, err)
				}
			case kindCensored:
				rows, err := parseCensored(reader)
				if err != nil {
					return nil, fmt.Errorf("parse %s: %w", path, err)
				}
				b.addCensored(rows)
			}
		}
	}

	version := hex.EncodeToString(digest.Sum(nil))
	return b.snapshot(version, all), nil
}

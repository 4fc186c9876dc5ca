package packaging

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	perrors "github.com/p-blackswan/appforge/internal/errors"
	"github.com/p-blackswan/appforge/internal/metrics"
	"github.com/p-blackswan/appforge/internal/specialist"
)

// Materializer writes bundles beneath a root directory on an afero filesystem.
type Materializer struct {
	fs      afero.Fs
	root    string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewMaterializer creates a materializer rooted at root.
func NewMaterializer(fs afero.Fs, root string, m *metrics.Metrics, logger zerolog.Logger) *Materializer {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Materializer{
		fs:      fs,
		root:    root,
		metrics: m,
		logger:  logger.With().Str("component", "packaging").Logger(),
	}
}

// Root returns the output root.
func (m *Materializer) Root() string { return m.root }

func (m *Materializer) projectDir(projectID string) (string, error) {
	if projectID == "" || projectID != filepath.Base(projectID) || projectID == "." || projectID == ".." {
		return "", perrors.Invalid("invalid project id %q", projectID)
	}
	return filepath.Join(m.root, projectID), nil
}

// Materialize generates every requested platform, writes the staging tree
// and zips it. Any previous output for projectID is replaced.
func (m *Materializer) Materialize(projectID string, cfg Config, stages map[string]specialist.StageResult) (*Bundle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dir, err := m.projectDir(projectID)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		ProjectName: cfg.Name,
		Platforms:   make(map[string]PlatformOutput, len(cfg.Platforms)),
		Stages:      stages,
	}
	for _, p := range cfg.Platforms {
		if _, done := bundle.Platforms[p]; done {
			continue
		}
		gen, err := NewGenerator(p, cfg)
		if err != nil {
			return nil, perrors.Invalid("%v", err)
		}
		bundle.Platforms[p] = PlatformOutput{Structure: gen.Structure(), Files: gen.Files()}
	}

	if err := m.fs.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear %s: %w", dir, err)
	}
	slug := cfg.Slug()
	staging := filepath.Join(dir, slug)

	total := 0
	for platform, out := range bundle.Platforms {
		for rel, content := range out.Files {
			target := filepath.Join(staging, platform, filepath.FromSlash(rel))
			if !strings.HasPrefix(target, staging+string(filepath.Separator)) {
				return nil, perrors.Invalid("file path escapes staging dir: %s", rel)
			}
			if err := m.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, fmt.Errorf("create dir for %s: %w", rel, err)
			}
			var data []byte
			if content != nil {
				data = []byte(*content)
			}
			if err := afero.WriteFile(m.fs, target, data, 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", rel, err)
			}
			total++
		}
	}

	archive := filepath.Join(dir, slug+".zip")
	size, err := m.zipDir(staging, archive)
	if err != nil {
		return nil, err
	}

	bundle.PackagePath = archive
	bundle.ArchiveBytes = size
	bundle.Statistics = Statistics{
		TotalFiles:         total,
		TotalStages:        len(stages),
		PlatformsGenerated: len(bundle.Platforms),
	}
	m.metrics.ObserveArchive(size)

	m.logger.Info().
		Str("project_id", projectID).
		Str("archive", archive).
		Int("files", total).
		Int64("bytes", size).
		Msg("bundle materialized")
	return bundle, nil
}

// zipDir archives every file under src with names relative to src.
func (m *Materializer) zipDir(src, dst string) (int64, error) {
	var paths []string
	err := afero.Walk(m.fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", src, err)
	}
	sort.Strings(paths)

	f, err := m.fs.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	zw := zip.NewWriter(f)
	for _, p := range paths {
		rel, err := filepath.Rel(src, p)
		if err != nil {
			f.Close()
			return 0, err
		}
		if err := m.addFile(zw, p, path.Clean(filepath.ToSlash(rel))); err != nil {
			f.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return 0, fmt.Errorf("finish archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}

	info, err := m.fs.Stat(dst)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (m *Materializer) addFile(zw *zip.Writer, src, name string) error {
	in, err := m.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	_, err = io.Copy(w, in)
	return err
}

// Open opens an archive previously written for projectID. path must lie
// inside the project's directory. It returns ErrNoPackage when the archive
// is gone.
func (m *Materializer) Open(projectID, path string) (afero.File, os.FileInfo, error) {
	dir, err := m.projectDir(projectID)
	if err != nil {
		return nil, nil, err
	}
	p := filepath.Clean(path)
	if !strings.HasPrefix(p, dir+string(filepath.Separator)) || filepath.Ext(p) != ".zip" {
		return nil, nil, perrors.Invalid("archive path %q is outside project %s", path, projectID)
	}
	info, err := m.fs.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("archive for %s: %w", projectID, perrors.ErrNoPackage)
		}
		return nil, nil, err
	}
	f, err := m.fs.Open(p)
	if err != nil {
		return nil, nil, err
	}
	return f, info, nil
}

// Remove deletes everything written for a project.
func (m *Materializer) Remove(projectID string) error {
	dir, err := m.projectDir(projectID)
	if err != nil {
		return err
	}
	return m.fs.RemoveAll(dir)
}

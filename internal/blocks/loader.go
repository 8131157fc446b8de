package blocks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/phrazzld/copyblocks/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrNoDefinitions is returned when a catalog directory holds no block files.
var ErrNoDefinitions = errors.New("no block definition files found")

// fileHeader is the frontmatter of a .md block file, or the whole body of a .yaml file.
type fileHeader struct {
	ID             string             `yaml:"id"`
	Name           string             `yaml:"name"`
	Position       int                `yaml:"position"`
	MaxTokens      int                `yaml:"max_tokens"`
	Fields         []domain.FieldSpec `yaml:"fields"`
	PromptTemplate string             `yaml:"prompt_template"`
}

func (h fileHeader) definition(path string, body []byte) domain.BlockDefinition {
	id := h.ID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	prompt := h.PromptTemplate
	if len(bytes.TrimSpace(body)) > 0 {
		prompt = string(body)
	}
	return domain.BlockDefinition{
		ID:             id,
		Name:           h.Name,
		Fields:         h.Fields,
		PromptTemplate: strings.TrimSpace(prompt),
		MaxTokens:      h.MaxTokens,
		Position:       h.Position,
	}
}

// LoadDir reads every .md, .yaml and .yml file in dir as a block definition.
// Markdown files carry the definition as YAML frontmatter and the prompt
// template as body; YAML files carry everything including prompt_template.
func LoadDir(dir string) ([]domain.BlockDefinition, error) {
	paths, err := definitionFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDefinitions, dir)
	}

	defs := make([]domain.BlockDefinition, 0, len(paths))
	for _, path := range paths {
		def, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFile parses a single block definition file.
func LoadFile(path string) (domain.BlockDefinition, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return domain.BlockDefinition{}, fmt.Errorf("read block file: %w", err)
	}

	var header fileHeader
	var body []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		body, err = frontmatter.Parse(bytes.NewReader(source), &header)
		if err != nil {
			return domain.BlockDefinition{}, fmt.Errorf("parse frontmatter of %s: %w", filepath.Base(path), err)
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(source))
		decoder.KnownFields(true)
		if err := decoder.Decode(&header); err != nil {
			return domain.BlockDefinition{}, fmt.Errorf("parse yaml of %s: %w", filepath.Base(path), err)
		}
	}

	return header.definition(path, body), nil
}

func definitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".md", ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// fingerprint summarizes names, sizes and modification times of the definition files.
func fingerprint(dir string) (uint64, error) {
	paths, err := definitionFiles(dir)
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, err
		}
		fmt.Fprintf(h, "%s|%d|%d;", p, info.Size(), info.ModTime().UnixNano())
	}
	return h.Sum64(), nil
}

// Reloader keeps a Catalog in sync with a directory of definition files.
type Reloader struct {
	catalog *Catalog
	dir     string
	logger  *slog.Logger
	last    uint64
}

// NewReloader loads dir into catalog once and returns a reloader for later changes.
func NewReloader(catalog *Catalog, dir string, logger *slog.Logger) (*Reloader, error) {
	if catalog == nil {
		return nil, errors.New("catalog cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reloader{catalog: catalog, dir: dir, logger: logger.With("component", "catalog_reloader")}
	if _, err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the directory when its fingerprint changed. It reports
// whether a new set of definitions was installed.
func (r *Reloader) Reload() (bool, error) {
	fp, err := fingerprint(r.dir)
	if err != nil {
		return false, err
	}
	if fp == r.last && r.last != 0 {
		return false, nil
	}

	defs, err := LoadDir(r.dir)
	if err != nil {
		return false, err
	}
	if err := r.catalog.Replace(defs); err != nil {
		return false, err
	}
	r.last = fp
	r.logger.Info("block catalog loaded", "directory", r.dir, "blocks", len(defs))
	return true, nil
}

// Watch polls the directory every interval until ctx is done. Failed reloads
// are logged and the previous catalog stays active.
func (r *Reloader) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Reload(); err != nil {
				r.logger.Error("block catalog reload failed, keeping previous definitions",
					"directory", r.dir,
					"error", err)
			}
		}
	}
}

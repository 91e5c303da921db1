package catalog

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

//go:embed cards/*.yaml
var coreSet embed.FS

type cardFile struct {
	Cards []Card `yaml:"cards"`
}

// LoadYAML reads one card file. Unknown fields are rejected so typos in a
// card do not silently drop behaviour.
func LoadYAML(r io.Reader) ([]Card, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file cardFile
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	return file.Cards, nil
}

// LoadDir loads every .yaml/.yml file in dir concurrently and builds a
// registry. Cards are merged in file name order.
func LoadDir(ctx context.Context, dir string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return loadFS(ctx, os.DirFS(dir), ".", logger)
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the built-in core set.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = loadFS(context.Background(), coreSet, "cards", zap.NewNop())
	})
	return defaultRegistry, defaultErr
}

func loadFS(ctx context.Context, fsys fs.FS, dir string, logger *zap.Logger) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(path.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	results := make([][]Card, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := fsys.Open(path.Join(dir, name))
			if err != nil {
				return err
			}
			defer f.Close()
			cards, err := LoadYAML(f)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = cards
			logger.Debug("catalog file loaded", zap.String("file", name), zap.Int("cards", len(cards)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Card
	for _, cards := range results {
		all = append(all, cards...)
	}
	registry, err := NewRegistry(all...)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded", zap.Int("files", len(files)), zap.Int("cards", registry.Len()))
	return registry, nil
}

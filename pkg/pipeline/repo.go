package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nettally/nettally/pkg/util"
)

// Repo persists pipelines as one YAML file per pipeline in a directory.
// The file name is "<id>.yaml".
type Repo struct {
	dir string
}

// NewRepo opens (and creates if needed) the pipeline directory.
func NewRepo(dir string) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create pipeline dir: %w", err)
	}
	return &Repo{dir: dir}, nil
}

func (r *Repo) path(id string) string {
	return filepath.Join(r.dir, util.Slugify(id)+".yaml")
}

// List returns all pipelines sorted by id. Unreadable files are skipped with
// a warning so one bad file cannot hide the rest.
func (r *Repo) List() ([]*Pipeline, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read pipeline dir: %w", err)
	}
	var pipelines []*Pipeline
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		p, err := r.load(filepath.Join(r.dir, name))
		if err != nil {
			util.Warnf("skipping pipeline file %s: %v", name, err)
			continue
		}
		pipelines = append(pipelines, p)
	}
	sort.Slice(pipelines, func(i, j int) bool { return pipelines[i].ID < pipelines[j].ID })
	return pipelines, nil
}

// Get loads one pipeline by id.
func (r *Repo) Get(id string) (*Pipeline, error) {
	p, err := r.load(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pipeline %s: %w", id, util.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (r *Repo) load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

// Save validates and writes a pipeline atomically.
func (r *Repo) Save(p *Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	path := r.path(p.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Delete removes a pipeline file.
func (r *Repo) Delete(id string) error {
	err := os.Remove(r.path(id))
	if os.IsNotExist(err) {
		return fmt.Errorf("pipeline %s: %w", id, util.ErrNotFound)
	}
	return err
}

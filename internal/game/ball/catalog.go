package ball

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInstanceNotFound is returned when an instance id is not in the catalog.
var ErrInstanceNotFound = errors.New("ball instance not found")

// instanceDef is the YAML form of an Instance.
type instanceDef struct {
	ID      int64 `yaml:"id"`
	BallID  int64 `yaml:"ball"`
	OwnerID int64 `yaml:"owner"`
}

// catalogFile is the top-level layout of one catalog YAML document.
type catalogFile struct {
	Balls     []*Ball       `yaml:"balls"`
	Instances []instanceDef `yaml:"instances"`
}

// Catalog is an immutable, in-memory set of balls and instances.
// It is safe for concurrent reads.
type Catalog struct {
	balls     map[int64]*Ball
	instances map[int64]*Instance
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		balls:     make(map[int64]*Ball),
		instances: make(map[int64]*Instance),
	}
}

// LoadCatalogFromBytes parses one or more YAML documents into a Catalog.
//
// Precondition: data must hold YAML documents shaped as {balls, instances}.
// Postcondition: Returns a Catalog where every ball is valid and every instance
// references a known ball, or an error.
func LoadCatalogFromBytes(data []byte) (*Catalog, error) {
	c := NewCatalog()
	if err := c.merge(data); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCatalog reads all *.yaml files in dir, in lexical order, into one Catalog.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the merged Catalog or an error on the first failure.
func LoadCatalog(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog dir %q: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	c := NewCatalog()
	var pending []instanceDef
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		defs, err := c.decode(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		pending = append(pending, defs...)
	}
	if err := c.link(pending); err != nil {
		return nil, err
	}
	return c, nil
}

// merge decodes data and links its instances immediately against the balls seen so far.
func (c *Catalog) merge(data []byte) error {
	defs, err := c.decode(data)
	if err != nil {
		return err
	}
	return c.link(defs)
}

// decode registers every ball in data and returns its instance definitions unlinked.
func (c *Catalog) decode(data []byte) ([]instanceDef, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var defs []instanceDef
	for {
		var f catalogFile
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing catalog YAML: %w", err)
		}
		for _, b := range f.Balls {
			if err := b.Validate(); err != nil {
				return nil, err
			}
			if _, dup := c.balls[b.ID]; dup {
				return nil, fmt.Errorf("ball %d: duplicate id", b.ID)
			}
			c.balls[b.ID] = b
		}
		defs = append(defs, f.Instances...)
	}
	return defs, nil
}

func (c *Catalog) link(defs []instanceDef) error {
	for _, d := range defs {
		if d.ID < 1 {
			return fmt.Errorf("instance: id must be >= 1, got %d", d.ID)
		}
		if _, dup := c.instances[d.ID]; dup {
			return fmt.Errorf("instance %d: duplicate id", d.ID)
		}
		b, ok := c.balls[d.BallID]
		if !ok {
			return fmt.Errorf("instance %d: unknown ball %d", d.ID, d.BallID)
		}
		c.instances[d.ID] = &Instance{ID: d.ID, OwnerID: d.OwnerID, Ball: b}
	}
	return nil
}

// Ball returns the ball with the given id.
func (c *Catalog) Ball(id int64) (*Ball, bool) {
	b, ok := c.balls[id]
	return b, ok
}

// Instance returns the instance with the given id, or ErrInstanceNotFound.
func (c *Catalog) Instance(_ context.Context, id int64) (*Instance, error) {
	inst, ok := c.instances[id]
	if !ok {
		return nil, fmt.Errorf("instance %d: %w", id, ErrInstanceNotFound)
	}
	return inst, nil
}

// BallCount returns the number of balls in the catalog.
func (c *Catalog) BallCount() int { return len(c.balls) }

// InstanceCount returns the number of instances in the catalog.
func (c *Catalog) InstanceCount() int { return len(c.instances) }

// Balls returns every ball ordered by id.
func (c *Catalog) Balls() []*Ball {
	out := make([]*Ball, 0, len(c.balls))
	for _, b := range c.balls {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Instances returns every instance ordered by id.
func (c *Catalog) Instances() []*Instance {
	out := make([]*Instance, 0, len(c.instances))
	for _, inst := range c.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog holds compiled device classes by name.
//
// Classes are immutable once compiled, so a class obtained from the
// catalog can be shared by any number of devices and sessions.
type Catalog struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{classes: make(map[string]*Class)}
}

// Builtin returns a catalog holding the built-in classes.
func Builtin() *Catalog {
	c := New()
	for _, def := range BuiltinDefs() {
		if err := c.Add(def); err != nil {
			panic(err)
		}
	}

	return c
}

// Add compiles def and stores it, replacing a class of the same name.
func (c *Catalog) Add(def ClassDef) error {
	cls, err := Compile(def)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.classes[cls.Name()] = cls
	c.mu.Unlock()

	return nil
}

// Apply overlays defs onto the catalog. A def naming an existing class
// overrides only the fields it sets; any other def is added as a new class.
func (c *Catalog) Apply(defs ...ClassDef) error {
	for _, def := range defs {
		c.mu.RLock()
		cur, ok := c.classes[def.Name]
		c.mu.RUnlock()

		if ok {
			def = cur.def.merge(def)
		}
		if err := c.Add(def); err != nil {
			return err
		}
	}

	return nil
}

// Class returns the class named name.
func (c *Catalog) Class(name string) (*Class, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cls, ok := c.classes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}

	return cls, nil
}

// Names returns the sorted class names.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.classes))
	for name := range c.classes {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Len returns the number of classes.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.classes)
}

type document struct {
	Classes []ClassDef `yaml:"classes"`
}

// DecodeYAML reads class definitions from a YAML document of the form
//
//	classes:
//	  - name: HT
//	    commands:
//	      get_temperature:
//	        factor: 100
func DecodeYAML(r io.Reader) ([]ClassDef, error) {
	var doc document

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}

	for i, def := range doc.Classes {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: class %d has no name", ErrInvalidClass, i)
		}
	}

	return doc.Classes, nil
}

// EncodeYAML writes defs in the format read by DecodeYAML.
func EncodeYAML(w io.Writer, defs ...ClassDef) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(document{Classes: defs}); err != nil {
		return fmt.Errorf("catalog: encode yaml: %w", err)
	}

	return enc.Close()
}

// LoadFile applies the class definitions of the YAML file at path.
func (c *Catalog) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	defer f.Close()

	defs, err := DecodeYAML(f)
	if err != nil {
		return err
	}

	return c.Apply(defs...)
}

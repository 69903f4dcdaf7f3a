package binary

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of one catalog.
type catalogFile struct {
	Classes []*ClassInfo `yaml:"classes"`
}

// Catalog is an Introspector backed by YAML descriptions of compiled classes.
// Later files override earlier ones class by class.
type Catalog struct {
	files   []string
	classes map[string]*ClassInfo
}

// NewCatalog builds a catalog from in-memory class descriptions.
func NewCatalog(classes ...*ClassInfo) *Catalog {
	c := &Catalog{classes: make(map[string]*ClassInfo)}
	for _, ci := range classes {
		c.classes[ci.Name] = ci
	}
	return c
}

// LoadCatalog reads and merges the given catalog files.
func LoadCatalog(paths ...string) (*Catalog, error) {
	c := NewCatalog()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
		}
		if err := c.merge(data); err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
		}
		c.files = append(c.files, path)
	}
	return c, nil
}

// ParseCatalog decodes one catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	c := NewCatalog()
	if err := c.merge(data); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) merge(data []byte) error {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	for _, ci := range f.Classes {
		if ci == nil || ci.Name == "" {
			return fmt.Errorf("catalog entry without a name")
		}
		c.classes[ci.Name] = ci
	}
	return nil
}

// Files returns the catalog files this catalog was loaded from.
func (c *Catalog) Files() []string {
	return c.files
}

// ClassNames implements Introspector.
func (c *Catalog) ClassNames() []string {
	names := make([]string, 0, len(c.classes))
	for name := range c.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Class implements Introspector.
func (c *Catalog) Class(name string) (*ClassInfo, error) {
	ci, ok := c.classes[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrClassNotFound)
	}
	return ci, nil
}

// Accesses implements Introspector.
func (c *Catalog) Accesses(class, signature string) (*AccessInfo, error) {
	ci, err := c.Class(class)
	if err != nil {
		return nil, err
	}
	m := ci.Method(signature)
	if m == nil {
		return nil, fmt.Errorf("%s.%s: %w", class, signature, ErrClassNotFound)
	}
	if m.Unreadable {
		return nil, fmt.Errorf("%s.%s: %w", class, signature, ErrUnreadable)
	}
	if m.Access == nil {
		return &AccessInfo{}, nil
	}
	return m.Access, nil
}

// Encode renders the catalog as YAML, classes sorted by name.
func (c *Catalog) Encode() ([]byte, error) {
	var f catalogFile
	for _, name := range c.ClassNames() {
		f.Classes = append(f.Classes, c.classes[name])
	}
	return yaml.Marshal(&f)
}

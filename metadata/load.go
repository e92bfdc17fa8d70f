package metadata

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the root of a YAML mapping file.
type document struct {
	Entities []*Entity `yaml:"entities"`
}

// Load reads a YAML mapping document and returns the resolved catalog.
//
//	entities:
//	  - name: App\Entity\User
//	    table: users
//	    identifier: [id]
//	    fields:
//	      - {name: id, kind: integer, generated: true}
//	      - {name: age, kind: integer, nullable: true}
//	    associations:
//	      - {name: posts, target: App\Entity\Post, type: oneToMany, mappedBy: author}
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("metadata: decode mapping: %w", err)
	}
	c := NewCatalog(doc.Entities...)
	if err := c.Resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads the YAML mapping document at path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: open mapping: %w", err)
	}
	defer f.Close()
	return Load(f)
}

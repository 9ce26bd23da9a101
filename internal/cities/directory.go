// Package cities maps free-text city labels from price reports to the fixed
// 70-city directory and its stable administrative codes.
package cities

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ExpectedCount is the size of the city universe covered by the report.
const ExpectedCount = 70

var ErrDirectorySize = errors.New("city directory size")

//go:embed directory.yaml
var defaultDirectory []byte

type City struct {
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

// DisplayName is the canonical form stored in the dataset, e.g. 北京市.
func (c City) DisplayName() string {
	return c.Name + citySuffix
}

type directoryFile struct {
	Cities  []City            `yaml:"cities"`
	Aliases map[string]string `yaml:"aliases"`
}

// Directory is the read-only city reference table. Entries keep their
// declaration order.
type Directory struct {
	cities  []City
	byName  map[string]City
	aliases map[string]string
}

// DefaultDirectory parses the embedded 70-city table.
func DefaultDirectory() (*Directory, error) {
	return ParseDirectory(defaultDirectory)
}

// LoadDirectory reads a directory file; an empty path selects the embedded one.
func LoadDirectory(path string) (*Directory, error) {
	if path == "" {
		return DefaultDirectory()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read city directory %s: %w", path, err)
	}
	dir, err := ParseDirectory(data)
	if err != nil {
		return nil, fmt.Errorf("city directory %s: %w", path, err)
	}
	if dir.Len() != ExpectedCount {
		return nil, fmt.Errorf("%w: %s has %d cities, want %d", ErrDirectorySize, path, dir.Len(), ExpectedCount)
	}
	return dir, nil
}

func ParseDirectory(data []byte) (*Directory, error) {
	var f directoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse city directory: %w", err)
	}
	if len(f.Cities) == 0 {
		return nil, fmt.Errorf("city directory has no cities")
	}

	d := &Directory{
		cities:  make([]City, 0, len(f.Cities)),
		byName:  make(map[string]City, len(f.Cities)),
		aliases: map[string]string{},
	}
	seenCodes := map[string]string{}
	for _, c := range f.Cities {
		c.Name = Normalize(c.Name)
		if c.Name == "" || c.Code == "" {
			return nil, fmt.Errorf("city directory entry without name or code: %+v", c)
		}
		if _, dup := d.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate city %s", c.Name)
		}
		if other, dup := seenCodes[c.Code]; dup {
			return nil, fmt.Errorf("code %s shared by %s and %s", c.Code, other, c.Name)
		}
		seenCodes[c.Code] = c.Name
		d.byName[c.Name] = c
		d.cities = append(d.cities, c)
	}
	for alias, target := range f.Aliases {
		target = Normalize(target)
		if _, ok := d.byName[target]; !ok {
			return nil, fmt.Errorf("alias %s points to unknown city %s", alias, target)
		}
		d.aliases[Normalize(alias)] = target
	}
	return d, nil
}

func (d *Directory) Len() int { return len(d.cities) }

// Cities returns the entries in declaration order.
func (d *Directory) Cities() []City {
	out := make([]City, len(d.cities))
	copy(out, d.cities)
	return out
}

func (d *Directory) Lookup(name string) (City, bool) {
	c, ok := d.byName[name]
	return c, ok
}

// DisplayNames is the set of canonical dataset city names.
func (d *Directory) DisplayNames() map[string]struct{} {
	out := make(map[string]struct{}, len(d.cities))
	for _, c := range d.cities {
		out[c.DisplayName()] = struct{}{}
	}
	return out
}

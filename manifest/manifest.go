// Package manifest reads container declarations from YAML. A manifest lists
// the types the planner may see and the modules and containers built from
// them:
//
//	apiVersion: v1.1
//	types:
//	  - id: Db
//	    constructors: [{params: [{name: settings, type: Settings}]}]
//	    dispose: [async]
//	    init: async
//	modules:
//	  - id: App
//	    container: true
//	    registrations: [{type: Db, scope: single}]
//	    roots: [{type: Db, async: true}]
package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// CurrentAPIVersion is the newest manifest format this package reads. Older
// minor versions of the same major version are accepted.
const CurrentAPIVersion = "v1.1.0"

// Manifest is a decoded manifest file.
type Manifest struct {
	APIVersion string   `yaml:"apiVersion"`
	Types      []Type   `yaml:"types"`
	Modules    []Module `yaml:"modules"`

	// Name is the file the manifest was read from, used in locations.
	Name string `yaml:"-"`
	// Digest is the SHA-256 of the raw manifest bytes.
	Digest string `yaml:"-"`
}

// Type declares one type.
type Type struct {
	ID           string       `yaml:"id"`
	Kind         string       `yaml:"kind"`
	Private      bool         `yaml:"private"`
	Abstract     bool         `yaml:"abstract"`
	Unbound      bool         `yaml:"unbound"`
	Definition   string       `yaml:"definition"`
	Args         []string     `yaml:"args"`
	Base         string       `yaml:"base"`
	Interfaces   []string     `yaml:"interfaces"`
	Constructors []Method     `yaml:"constructors"`
	Elem         string       `yaml:"elem"`
	Signature    *Signature   `yaml:"signature"`
	Factory      *FactorySpec `yaml:"factory"`
	Dispose      []string     `yaml:"dispose"`
	Init         string       `yaml:"init"`
	Line         int          `yaml:"-"`
}

// Method is a constructor, factory method or decorator method.
type Method struct {
	Name    string  `yaml:"name"`
	Params  []Param `yaml:"params"`
	Returns string  `yaml:"returns"`
	Static  bool    `yaml:"static"`
	Access  string  `yaml:"access"`
}

// Param is a method parameter. Ref is one of "", "ref", "out" or "in".
type Param struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Ref  string `yaml:"ref"`
}

// Signature is a delegate signature.
type Signature struct {
	Params  []string `yaml:"params"`
	Returns string   `yaml:"returns"`
}

// FactorySpec marks an interface as a factory capability.
type FactorySpec struct {
	Produces string `yaml:"produces"`
	Async    bool   `yaml:"async"`
}

// Module declares a module or, with Container set, a container.
type Module struct {
	ID               string            `yaml:"id"`
	Container        bool              `yaml:"container"`
	Disposal         string            `yaml:"disposal"`
	Registrations    []Registration    `yaml:"registrations"`
	Factories        []FactoryDecl     `yaml:"factories"`
	Imports          []Import          `yaml:"imports"`
	FactoryMethods   []FactoryMethod   `yaml:"factoryMethods"`
	Decorators       []Decorator       `yaml:"decorators"`
	DecoratorMethods []DecoratorMethod `yaml:"decoratorMethods"`
	Instances        []Instance        `yaml:"instances"`
	Roots            []Root            `yaml:"roots"`
	Line             int               `yaml:"-"`
}

type Registration struct {
	Type  string   `yaml:"type"`
	As    []string `yaml:"as"`
	Scope string   `yaml:"scope"`
	Line  int      `yaml:"-"`
}

type FactoryDecl struct {
	Type        string   `yaml:"type"`
	As          []string `yaml:"as"`
	Scope       string   `yaml:"scope"`
	TargetScope string   `yaml:"targetScope"`
	Line        int      `yaml:"-"`
}

type Import struct {
	Module  string   `yaml:"module"`
	Exclude []string `yaml:"exclude"`
	Line    int      `yaml:"-"`
}

type FactoryMethod struct {
	Method `yaml:",inline"`
	As     []string `yaml:"as"`
	Scope  string   `yaml:"scope"`
	Line   int      `yaml:"-"`
}

type Decorator struct {
	Type      string `yaml:"type"`
	Decorates string `yaml:"decorates"`
	Dispose   bool   `yaml:"dispose"`
	Line      int    `yaml:"-"`
}

type DecoratorMethod struct {
	Method  `yaml:",inline"`
	Dispose bool `yaml:"dispose"`
	Line    int  `yaml:"-"`
}

type Instance struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Property bool     `yaml:"property"`
	As       []string `yaml:"as"`
	Line     int      `yaml:"-"`
}

type Root struct {
	Type  string `yaml:"type"`
	Async bool   `yaml:"async"`
	Line  int    `yaml:"-"`
}

// Parse decodes a manifest and checks its API version.
func Parse(data []byte, name string) (*Manifest, error) {
	m := &Manifest{Name: name, Digest: Digest(data)}
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(m); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalidManifest, name)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, name, err)
	}
	if err := checkVersion(m.APIVersion); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

// Load reads a manifest from r.
func Load(r io.Reader, name string) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", name, err)
	}
	return Parse(data, name)
}

// LoadFile reads the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, path)
}

// Digest returns the hex SHA-256 of a raw manifest, used as a cache key.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func checkVersion(v string) error {
	if v == "" {
		return fmt.Errorf("%w: apiVersion is required", ErrUnsupportedVersion)
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: %q is not a semantic version", ErrUnsupportedVersion, v)
	}
	if semver.Major(v) != semver.Major(CurrentAPIVersion) || semver.Compare(v, CurrentAPIVersion) > 0 {
		return fmt.Errorf("%w: %s (supported up to %s)", ErrUnsupportedVersion, v, CurrentAPIVersion)
	}
	return nil
}

// Containers returns the ids of the container modules in file order.
func (m *Manifest) Containers() []string {
	var out []string
	for _, mod := range m.Modules {
		if mod.Container {
			out = append(out, mod.ID)
		}
	}
	return out
}

package data

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Blueprint is an entity template loaded from YAML:
//
//	blueprints:
//	  - name: goblin
//	    extends: mob
//	    data:
//	      Health: {current: 10, max: 10}
//	    behaviors: [Regen]
//	    script: wander
//	    children: [torch]
//
// Data keys and behavior names are catalog type names. Data bodies decode into
// the registered struct with yaml.v3 rules (lowercased field names unless
// tagged). script names a Lua behavior; children are spawned and parented
// under the new entity.
type Blueprint struct {
	Name      string    `yaml:"name"`
	Extends   string    `yaml:"extends"`
	Data      yaml.Node `yaml:"data"`
	Behaviors []string  `yaml:"behaviors"`
	Script    string    `yaml:"script"`
	Children  []string  `yaml:"children"`
}

type blueprintFile struct {
	Blueprints []Blueprint `yaml:"blueprints"`
}

// BlueprintTable holds all blueprints indexed by name.
type BlueprintTable struct {
	blueprints map[string]*Blueprint
	source     map[string]string // name → file, for duplicate reports
}

func NewBlueprintTable() *BlueprintTable {
	return &BlueprintTable{
		blueprints: make(map[string]*Blueprint, 64),
		source:     make(map[string]string, 64),
	}
}

// LoadBlueprints loads a YAML file, or every .yaml/.yml file under a
// directory.
func LoadBlueprints(path string) (*BlueprintTable, error) {
	t := NewBlueprintTable()
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprints: %w", err)
	}
	if !info.IsDir() {
		if err := t.loadFile(path); err != nil {
			return nil, err
		}
		return t, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(p); !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read blueprints: %w", err)
	}
	sort.Strings(files)
	for _, f := range files {
		if err := t.loadFile(f); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *BlueprintTable) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read blueprints: %w", err)
	}
	if err := t.Parse(path, data); err != nil {
		return err
	}
	return nil
}

// Parse adds the blueprints of one YAML document. source names it in errors.
// A document with any invalid entry adds nothing.
func (t *BlueprintTable) Parse(source string, data []byte) error {
	var f blueprintFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse blueprints %s: %w", source, err)
	}
	seen := make(map[string]bool, len(f.Blueprints))
	for i := range f.Blueprints {
		bp := &f.Blueprints[i]
		if bp.Name == "" {
			return fmt.Errorf("parse blueprints %s: entry %d has no name", source, i)
		}
		if prev, dup := t.source[bp.Name]; dup {
			return fmt.Errorf("parse blueprints %s: %q already defined in %s", source, bp.Name, prev)
		}
		if seen[bp.Name] {
			return fmt.Errorf("parse blueprints %s: %q defined twice", source, bp.Name)
		}
		seen[bp.Name] = true
		if bp.Data.Kind != 0 && bp.Data.Kind != yaml.MappingNode {
			return fmt.Errorf("parse blueprints %s: %q data must be a mapping", source, bp.Name)
		}
	}
	for i := range f.Blueprints {
		bp := &f.Blueprints[i]
		t.blueprints[bp.Name] = bp
		t.source[bp.Name] = source
	}
	return nil
}

// Get returns a blueprint by name.
func (t *BlueprintTable) Get(name string) *Blueprint {
	return t.blueprints[name]
}

// Count returns the number of loaded blueprints.
func (t *BlueprintTable) Count() int {
	return len(t.blueprints)
}

// Names lists the blueprint names, sorted.
func (t *BlueprintTable) Names() []string {
	out := make([]string, 0, len(t.blueprints))
	for n := range t.blueprints {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

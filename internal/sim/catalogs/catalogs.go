package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Catalogs holds the immutable configuration records the world is built
// from. Loaded once at startup and never mutated afterwards.
type Catalogs struct {
	Resources ResourceCatalog
	Nodes     NodeCatalog
}

type ResourceCatalog struct {
	Palette []string // resource ids, sorted
	Defs    map[string]ResourceDef
	Digest  string
}

// ResourceDef is an immutable resource-type record. Identity is the ID;
// the display fields are opaque to the simulation.
type ResourceDef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

type NodeCatalog struct {
	Defs   []NodeDef // authored order preserved
	Digest string
}

// NodeDef describes one gatherable node placed at world setup.
type NodeDef struct {
	ID                string `json:"id"`
	Resource          string `json:"resource"`
	Pos               [3]int `json:"pos"`
	Remaining         int    `json:"remaining"`
	CapacityPerAction int    `json:"capacity_per_action"`
	CycleMS           int    `json:"cycle_ms,omitempty"` // 0 means the tuning default
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadResources(filepath.Join(configDir, "resources.json"), &c.Resources); err != nil {
		return nil, err
	}
	if err := loadNodes(filepath.Join(configDir, "nodes.json"), &c.Nodes); err != nil {
		return nil, err
	}

	// Every node must reference a known resource type.
	for _, n := range c.Nodes.Defs {
		if _, ok := c.Resources.Defs[n.Resource]; !ok {
			return nil, fmt.Errorf("nodes.json: node %s references unknown resource %q", n.ID, n.Resource)
		}
	}

	return &c, nil
}

// Known reports whether id names a resource type in the catalog.
func (c *ResourceCatalog) Known(id string) bool {
	_, ok := c.Defs[id]
	return ok
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadResources(path string, out *ResourceCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ResourceDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("resources.json: %w", err)
	}
	out.Defs = map[string]ResourceDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("resources.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("resources.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	return nil
}

func loadNodes(path string, out *NodeCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []NodeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("nodes.json: %w", err)
	}
	seen := map[string]bool{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("nodes.json: empty id")
		}
		if seen[d.ID] {
			return fmt.Errorf("nodes.json: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
		if d.Resource == "" {
			return fmt.Errorf("nodes.json: node %s has no resource", d.ID)
		}
		if d.Remaining < 0 {
			return fmt.Errorf("nodes.json: node %s has negative remaining", d.ID)
		}
		if d.CapacityPerAction <= 0 {
			return fmt.Errorf("nodes.json: node %s needs capacity_per_action > 0", d.ID)
		}
		if d.CycleMS < 0 {
			return fmt.Errorf("nodes.json: node %s has negative cycle_ms", d.ID)
		}
	}
	out.Defs = defs
	return nil
}

// Package clustercfg loads the cluster-model configuration: the list of
// compute devices and the three comm-link families the Graph Builder
// needs, read once from YAML and never mutated during a run.
package clustercfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/parasim/costsim/device"
)

// ComputeDeviceSpec describes one accelerator: its flat global id, its
// (node, slot) coordinates, and its memory capacity in bytes.
type ComputeDeviceSpec struct {
	ID       int   `yaml:"id"`
	Node     int   `yaml:"node"`
	Slot     int   `yaml:"slot"`
	Capacity int64 `yaml:"capacity_bytes"`
}

// LinkSpec describes one directed bandwidth link between two endpoints.
// The endpoint meaning depends on which list it appears in: slot ids for
// intra-node links, node ids for inter-node links.
type LinkSpec struct {
	Src       int     `yaml:"src"`
	Dst       int     `yaml:"dst"`
	Bandwidth float64 `yaml:"bandwidth_bytes_per_sec"`
}

// GPULinkSpec describes a one-sided GPU<->DRAM bandwidth for one slot.
type GPULinkSpec struct {
	Slot      int     `yaml:"slot"`
	Bandwidth float64 `yaml:"bandwidth_bytes_per_sec"`
}

// Config is the on-disk shape of a cluster-model YAML file.
type Config struct {
	TotalSlots int                 `yaml:"total_slots"`
	Compute    []ComputeDeviceSpec `yaml:"compute"`
	IntraNode  []LinkSpec          `yaml:"intra_node_links"`
	GPUToDRAM  []GPULinkSpec       `yaml:"gpu_to_dram_links"`
	DRAMToGPU  []GPULinkSpec       `yaml:"dram_to_gpu_links"`
	InterNode  []LinkSpec          `yaml:"inter_node_links"`
}

// Validate checks the config for structural problems that would otherwise
// surface later as confusing device-lookup panics deep in the builder.
func (c *Config) Validate() error {
	if c.TotalSlots <= 0 {
		return fmt.Errorf("total_slots must be positive, got %d", c.TotalSlots)
	}
	if len(c.Compute) == 0 {
		return fmt.Errorf("cluster config must declare at least one compute device")
	}
	seen := make(map[int]bool)
	for _, cd := range c.Compute {
		if seen[cd.ID] {
			return fmt.Errorf("duplicate compute device id %d", cd.ID)
		}
		seen[cd.ID] = true
		if cd.Capacity <= 0 {
			return fmt.Errorf("compute device %d: capacity_bytes must be positive, got %d", cd.ID, cd.Capacity)
		}
	}
	return nil
}

// Load reads and parses a cluster-model YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cluster config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing cluster config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cluster config: %w", err)
	}
	return &cfg, nil
}

// Build realizes a Config into a *device.Model, registering every
// compute device and comm link it declares.
func (c *Config) Build() *device.Model {
	m := device.NewModel(c.TotalSlots)
	for _, cd := range c.Compute {
		m.AddCompute(device.ID(cd.ID), cd.Node, cd.Slot, cd.Capacity)
	}
	for _, l := range c.IntraNode {
		m.AddIntraNodeLink(l.Src, l.Dst, l.Bandwidth)
	}
	for _, l := range c.GPUToDRAM {
		m.AddGPUToDRAM(l.Slot, l.Bandwidth)
	}
	for _, l := range c.DRAMToGPU {
		m.AddDRAMToGPU(l.Slot, l.Bandwidth)
	}
	for _, l := range c.InterNode {
		m.AddInterNodeLink(l.Src, l.Dst, l.Bandwidth)
	}
	return m
}

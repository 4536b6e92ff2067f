package replica

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClusterConfig is an optional YAML manifest of replica addresses, grounded
// in the teacher's raft-server/config.go. spec.md's CLI contract only needs
// bare peer ids on a shared loopback port; this exists for the multi-host
// deployment shape a real cluster eventually needs, and is entirely
// optional — cmd/raftd works from positional CLI args alone.
type ClusterConfig struct {
	Node    NodeConfig     `yaml:"node"`
	Cluster ClusterMembers `yaml:"cluster"`
}

type NodeConfig struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
}

type ClusterMembers struct {
	Peers []PeerConfig `yaml:"peers"`
}

type PeerConfig struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
}

// LoadClusterConfig reads and validates a cluster manifest from path.
func LoadClusterConfig(path string) (*ClusterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg ClusterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate rejects manifests with a missing self-entry, a self-address
// mismatch, or duplicate peer ids.
func (c *ClusterConfig) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("node.id is required")
	}
	if c.Node.Address == "" {
		return fmt.Errorf("node.address is required")
	}
	if len(c.Cluster.Peers) == 0 {
		return fmt.Errorf("cluster.peers must contain at least one peer")
	}

	found := false
	seen := make(map[string]bool, len(c.Cluster.Peers))
	for _, p := range c.Cluster.Peers {
		if seen[p.ID] {
			return fmt.Errorf("duplicate peer id: %s", p.ID)
		}
		seen[p.ID] = true

		if p.ID == c.Node.ID {
			found = true
			if p.Address != c.Node.Address {
				return fmt.Errorf("node address mismatch: node.address=%s but peer address=%s",
					c.Node.Address, p.Address)
			}
		}
	}
	if !found {
		return fmt.Errorf("node.id=%s not found in cluster.peers", c.Node.ID)
	}

	return nil
}

// PeerIDs returns every peer id other than the node's own.
func (c *ClusterConfig) PeerIDs() []string {
	ids := make([]string, 0, len(c.Cluster.Peers))
	for _, p := range c.Cluster.Peers {
		if p.ID != c.Node.ID {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

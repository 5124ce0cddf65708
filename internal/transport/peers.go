package transport

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/rexec/internal/cluster"
)

// Peers maps every rank to the address its HTTP transport listens on. The
// index in Addrs is the rank.
//
//	peers:
//	  - 127.0.0.1:7000   # rank 0, dispatcher
//	  - 127.0.0.1:7001
//	  - 127.0.0.1:7002
type Peers struct {
	Addrs []string `yaml:"peers"`
}

// LoadPeers reads a YAML peers file.
func LoadPeers(path string) (Peers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Peers{}, fmt.Errorf("read peers file: %w", err)
	}
	var p Peers
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Peers{}, fmt.Errorf("parse peers file: %w", err)
	}
	for i, a := range p.Addrs {
		if strings.TrimSpace(a) == "" {
			return Peers{}, fmt.Errorf("parse peers file: rank %d has no address", i)
		}
	}
	return p, nil
}

// Size is the number of ranks in the group.
func (p Peers) Size() int {
	return len(p.Addrs)
}

// Addr returns the listen address of rank r.
func (p Peers) Addr(r cluster.Rank) (string, error) {
	if int(r) < 0 || int(r) >= len(p.Addrs) {
		return "", fmt.Errorf("%w: %d", ErrUnknownRank, int(r))
	}
	return p.Addrs[r], nil
}

// URL returns the base URL of rank r. Bare host:port addresses get an
// http:// scheme.
func (p Peers) URL(r cluster.Rank) (string, error) {
	addr, err := p.Addr(r)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/"), nil
}

// ListenAddr returns the host:port part of rank r's address.
func (p Peers) ListenAddr(r cluster.Rank) (string, error) {
	addr, err := p.Addr(r)
	if err != nil {
		return "", err
	}
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	return strings.TrimRight(addr, "/"), nil
}

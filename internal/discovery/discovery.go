// Package discovery registers this process's address in the cluster's
// node set so external proxies can snapshot and follow membership
// changes. Grounded on the najibulloShapoatov-server-core cluster
// package's join/ping/leave shape, adapted to this module's presence
// abstraction instead of a raw redis client.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/sablecluster/matchmaker/internal/presence"
)

const (
	// NodesSet is the cluster-wide set of "<processId>/<address>:<port>"
	// entries, one per live process.
	NodesSet = "colyseus:nodes"
	// NodesDiscoveryChannel carries "add,<address>" / "remove,<address>"
	// as nodes join and leave.
	NodesDiscoveryChannel = "colyseus:nodes:discovery"
)

// Node identifies one process for discovery purposes.
type Node struct {
	ProcessID string
	Address   string
	Port      string
}

// FormattedAddress renders "<processId>/<address>:<port>", bracketing
// the address when it looks like an IPv6 literal (contains ':').
func (n Node) FormattedAddress() string {
	addr := n.Address
	if strings.Contains(addr, ":") && !strings.HasPrefix(addr, "[") {
		addr = "[" + addr + "]"
	}
	return fmt.Sprintf("%s/%s:%s", n.ProcessID, addr, n.Port)
}

// RegisterNode adds node to the cluster's node set and announces it on
// the discovery channel. Call once on startup, after the process is
// ready to receive IPC traffic.
func RegisterNode(ctx context.Context, p presence.Presence, node Node) error {
	addr := node.FormattedAddress()
	if err := p.SAdd(ctx, NodesSet, addr); err != nil {
		return fmt.Errorf("discovery: failed to add node to set: %w", err)
	}
	payload := []byte("add," + addr)
	if err := p.Publish(ctx, NodesDiscoveryChannel, payload); err != nil {
		return fmt.Errorf("discovery: failed to announce node: %w", err)
	}
	return nil
}

// UnregisterNode is the symmetric teardown, run during graceful
// shutdown before the process stops responding to IPC.
func UnregisterNode(ctx context.Context, p presence.Presence, node Node) error {
	addr := node.FormattedAddress()
	if err := p.SRem(ctx, NodesSet, addr); err != nil {
		return fmt.Errorf("discovery: failed to remove node from set: %w", err)
	}
	payload := []byte("remove," + addr)
	if err := p.Publish(ctx, NodesDiscoveryChannel, payload); err != nil {
		return fmt.Errorf("discovery: failed to announce node removal: %w", err)
	}
	return nil
}

// Snapshot returns every currently registered node address, the way an
// external proxy bootstraps its view of the cluster before following
// NodesDiscoveryChannel for deltas.
func Snapshot(ctx context.Context, p presence.Presence) ([]string, error) {
	members, err := p.SMembers(ctx, NodesSet)
	if err != nil {
		return nil, fmt.Errorf("discovery: failed to snapshot node set: %w", err)
	}
	return members, nil
}

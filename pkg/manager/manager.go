package manager

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/penghs520/pgraph/pkg/fsm"
	"github.com/penghs520/pgraph/pkg/log"
)

// Config holds configuration for creating a Node.
type Config struct {
	NodeID   string
	BindAddr string

	// RaftDir holds the raft log, stable store and raft-internal
	// snapshot metadata.
	RaftDir string

	HeartbeatTimeout time.Duration
	ElectionTimeout  time.Duration

	// SnapshotThreshold is the log entry count that triggers a
	// checkpoint.
	SnapshotThreshold uint64
}

// Node is one member of the replication cluster.
type Node struct {
	nodeID   string
	bindAddr string
	raftDir  string

	raft *raft.Raft
	fsm  *fsm.GraphFSM
	log  zerolog.Logger
}

// NewNode builds a node over the graph state machine.
func NewNode(cfg Config, f *fsm.GraphFSM) (*Node, error) {
	if err := os.MkdirAll(cfg.RaftDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raft directory: %w", err)
	}
	return &Node{
		nodeID:   cfg.NodeID,
		bindAddr: cfg.BindAddr,
		raftDir:  cfg.RaftDir,
		fsm:      f,
		log:      log.WithNodeID(cfg.NodeID),
	}, nil
}

// Start brings the raft instance up. With bootstrap set the node forms
// a new single-member cluster; otherwise it waits to be joined.
func (n *Node) Start(cfg Config, bootstrap bool) error {
	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(n.nodeID)
	if cfg.HeartbeatTimeout > 0 {
		raftConfig.HeartbeatTimeout = cfg.HeartbeatTimeout
	}
	if cfg.ElectionTimeout > 0 {
		raftConfig.ElectionTimeout = cfg.ElectionTimeout
	}
	if cfg.SnapshotThreshold > 0 {
		raftConfig.SnapshotThreshold = cfg.SnapshotThreshold
	}

	addr, err := net.ResolveTCPAddr("tcp", n.bindAddr)
	if err != nil {
		return fmt.Errorf("resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(n.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(n.raftDir, 2, os.Stderr)
	if err != nil {
		return fmt.Errorf("create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(n.raftDir, "raft-log.db"))
	if err != nil {
		return fmt.Errorf("create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(n.raftDir, "raft-stable.db"))
	if err != nil {
		return fmt.Errorf("create stable store: %w", err)
	}

	r, err := raft.NewRaft(raftConfig, n.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("create raft: %w", err)
	}
	n.raft = r

	if bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{ID: raftConfig.LocalID, Address: transport.LocalAddr()},
			},
		}
		if err := n.raft.BootstrapCluster(configuration).Error(); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}
		n.log.Info().Str("bind", n.bindAddr).Msg("cluster bootstrapped")
	}
	return nil
}

// Join adds a new voter to the cluster; only the leader can do this.
func (n *Node) Join(nodeID, addr string) error {
	if n.raft.State() != raft.Leader {
		return fmt.Errorf("not the leader")
	}
	future := n.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 0)
	if err := future.Error(); err != nil {
		return fmt.Errorf("add voter: %w", err)
	}
	n.log.Info().Str("joined", nodeID).Str("addr", addr).Msg("node joined cluster")
	return nil
}

// Apply replicates a write command through the log and waits for it to
// be applied. The FSM's dispatch error, if any, is returned.
func (n *Node) Apply(cmd fsm.Command, timeout time.Duration) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	future := n.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if applyErr, ok := resp.(error); ok {
			return applyErr
		}
	}
	return nil
}

// IsLeader reports whether this node currently leads.
func (n *Node) IsLeader() bool {
	return n.raft != nil && n.raft.State() == raft.Leader
}

// LeaderAddr returns the current leader's address, if known.
func (n *Node) LeaderAddr() string {
	if n.raft == nil {
		return ""
	}
	addr, _ := n.raft.LeaderWithID()
	return string(addr)
}

// Shutdown stops the raft instance.
func (n *Node) Shutdown() error {
	if n.raft == nil {
		return nil
	}
	return n.raft.Shutdown().Error()
}

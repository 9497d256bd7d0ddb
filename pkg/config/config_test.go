package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgraph.yaml")
	contents := `
listen_address: 0.0.0.0
listen_port: 9090
db_path: /var/lib/pgraph
db_snapshot_path: /mnt/shared/snapshots
db_vertex_lru_cache_size: 500
strict_edge_create: true
authentication:
  enabled: true
  users:
    - username: admin
      password: secret
cluster_config:
  node_id: 3
  rpc_addr: 10.0.0.3:13897
  heartbeat_interval: 500
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.ServerAddress())
	assert.Equal(t, "/var/lib/pgraph/data", cfg.DataPath())
	assert.Equal(t, "/var/lib/pgraph/logs", cfg.LogPath())
	assert.Equal(t, "/var/lib/pgraph/rafts", cfg.RaftPath())
	assert.Equal(t, "/mnt/shared/snapshots", cfg.SnapshotPath())
	assert.Equal(t, 500, cfg.VertexLRUSize())
	assert.True(t, cfg.StrictEdgeCreate)
	require.NotNil(t, cfg.ClusterConfig)
	assert.Equal(t, uint64(3), cfg.ClusterConfig.NodeID)
	require.NotNil(t, cfg.ClusterConfig.HeartbeatIntervalMillis)
	assert.Equal(t, uint64(500), *cfg.ClusterConfig.HeartbeatIntervalMillis)
}

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgraph.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, uint16(8081), cfg.ListenPort)
	assert.Equal(t, 1_000_000, cfg.VertexLRUSize())
	assert.Equal(t, 5, cfg.MaxSnapshotsToKeep())

	// The written file loads back identically.
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgraph.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen_address":"127.0.0.1","listen_port":7000,"db_path":"/tmp/x","db_snapshot_path":"/tmp/x/snaps"}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(7000), cfg.ListenPort)
}

func TestIsClientAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		client  string
		want    bool
	}{
		{name: "empty list allows everyone", allowed: nil, client: "1.2.3.4", want: true},
		{name: "exact match", allowed: []string{"10.0.0.1"}, client: "10.0.0.1", want: true},
		{name: "wildcard", allowed: []string{"0.0.0.0"}, client: "8.8.8.8", want: true},
		{name: "not listed", allowed: []string{"10.0.0.1"}, client: "10.0.0.2", want: false},
		{name: "unparseable address passes through", allowed: []string{"10.0.0.1"}, client: "not-an-ip", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ServerConfig{AllowedClients: tt.allowed}
			assert.Equal(t, tt.want, cfg.IsClientAllowed(tt.client))
		})
	}
}

func TestAuthenticate(t *testing.T) {
	cfg := ServerConfig{}
	assert.True(t, cfg.Authenticate("anyone", "anything"), "no auth config accepts everyone")

	cfg.Authentication = &Authentication{Enabled: false, Users: []User{{Username: "a", Password: "b"}}}
	assert.True(t, cfg.Authenticate("x", "y"), "disabled auth accepts everyone")

	cfg.Authentication.Enabled = true
	assert.True(t, cfg.Authenticate("a", "b"))
	assert.False(t, cfg.Authenticate("a", "wrong"))
	assert.False(t, cfg.Authenticate("unknown", "b"))
}

func TestThreadPoolDefault(t *testing.T) {
	cfg := ServerConfig{}
	assert.Equal(t, 2*runtime.NumCPU(), cfg.ThreadPool())

	n := 7
	cfg.ThreadPoolSize = &n
	assert.Equal(t, 7, cfg.ThreadPool())
}

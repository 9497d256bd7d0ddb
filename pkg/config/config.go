package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogRotation configures log file rotation.
type LogRotation struct {
	// MaxFiles is the number of rotated files kept.
	MaxFiles *uint32 `yaml:"max_files,omitempty" json:"max_files,omitempty"`

	// RotationHour is the local hour (0-23) at which rotation happens.
	RotationHour *uint8 `yaml:"rotation_hour,omitempty" json:"rotation_hour,omitempty"`
}

// User is one entry of the authentication user list.
type User struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Authentication gates clients behind a username/password check.
type Authentication struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Users   []User `yaml:"users" json:"users"`
}

// RaftConfig configures the replication cluster.
type RaftConfig struct {
	NodeID  uint64 `yaml:"node_id" json:"node_id"`
	RPCAddr string `yaml:"rpc_addr" json:"rpc_addr"`

	MaxInSnapshotLogToKeep  *uint64 `yaml:"max_in_snapshot_log_to_keep,omitempty" json:"max_in_snapshot_log_to_keep,omitempty"`
	SnapshotLogsThreshold   *uint64 `yaml:"snapshot_policy_logs_threshold,omitempty" json:"snapshot_policy_logs_threshold,omitempty"`
	HeartbeatIntervalMillis *uint64 `yaml:"heartbeat_interval,omitempty" json:"heartbeat_interval,omitempty"`
	ElectionTimeoutMin      *uint64 `yaml:"election_timeout_min,omitempty" json:"election_timeout_min,omitempty"`
	ElectionTimeoutMax      *uint64 `yaml:"election_timeout_max,omitempty" json:"election_timeout_max,omitempty"`
}

// ServerConfig is the full recognized configuration.
type ServerConfig struct {
	ListenAddress  string   `yaml:"listen_address" json:"listen_address"`
	ListenPort     uint16   `yaml:"listen_port" json:"listen_port"`
	AllowedClients []string `yaml:"allowed_clients,omitempty" json:"allowed_clients,omitempty"`

	DBPath         string `yaml:"db_path" json:"db_path"`
	DBSnapshotPath string `yaml:"db_snapshot_path" json:"db_snapshot_path"`

	MaxSnapshotFilesToKeep *uint64 `yaml:"max_snapshot_files_to_keep,omitempty" json:"max_snapshot_files_to_keep,omitempty"`

	DBCacheSizeMB       *uint64 `yaml:"db_cache_size_mb,omitempty" json:"db_cache_size_mb,omitempty"`
	DBWriteBufferSizeMB *uint64 `yaml:"db_write_buffer_size_mb,omitempty" json:"db_write_buffer_size_mb,omitempty"`
	DBMaxOpenFiles      *int    `yaml:"db_max_open_files,omitempty" json:"db_max_open_files,omitempty"`
	DBMaxBackgroundJobs *int    `yaml:"db_max_background_jobs,omitempty" json:"db_max_background_jobs,omitempty"`

	DBVertexLRUCacheSize *uint64 `yaml:"db_vertex_lru_cache_size,omitempty" json:"db_vertex_lru_cache_size,omitempty"`

	// StrictEdgeCreate rejects edge creation when the forward entry
	// already exists; the default is upsert.
	StrictEdgeCreate bool `yaml:"strict_edge_create,omitempty" json:"strict_edge_create,omitempty"`

	LogLevel    *string      `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	LogRotation *LogRotation `yaml:"log_rotation,omitempty" json:"log_rotation,omitempty"`

	Authentication *Authentication `yaml:"authentication,omitempty" json:"authentication,omitempty"`

	ThreadPoolSize *int `yaml:"thread_pool_size,omitempty" json:"thread_pool_size,omitempty"`

	ClusterConfig *RaftConfig `yaml:"cluster_config,omitempty" json:"cluster_config,omitempty"`
}

// Default returns the production defaults.
func Default() ServerConfig {
	cacheMB := uint64(1024)
	writeBufMB := uint64(128)
	maxOpen := 64
	bgJobs := 4
	lruSize := uint64(1_000_000)
	level := "info"
	keep := uint64(5)
	return ServerConfig{
		ListenAddress:          "127.0.0.1",
		ListenPort:             8081,
		AllowedClients:         []string{"127.0.0.1"},
		DBPath:                 "/tmp/pgraph",
		DBSnapshotPath:         "/tmp/pgraph/snapshots",
		MaxSnapshotFilesToKeep: &keep,
		DBCacheSizeMB:          &cacheMB,
		DBWriteBufferSizeMB:    &writeBufMB,
		DBMaxOpenFiles:         &maxOpen,
		DBMaxBackgroundJobs:    &bgJobs,
		DBVertexLRUCacheSize:   &lruSize,
		LogLevel:               &level,
	}
}

// Load reads the configuration from a YAML or JSON file. A missing file
// is created with the defaults, which are then returned.
func Load(path string) (ServerConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg ServerConfig
	if isYAMLPath(path) {
		if err := yaml.Unmarshal(contents, &cfg); err != nil {
			return ServerConfig{}, fmt.Errorf("parse YAML config: %w", err)
		}
	} else {
		if err := json.Unmarshal(contents, &cfg); err != nil {
			return ServerConfig{}, fmt.Errorf("parse JSON config: %w", err)
		}
	}
	return cfg, nil
}

// Save writes the configuration to path, as YAML or JSON chosen by the
// path's extension in the same way Load reads it.
func (c *ServerConfig) Save(path string) error {
	var contents []byte
	var err error
	if isYAMLPath(path) {
		contents, err = yaml.Marshal(c)
	} else {
		contents, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func isYAMLPath(path string) bool {
	return strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".conf")
}

// ServerAddress is the RPC bind address.
func (c *ServerConfig) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.ListenAddress, c.ListenPort)
}

// DataPath is the KV data directory.
func (c *ServerConfig) DataPath() string {
	return filepath.Join(c.DBPath, "data")
}

// LogPath is the replication log store directory.
func (c *ServerConfig) LogPath() string {
	return filepath.Join(c.DBPath, "logs")
}

// RaftPath is the raft metadata directory.
func (c *ServerConfig) RaftPath() string {
	return filepath.Join(c.DBPath, "rafts")
}

// SnapshotPath is the checkpoint root. Configure it to a directory
// shared across the cluster so followers can install snapshots.
func (c *ServerConfig) SnapshotPath() string {
	return c.DBSnapshotPath
}

// MaxSnapshotsToKeep returns the retention count, defaulting to 5.
func (c *ServerConfig) MaxSnapshotsToKeep() int {
	if c.MaxSnapshotFilesToKeep != nil {
		return int(*c.MaxSnapshotFilesToKeep)
	}
	return 5
}

// VertexLRUSize returns the LRU entry cap, defaulting to one million.
func (c *ServerConfig) VertexLRUSize() int {
	if c.DBVertexLRUCacheSize != nil {
		return int(*c.DBVertexLRUCacheSize)
	}
	return 1_000_000
}

// ThreadPool returns the worker thread count, defaulting to twice the
// CPU count.
func (c *ServerConfig) ThreadPool() int {
	if c.ThreadPoolSize != nil && *c.ThreadPoolSize > 0 {
		return *c.ThreadPoolSize
	}
	return 2 * runtime.NumCPU()
}

// IsClientAllowed checks a client address against the allow list. An
// absent or empty list allows everyone, as does the entry "0.0.0.0".
func (c *ServerConfig) IsClientAllowed(clientAddr string) bool {
	if len(c.AllowedClients) == 0 {
		return true
	}
	if net.ParseIP(clientAddr) == nil {
		return true
	}
	for _, allowed := range c.AllowedClients {
		if allowed == clientAddr || allowed == "0.0.0.0" {
			return true
		}
	}
	return false
}

// Authenticate validates a username/password pair. Authentication that
// is absent or disabled accepts everyone.
func (c *ServerConfig) Authenticate(username, password string) bool {
	if c.Authentication == nil || !c.Authentication.Enabled {
		return true
	}
	for _, u := range c.Authentication.Users {
		if u.Username == username && u.Password == password {
			return true
		}
	}
	return false
}

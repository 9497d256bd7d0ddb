package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/penghs520/pgraph/pkg/config"
	"github.com/penghs520/pgraph/pkg/fsm"
	"github.com/penghs520/pgraph/pkg/graph"
	"github.com/penghs520/pgraph/pkg/log"
	"github.com/penghs520/pgraph/pkg/manager"
	"github.com/penghs520/pgraph/pkg/metrics"
	"github.com/penghs520/pgraph/pkg/query"
	"github.com/penghs520/pgraph/pkg/snapshot"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pgraph",
	Short: "pgraph - embedded property-graph database for project cards",
	Long: `pgraph stores project-management cards as a property graph: typed
vertices with dozens of attributes and directional typed links between
them, replicated across a small Raft cluster.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"pgraph version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "pgraph.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
}

func loadConfig(cmd *cobra.Command) (config.ServerConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	level := "info"
	if cfg.LogLevel != nil {
		level = *cfg.LogLevel
	}
	logJSON, _ := cmd.Flags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: logJSON})
	return cfg, nil
}

func openEngine(cfg config.ServerConfig) (*graph.DB, error) {
	engineCfg := graph.Config{
		VertexLRUSize:    cfg.VertexLRUSize(),
		StrictEdgeCreate: cfg.StrictEdgeCreate,
	}
	if cfg.DBCacheSizeMB != nil {
		engineCfg.MmapSizeMB = int(*cfg.DBCacheSizeMB)
	}
	return graph.Open(cfg.DataPath(), engineCfg)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the graph database server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		db, err := openEngine(cfg)
		if err != nil {
			return fmt.Errorf("open engine: %w", err)
		}
		defer db.Close()

		snapshots := snapshot.NewManager(cfg.SnapshotPath(), cfg.MaxSnapshotsToKeep())
		stateMachine := fsm.NewGraphFSM(db, snapshots)
		engine := query.NewEngine(db)

		var node *manager.Node
		if cfg.ClusterConfig != nil {
			rc := cfg.ClusterConfig
			nodeCfg := manager.Config{
				NodeID:   fmt.Sprintf("%d", rc.NodeID),
				BindAddr: rc.RPCAddr,
				RaftDir:  cfg.RaftPath(),
			}
			if rc.HeartbeatIntervalMillis != nil {
				nodeCfg.HeartbeatTimeout = time.Duration(*rc.HeartbeatIntervalMillis) * time.Millisecond
			}
			if rc.ElectionTimeoutMax != nil {
				nodeCfg.ElectionTimeout = time.Duration(*rc.ElectionTimeoutMax) * time.Millisecond
			}
			if rc.SnapshotLogsThreshold != nil {
				nodeCfg.SnapshotThreshold = *rc.SnapshotLogsThreshold
			}

			node, err = manager.NewNode(nodeCfg, stateMachine)
			if err != nil {
				return fmt.Errorf("create cluster node: %w", err)
			}
			if err := node.Start(nodeCfg, true); err != nil {
				return fmt.Errorf("start cluster node: %w", err)
			}
			log.Logger.Info().Uint64("node_id", rc.NodeID).Str("rpc_addr", rc.RPCAddr).Msg("cluster mode")
		} else {
			log.Info("standalone mode")
		}

		metrics.Init()
		var leader metrics.LeaderReporter
		if node != nil {
			leader = node
		}
		collector := metrics.NewCollector(db, engine, leader)
		collector.Start()
		defer collector.Stop()

		go func() {
			if err := metrics.StartServer(cfg.ServerAddress()); err != nil {
				log.Errorf("metrics server stopped", err)
			}
		}()

		log.Logger.Info().
			Str("listen", cfg.ServerAddress()).
			Str("data", cfg.DataPath()).
			Int("workers", cfg.ThreadPool()).
			Msg("pgraph started")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info("shutting down")
		if node != nil {
			if err := node.Shutdown(); err != nil {
				log.Errorf("raft shutdown failed", err)
			}
		}
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage database snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a checkpoint of the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		db, err := openEngine(cfg)
		if err != nil {
			return fmt.Errorf("open engine: %w", err)
		}
		defer db.Close()

		snapshots := snapshot.NewManager(cfg.SnapshotPath(), cfg.MaxSnapshotsToKeep())
		dir, err := snapshots.Create(db)
		if err != nil {
			return err
		}
		fmt.Println(dir)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retained snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		snapshots := snapshot.NewManager(cfg.SnapshotPath(), cfg.MaxSnapshotsToKeep())
		infos, err := snapshots.List()
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%s\t%s\n", info.Dir, time.Unix(info.CreatedAt, 0).Format(time.RFC3339))
		}
		return nil
	},
}

package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/chainkv/pkg/manager"
	"github.com/cuemby/chainkv/pkg/metrics"
	"github.com/cuemby/chainkv/pkg/security"
	"github.com/cuemby/chainkv/pkg/store"
	"github.com/cuemby/chainkv/pkg/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bootstrap this node and serve its owned cache aliases over the entity transport",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		entityAddr, _ := cmd.Flags().GetString("entity-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		aliases, _ := cmd.Flags().GetStringSlice("cache")
		threshold, _ := cmd.Flags().GetInt("compaction-threshold")
		interval, _ := cmd.Flags().GetDuration("compaction-interval")
		configPath, _ := cmd.Flags().GetString("config")

		specs := make([]CacheSpec, 0, len(aliases))
		for _, alias := range aliases {
			specs = append(specs, CacheSpec{Alias: alias, Threshold: threshold, Interval: interval})
		}
		if configPath != "" {
			cfg, err := loadServeConfig(configPath)
			if err != nil {
				return err
			}
			for _, s := range cfg.Caches {
				if s.Threshold == 0 {
					s.Threshold = threshold
				}
				if s.Interval == 0 {
					s.Interval = interval
				}
				specs = append(specs, s)
			}
		}

		mgr, err := manager.NewManager(&manager.Config{NodeID: nodeID, BindAddr: bindAddr, DataDir: dataDir})
		if err != nil {
			return fmt.Errorf("create manager: %w", err)
		}
		if err := mgr.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}

		certDir, err := security.GetCertDir("entity", nodeID)
		if err != nil {
			return fmt.Errorf("resolve entity cert dir: %w", err)
		}
		entitySrv, err := transport.NewServer(certDir)
		if err != nil {
			return fmt.Errorf("create entity server: %w", err)
		}

		var compactors []*store.Compactor
		for _, spec := range specs {
			if err := mgr.CreateCache(spec.Alias); err != nil {
				return fmt.Errorf("register cache %s: %w", spec.Alias, err)
			}

			dbPath := filepath.Join(dataDir, "caches", spec.Alias+".db")
			s, err := store.NewBoltStore(dbPath)
			if err != nil {
				return fmt.Errorf("open store for %s: %w", spec.Alias, err)
			}
			entitySrv.Register(spec.Alias, s)

			compactor := store.NewCompactor(s, s, spec.Threshold, spec.Interval)
			compactor.Start()
			compactors = append(compactors, compactor)

			metrics.CachesTotal.Inc()
			fmt.Printf("serving cache %q\n", spec.Alias)
		}

		if err := entitySrv.Start(entityAddr); err != nil {
			return fmt.Errorf("start entity server: %w", err)
		}
		mgr.AttachEntityServer(entitySrv)
		fmt.Printf("entity server listening on %s\n", entityAddr)

		metrics.RegisterComponent("raft", true, "bootstrapped")
		metrics.RegisterComponent("entity_store", true, "ready")
		serveMetrics(metricsAddr)

		err = waitForShutdown(mgr)
		for _, c := range compactors {
			c.Stop()
		}
		return err
	},
}

func init() {
	serveCmd.Flags().String("node-id", "node-1", "this node's cluster identifier")
	serveCmd.Flags().String("bind-addr", "127.0.0.1:7400", "raft bind address")
	serveCmd.Flags().String("entity-addr", "127.0.0.1:7401", "entity transport listen address")
	serveCmd.Flags().String("data-dir", "./data", "data directory for raft, cluster, and cache state")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "metrics/health HTTP address")
	serveCmd.Flags().StringSlice("cache", nil, "cache alias(es) this node registers and owns (repeatable)")
	serveCmd.Flags().Int("compaction-threshold", 128, "default blob count above which a bucket becomes eligible for compaction")
	serveCmd.Flags().Duration("compaction-interval", 30*time.Second, "default interval between compaction sweeps")
	serveCmd.Flags().String("config", "", "YAML file declaring caches to serve (see CacheSpec), merged with --cache")
}

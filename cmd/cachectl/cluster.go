package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/chainkv/pkg/manager"
	"github.com/cuemby/chainkv/pkg/metrics"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage the cluster control plane",
}

var clusterInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a new single-node cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		mgr, err := manager.NewManager(&manager.Config{NodeID: nodeID, BindAddr: bindAddr, DataDir: dataDir})
		if err != nil {
			return fmt.Errorf("create manager: %w", err)
		}

		if err := mgr.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}
		fmt.Printf("cluster bootstrapped: node=%s raft=%s\n", nodeID, bindAddr)

		metrics.RegisterComponent("raft", true, "bootstrapped")
		serveMetrics(metricsAddr)

		return waitForShutdown(mgr)
	},
}

var clusterJoinCmd = &cobra.Command{
	Use:   "join <leader-addr> <token>",
	Short: "Join an existing cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		mgr, err := manager.NewManager(&manager.Config{NodeID: nodeID, BindAddr: bindAddr, DataDir: dataDir})
		if err != nil {
			return fmt.Errorf("create manager: %w", err)
		}

		if err := mgr.Join(args[0], args[1]); err != nil {
			return fmt.Errorf("join cluster: %w", err)
		}
		fmt.Printf("joined cluster via %s: node=%s\n", args[0], nodeID)

		metrics.RegisterComponent("raft", true, "joined")
		serveMetrics(metricsAddr)

		return waitForShutdown(mgr)
	},
}

var clusterTokenCmd = &cobra.Command{
	Use:   "token <manager|client>",
	Short: "Generate a join token (run against a live manager's data directory)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		mgr, err := manager.NewManager(&manager.Config{NodeID: nodeID, BindAddr: bindAddr, DataDir: dataDir})
		if err != nil {
			return fmt.Errorf("create manager: %w", err)
		}
		defer mgr.Shutdown()

		token, err := mgr.GenerateJoinToken(args[0], ttl)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		fmt.Println(token.Token)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{clusterInitCmd, clusterJoinCmd, clusterTokenCmd} {
		c.Flags().String("node-id", "node-1", "this node's cluster identifier")
		c.Flags().String("bind-addr", "127.0.0.1:7400", "raft bind address")
		c.Flags().String("data-dir", "./data", "data directory for raft and cluster state")
	}
	clusterInitCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "metrics/health HTTP address")
	clusterJoinCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "metrics/health HTTP address")
	clusterTokenCmd.Flags().Duration("ttl", time.Hour, "token validity duration")

	clusterCmd.AddCommand(clusterInitCmd, clusterJoinCmd, clusterTokenCmd)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()
	fmt.Printf("metrics: http://%s/metrics  health: http://%s/health\n", addr, addr)
}

func waitForShutdown(mgr *manager.Manager) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("shutting down...")
	return mgr.Shutdown()
}

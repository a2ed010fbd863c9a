// Command hotshotd runs one HotShot consensus validator: it wires the
// validator set, signer, storage, network transport, and engine tasks
// together and runs until an interrupt signal is received.
//
// Grounded on the teacher's cmd-package shape seen in canopy
// (cmd/main.go's rootCmd/startCmd split and signal-driven shutdown),
// using github.com/spf13/cobra for the CLI exactly as that example does.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hotshotd",
	Short: "hotshotd runs a HotShot-family BFT consensus validator",
}

var (
	flagConfigPath  string
	flagListenAddr  string
	flagDataShards  int
	flagParityShard int
	flagDAFanout    int
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start the validator",
	RunE: func(cmd *cobra.Command, args []string) error {
		return start(cmd.Context())
	},
}

func init() {
	startCmd.Flags().StringVar(&flagConfigPath, "config", "hotshotd.json", "path to the validator config file")
	startCmd.Flags().StringVar(&flagListenAddr, "listen", ":26700", "address the network adapter listens on")
	startCmd.Flags().IntVar(&flagDataShards, "da-data-shards", 4, "erasure-coding data shard count")
	startCmd.Flags().IntVar(&flagParityShard, "da-parity-shards", 2, "erasure-coding recovery shard count")
	startCmd.Flags().IntVar(&flagDAFanout, "da-fanout", 4, "branching factor of the per-block shard forwarding tree")

	rootCmd.AddCommand(startCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("hotshotd exited with an error", "err", err)
		os.Exit(1)
	}
}

// fileConfig is the on-disk shape read by loadConfig; it is
// intentionally minimal, matching the teacher's plain-JSON config files.
type fileConfig struct {
	ListenAddr      string   `json:"listen_addr"`
	DataDir         string   `json:"data_dir"`
	PeerAddrs       []string `json:"peer_addrs"`
	ViewTimeoutMS   int64    `json:"view_timeout_ms"`
	DataShards      int      `json:"da_data_shards"`
	RecoveryShards  int      `json:"da_recovery_shards"`
	SignatureScheme string   `json:"signature_scheme"` // "ed25519", "bls", or "secp256k1"
}

func loadConfig(path string) (fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("hotshotd: read config %q: %w", path, err)
	}

	var cfg fileConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("hotshotd: parse config %q: %w", path, err)
	}
	return cfg, nil
}

package cli

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/LeJamon/simpledexd/internal/config"
	"github.com/LeJamon/simpledexd/internal/node"
	"github.com/LeJamon/simpledexd/internal/rpc"
)

var (
	// Server flags
	port     int
	bindAddr string
	faucet   bool
)

// serverCmd represents the server command (default action)
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the exchange daemon",
	Long: `Start simpledexd, which provides:
- HTTP JSON-RPC endpoints for offer creation, cancellation and matching
- WebSocket server for real-time lifecycle event subscriptions
- Health check endpoint

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Set server as the default command
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}

	serverCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	serverCmd.Flags().StringVar(&bindAddr, "bind", "", "address to bind to (overrides config)")
	serverCmd.Flags().BoolVar(&faucet, "faucet", false, "enable the dev faucet methods")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if bindAddr != "" {
		cfg.Server.IP = bindAddr
	}
	if faucet {
		cfg.Server.EnableFaucet = true
	}

	manager := rpc.NewSubscriptionManager()
	n, err := node.Open(cfg, rpc.NewPublisher(manager))
	if err != nil {
		return err
	}
	defer n.Close()
	n.Start()

	httpServer := rpc.NewServer(n, cfg.Server.RequestTimeout)
	wsServer := rpc.NewWebSocketServer(n, manager)

	mux := http.NewServeMux()
	mux.Handle("/", httpServer)
	mux.Handle("/rpc", httpServer)
	mux.Handle("/ws", wsServer)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"simpledexd"}`))
	})

	listenAddr := cfg.ListenAddr()
	if !quiet {
		fmt.Println("Starting simpledexd")
		fmt.Printf("  - HTTP JSON-RPC: http://localhost:%d/rpc\n", cfg.Server.Port)
		fmt.Printf("  - WebSocket:     ws://localhost:%d/ws\n", cfg.Server.Port)
		fmt.Printf("  - Health Check:  http://localhost:%d/health\n", cfg.Server.Port)
		fmt.Printf("  - Store backend: %s\n", cfg.Store.Backend)
		if cfg.Server.EnableFaucet {
			fmt.Println("  - Dev faucet:    ENABLED")
		}
		fmt.Printf("Listening on %s...\n", listenAddr)
	}

	if err := http.ListenAndServe(listenAddr, mux); err != nil {
		log.Fatal("Server failed to start:", err)
	}
	return nil
}

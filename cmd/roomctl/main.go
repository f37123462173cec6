package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/latticechat/roomengine/pkg/config"
	"github.com/latticechat/roomengine/pkg/identity"
	"github.com/latticechat/roomengine/pkg/metrics"
	"github.com/latticechat/roomengine/pkg/rlog"
	"github.com/latticechat/roomengine/pkg/room"
	"github.com/latticechat/roomengine/pkg/view"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "roomctl",
	Short: "Drive a Room Engine room: a peer-to-peer replicated chat and file room",
	Long: `roomctl creates, joins, and drives rooms backed by the room engine:
a per-room append-only log replicated directly between peers over an
encrypted DHT swarm, with no server in the loop.`,
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "./roomengine-data", "Directory holding this room's local state")
	rootCmd.PersistentFlags().String("identity-dir", "", "Directory holding the process identity key (default <data-dir>/identity)")
	rootCmd.PersistentFlags().StringSlice("bootstrap", nil, "DHT bootstrap node addresses")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	createCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve Prometheus metrics on (empty disables it)")
	joinCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve Prometheus metrics on (empty disables it)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(inviteCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(writersCmd)

	inviteCmd.AddCommand(inviteCreateCmd)
	inviteCreateCmd.Flags().Duration("ttl", 10*time.Minute, "How long the invite stays redeemable")

	filesCmd.AddCommand(filesPutCmd)
	filesCmd.AddCommand(filesGetCmd)
	filesCmd.AddCommand(filesListCmd)
	filesListCmd.Flags().Bool("recursive", false, "List nested directories too")
	filesListCmd.Flags().Int("limit", 0, "Cap the number of entries returned (0 = no cap)")

	messagesCmd.Flags().Int("limit", 51, "Maximum number of messages to print")
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	rlog.Init(rlog.Config{Level: rlog.Level(logLevel), JSONOutput: logJSON})
}

func identityDir(cmd *cobra.Command) string {
	idDir, _ := cmd.Flags().GetString("identity-dir")
	if idDir != "" {
		return idDir
	}
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return dataDir + "/identity"
}

func loadConfig(cmd *cobra.Command) (config.Config, *identity.Identity, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	bootstrap, _ := cmd.Flags().GetStringSlice("bootstrap")

	id, err := identity.LoadOrGenerate(identityDir(cmd))
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load identity: %w", err)
	}

	cfg := config.Config{
		CorestoreDir: dataDir,
		Bootstrap:    bootstrap,
	}.WithDefaults()
	return cfg, id, nil
}

// waitForSignal blocks until Ctrl+C or SIGTERM, for commands that keep a
// room's swarm connections alive in the foreground.
func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

// startMetrics samples r into the package's Prometheus gauges every tick
// and serves them over HTTP, mirroring the teacher's cluster-init metrics
// server. Returns a stop func; a blank addr disables it entirely.
func startMetrics(r *room.Room, addr string) func() {
	collector := metrics.NewCollector(r)
	collector.Start()
	if addr == "" {
		return collector.Stop
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", addr)

	return func() {
		collector.Stop()
		srv.Close()
	}
}

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new room and stay connected to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg, id, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dataDir, _ := cmd.Flags().GetString("data-dir")

		r, err := room.Create(cfg, id, name)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		defer r.Close()

		info, err := r.GetRoomInfo()
		if err != nil {
			return err
		}
		if err := saveDescriptor(dataDir, r.RoomKey(), r.EncryptionKey()); err != nil {
			return fmt.Errorf("save room descriptor: %w", err)
		}

		fmt.Printf("✓ Room created: %s\n", info.Name)
		fmt.Printf("  Room ID: %s\n", info.ID)
		fmt.Printf("  Discovery key: %x\n", r.RoomKey())
		fmt.Println()

		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		stopMetrics := startMetrics(r, metricsAddr)
		defer stopMetrics()

		fmt.Println("roomctl is now listening for peers. Press Ctrl+C to stop.")

		waitForSignal()
		fmt.Println("\nShutting down...")
		return nil
	},
}

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Manage pairing invites for this room",
}

var inviteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a single-use invite and wait for it to be redeemed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, id, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dataDir, _ := cmd.Flags().GetString("data-dir")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		roomKey, encKey, err := loadDescriptor(dataDir)
		if err != nil {
			return err
		}

		r, err := room.Open(cfg, id, roomKey, encKey)
		if err != nil {
			return fmt.Errorf("open room: %w", err)
		}
		defer r.Close()

		inviteStr, err := r.CreateInvite(ttl)
		if err != nil {
			return fmt.Errorf("create invite: %w", err)
		}

		fmt.Println("Invite (share this with exactly one person):")
		fmt.Printf("  %s\n", inviteStr)
		fmt.Printf("\nExpires in %s. Press Ctrl+C to retract it early.\n", ttl)

		waitForSignal()
		fmt.Println("\nRetracting invite...")
		return r.DeleteInvite()
	},
}

var joinCmd = &cobra.Command{
	Use:   "join INVITE",
	Short: "Redeem an invite and join the room it names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invite := args[0]
		cfg, id, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dataDir, _ := cmd.Flags().GetString("data-dir")

		fmt.Println("Redeeming invite...")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.PairingTimeout)
		defer cancel()

		r, err := room.Pair(ctx, cfg, id, invite)
		if err != nil {
			return fmt.Errorf("join room: %w", err)
		}
		defer r.Close()

		info, err := r.GetRoomInfo()
		if err != nil {
			return err
		}
		if err := saveDescriptor(dataDir, r.RoomKey(), r.EncryptionKey()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to save room descriptor: %v\n", err)
		}

		fmt.Printf("✓ Joined room: %s\n", info.Name)

		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		stopMetrics := startMetrics(r, metricsAddr)
		defer stopMetrics()

		fmt.Println("roomctl is now listening for peers. Press Ctrl+C to stop.")
		waitForSignal()
		fmt.Println("\nShutting down...")
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send MESSAGE",
	Short: "Send a message to the room and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, id, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dataDir, _ := cmd.Flags().GetString("data-dir")

		roomKey, encKey, err := loadDescriptor(dataDir)
		if err != nil {
			return err
		}
		r, err := room.Open(cfg, id, roomKey, encKey)
		if err != nil {
			return fmt.Errorf("open room: %w", err)
		}
		defer r.Close()

		msg, err := r.SendMessage(args[0])
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		fmt.Printf("✓ Sent [%s]: %s\n", msg.ID[:8], msg.Content)
		return nil
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Print the room's recent messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, id, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dataDir, _ := cmd.Flags().GetString("data-dir")
		limit, _ := cmd.Flags().GetInt("limit")

		roomKey, encKey, err := loadDescriptor(dataDir)
		if err != nil {
			return err
		}
		r, err := room.Open(cfg, id, roomKey, encKey)
		if err != nil {
			return fmt.Errorf("open room: %w", err)
		}
		defer r.Close()

		msgs, err := r.GetMessages(view.MessageQuery{Limit: limit, Reverse: true})
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		if len(msgs) == 0 {
			fmt.Println("No messages yet")
			return nil
		}
		for i := len(msgs) - 1; i >= 0; i-- {
			m := msgs[i]
			ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04:05")
			fmt.Printf("[%s] %s: %s\n", ts, m.Sender, m.Content)
		}
		return nil
	},
}

var writersCmd = &cobra.Command{
	Use:   "writers",
	Short: "List the room's admitted writer keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, id, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dataDir, _ := cmd.Flags().GetString("data-dir")

		roomKey, encKey, err := loadDescriptor(dataDir)
		if err != nil {
			return err
		}
		r, err := room.Open(cfg, id, roomKey, encKey)
		if err != nil {
			return fmt.Errorf("open room: %w", err)
		}
		defer r.Close()

		writers, err := r.GetWriters()
		if err != nil {
			return err
		}
		for _, w := range writers {
			status := "active"
			if w.Removed {
				status = "removed"
			}
			fmt.Printf("%x  %s\n", w.Key, status)
		}
		return nil
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage the room's content-addressed file drive",
}

var filesPutCmd = &cobra.Command{
	Use:   "put ROOM_PATH LOCAL_FILE",
	Short: "Upload a local file to the room's drive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomPath, localPath := args[0], args[1]
		cfg, id, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dataDir, _ := cmd.Flags().GetString("data-dir")

		roomKey, encKey, err := loadDescriptor(dataDir)
		if err != nil {
			return err
		}
		r, err := room.Open(cfg, id, roomKey, encKey)
		if err != nil {
			return fmt.Errorf("open room: %w", err)
		}
		defer r.Close()

		data, err := os.ReadFile(localPath)
		if err != nil {
			return fmt.Errorf("read local file: %w", err)
		}
		meta, err := r.UploadFile(roomPath, data)
		if err != nil {
			return fmt.Errorf("upload file: %w", err)
		}
		fmt.Printf("✓ Uploaded %s (%d bytes)\n", meta.Path, meta.Size)
		return nil
	},
}

var filesGetCmd = &cobra.Command{
	Use:   "get ROOM_PATH",
	Short: "Download a file from the room's drive to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomPath := args[0]
		cfg, id, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dataDir, _ := cmd.Flags().GetString("data-dir")

		roomKey, encKey, err := loadDescriptor(dataDir)
		if err != nil {
			return err
		}
		r, err := room.Open(cfg, id, roomKey, encKey)
		if err != nil {
			return fmt.Errorf("open room: %w", err)
		}
		defer r.Close()

		data, err := r.DownloadFile(roomPath)
		if err != nil {
			return fmt.Errorf("download file: %w", err)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var filesListCmd = &cobra.Command{
	Use:   "list [DIR]",
	Short: "List files under DIR (default: room root)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "/"
		if len(args) == 1 {
			dir = args[0]
		}
		cfg, id, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dataDir, _ := cmd.Flags().GetString("data-dir")
		recursive, _ := cmd.Flags().GetBool("recursive")
		limit, _ := cmd.Flags().GetInt("limit")

		roomKey, encKey, err := loadDescriptor(dataDir)
		if err != nil {
			return err
		}
		r, err := room.Open(cfg, id, roomKey, encKey)
		if err != nil {
			return fmt.Errorf("open room: %w", err)
		}
		defer r.Close()

		entries, err := r.GetFiles(dir, recursive, limit)
		if err != nil {
			return fmt.Errorf("list files: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No files found")
			return nil
		}
		fmt.Printf("%-40s %10s\n", "PATH", "SIZE")
		fmt.Println(strings.Repeat("-", 52))
		for _, e := range entries {
			fmt.Printf("%-40s %10d\n", e.Path, e.Size)
		}
		return nil
	},
}

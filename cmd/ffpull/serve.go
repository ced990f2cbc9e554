package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ffpull/ffpull/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "advanced",
	Short:   "Serve the HTTP API and live sync updates",
	Long: `Start an HTTP server for managing projects and running syncs remotely.

Endpoints:
  GET    /health
  GET    /projects            POST /projects       DELETE /projects?index=N
  PATCH  /projects/{index}
  POST   /sync                {"indices":[0,2]}, empty for all
  GET    /log?tail=N          GET /history?since=RFC3339&project=NAME&limit=N

WebSocket clients on /ws receive sync_started, sync_progress,
sync_complete, log_line and projects_changed messages. Changes made to the
project file by other ffpull commands are picked up while serving.`,
	Run: func(cmd *cobra.Command, args []string) {
		port := cfg.Serve.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		m := openManager()

		srv := server.New(m, &server.Config{
			Port:       port,
			Logger:     logs.Logger("server"),
			WatchStore: true,
		})
		if err := srv.Start(); err != nil {
			m.Close()
			fatalf("failed to start server: %v", err)
		}

		addr := srv.GetAddr()
		fmt.Printf("Server started on http://%s\n", addr)
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", addr)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down server...")
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
		if err := m.Close(); err != nil {
			fatalf("%v", err)
		}
		fmt.Println("Server stopped")
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (default from serve.port)")

	rootCmd.AddCommand(serveCmd)
}

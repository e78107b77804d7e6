package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/ingestor/internal/core/config"
	"github.com/vietddude/ingestor/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint and retry queue state for all jobs",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.QueryContext(ctx, "SELECT job_name, last_processed_id, updated_at FROM checkpoints ORDER BY job_name")
	if err != nil {
		slog.Error("Failed to query checkpoints", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	var queueDepth int
	if err := db.GetContext(ctx, &queueDepth, "SELECT COUNT(*) FROM retry_queue"); err != nil {
		slog.Warn("Failed to count retry queue", "error", err)
	}
	var backlog int
	if err := db.GetContext(ctx, &backlog, "SELECT COUNT(*) FROM source_documents WHERE status != 'processed'"); err != nil {
		slog.Warn("Failed to count backlog", "error", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "JOB\tLAST PROCESSED\tUPDATED")

	for rows.Next() {
		var jobName, lastID, updatedAt string
		if err := rows.Scan(&jobName, &lastID, &updatedAt); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", jobName, lastID, updatedAt)
	}
	_ = w.Flush()

	fmt.Printf("\nUnprocessed documents: %d\nRetry queue depth: %d\n", backlog, queueDepth)
}

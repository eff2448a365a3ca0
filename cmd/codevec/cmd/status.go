package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codevec/internal/checkpoint"
	"github.com/Aman-CERP/codevec/internal/config"
	"github.com/Aman-CERP/codevec/internal/output"
)

func newStatusCmd() *cobra.Command {
	var checkpointPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint state of the last ingestion run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, checkpointPath)
		},
	}

	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint file (default from CHECKPOINT_PATH or ./ingestion_checkpoint.json)")

	return cmd
}

func runStatus(cmd *cobra.Command, checkpointPath string) error {
	out := output.New(cmd.OutOrStdout())

	if checkpointPath == "" {
		checkpointPath = os.Getenv("CHECKPOINT_PATH")
	}
	if checkpointPath == "" {
		checkpointPath = config.DefaultCheckpointPath
	}

	ckpt, err := checkpoint.NewStore(checkpointPath)
	if err != nil {
		if strings.Contains(err.Error(), "locked") {
			out.Status("🏃", "An ingestion run is in progress")
			return nil
		}
		return err
	}
	defer func() { _ = ckpt.Close() }()

	info, err := ckpt.Info()
	if err != nil {
		return err
	}

	if !info.Exists {
		out.Status("✅", "No checkpoint: the last run completed cleanly (or none has run)")
		return nil
	}

	out.Status("⏸️ ", "An interrupted run can be resumed with 'codevec ingest --resume'")
	if info.RepoID != "" {
		out.Statusf("", "Position: repo %s, language %s", info.RepoID, info.Language)
	}
	out.Statusf("", "Progress: %d files, %d chunks, %d repos completed",
		info.FilesProcessed, info.ChunksProcessed, info.CompletedRepos)
	if !info.Timestamp.IsZero() {
		out.Statusf("", "Last saved: %s", info.Timestamp.Format(time.RFC3339))
	}
	if len(info.RecentErrors) > 0 {
		out.Warningf("Recent errors (%d):", len(info.RecentErrors))
		for _, desc := range info.RecentErrors {
			out.Status("", "  "+desc)
		}
	}
	return nil
}

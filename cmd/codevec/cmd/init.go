package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codevec/configs"
	"github.com/Aman-CERP/codevec/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write starter configuration files",
		Long: `Write starter configuration templates into the working directory:
configs/repositories.yaml, configs/collections.yaml, and .env.example.

Existing files are left alone unless --force is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	files := []struct {
		path    string
		content string
	}{
		{filepath.Join("configs", "repositories.yaml"), configs.RepositoriesTemplate},
		{filepath.Join("configs", "collections.yaml"), configs.CollectionsTemplate},
		{".env.example", configs.EnvTemplate},
	}

	for _, f := range files {
		if !force {
			if _, err := os.Stat(f.path); err == nil {
				out.Statusf("", "%s exists, skipping (use --force to overwrite)", f.path)
				continue
			}
		}
		if dir := filepath.Dir(f.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("cannot create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("cannot write %s: %w", f.path, err)
		}
		out.Successf("Wrote %s", f.path)
	}

	out.Status("", "Copy .env.example to .env and fill in credentials, then run 'codevec ingest'")
	return nil
}

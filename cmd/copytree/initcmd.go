package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gregpriday/copytree/pkg/config"
	"github.com/gregpriday/copytree/pkg/profile"
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Write a starter .copytree.toml and default profile",
	Long: `init scaffolds a project for copytree: a commented .copytree.toml with
every setting at its default, and a .copytree/default.yaml profile to
edit. Existing files are left untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		content, err := config.GenerateConfigContent()
		if err != nil {
			return err
		}

		wrote, err := writeIfAbsent(filepath.Join(root, ".copytree.toml"), content)
		if err != nil {
			return err
		}
		report(cmd, filepath.Join(root, ".copytree.toml"), wrote)

		profilePath := filepath.Join(root, ".copytree", profile.DefaultProfileName+".yaml")
		if err := os.MkdirAll(filepath.Dir(profilePath), 0o755); err != nil {
			return err
		}
		wrote, err = writeIfAbsent(profilePath, profile.StarterProfile)
		if err != nil {
			return err
		}
		report(cmd, profilePath, wrote)

		return nil
	},
}

func writeIfAbsent(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	return true, os.WriteFile(path, []byte(content), 0o644)
}

func report(cmd *cobra.Command, path string, wrote bool) {
	if wrote {
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s (already exists)\n", path)
	}
}

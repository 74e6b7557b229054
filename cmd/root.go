package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// envFile is loaded into the environment before any command runs.
var envFile string

var rootCmd = &cobra.Command{
	Use:   "face-clustering",
	Short: "Group face photos into per-person clusters",
	Long: `Face Clustering files images into one directory per person by comparing
face embeddings from an external embedding service. It can ingest a dataset
from the command line, serve a web API where people submit a selfie to find
their photos, and help an admin review, rename and merge clusters.

Settings come from environment variables, optionally read from --env-file.`,
	SilenceUsage: true,
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with settings; variables already set win")
	cobra.OnInitialize(loadEnvFile)
}

// loadEnvFile tolerates a missing default .env but reports anything else.
func loadEnvFile() {
	err := godotenv.Load(envFile)
	if err == nil || (errors.Is(err, fs.ErrNotExist) && !rootCmd.PersistentFlags().Changed("env-file")) {
		return
	}
	fmt.Fprintf(os.Stderr, "warning: reading %s: %v\n", envFile, err)
}

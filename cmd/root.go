package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photo-timeline",
	Short: "Shared photo groups organized into meetings",
	Long: `Photo Timeline ingests photos into shared groups, extracts EXIF
metadata in the background and automatically organizes each group's photos
into meetings - clusters of photos separated by large time gaps.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

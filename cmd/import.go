package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-timeline/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Bulk-ingest a directory of photos into a group",
	Long: `Walk a local directory tree and ingest every supported image into a
group through the same pipeline uploads take. Duplicates are skipped, and
metadata extraction runs on the workers afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("group", "", "Group to ingest into (required)")
	importCmd.Flags().String("uploader", "import", "Uploader id recorded on the photos")
	importCmd.MarkFlagRequired("group")
}

// extMimes maps file extensions to upload MIME types for the walk.
var extMimes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
}

func collectImageFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := extMimes[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	groupID := mustGetString(cmd, "group")
	uploaderID := mustGetString(cmd, "uploader")
	dir := args[0]

	svcs, err := initServices()
	if err != nil {
		return err
	}
	defer svcs.close()

	files, err := collectImageFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No supported images found.")
		return nil
	}

	bar := progressbar.Default(int64(len(files)), "importing")

	var accepted, duplicates, failed int
	for _, path := range files {
		if err := importOne(cmd, svcs, groupID, uploaderID, path, &accepted, &duplicates); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "\n%s: %v\n", path, err)
		}
		bar.Add(1)
	}

	fmt.Printf("\nImported %d photos (%d duplicates, %d failed) into group %s\n",
		accepted, duplicates, failed, groupID)
	if failed > 0 {
		return fmt.Errorf("%d files failed to import", failed)
	}
	return nil
}

func importOne(cmd *cobra.Command, svcs *services, groupID, uploaderID, path string, accepted, duplicates *int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	mime := extMimes[strings.ToLower(filepath.Ext(path))]
	result, err := svcs.ingest.IngestPhoto(cmd.Context(), groupID, uploaderID, f, mime)
	if err != nil {
		if errors.Is(err, ingest.ErrValidation) {
			return fmt.Errorf("rejected: %w", err)
		}
		return err
	}

	if result.Status == ingest.StatusDuplicate {
		*duplicates++
	} else {
		*accepted++
	}
	return nil
}

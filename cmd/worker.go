package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-timeline/internal/exifmeta"
	"github.com/kozaktomas/photo-timeline/internal/thumbnail"
	"github.com/kozaktomas/photo-timeline/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker process.
The worker consumes photo processing jobs (EXIF extraction, thumbnails) from
the default queue and meeting reconciliation jobs from the cluster queue.
Run as many worker processes as needed; per-group serialization is enforced
through database advisory locks.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	svcs, err := initServices()
	if err != nil {
		return err
	}
	defer svcs.close()

	extractor := exifmeta.New()
	if extractor.SupportsHEIC() {
		svcs.logger.Info("HEIC metadata extraction enabled (exiftool found)")
	} else {
		svcs.logger.Warn("exiftool not found, HEIC uploads will keep null metadata")
	}

	handler := worker.New(worker.Deps{
		Photos:      svcs.photos,
		Meetings:    svcs.meetings,
		Store:       svcs.store,
		Extractor:   extractor,
		Thumbs:      thumbnail.New(svcs.cfg.Storage.ThumbMaxEdge),
		Coordinator: svcs.coordinator,
		Cluster:     svcs.cfg.Cluster,
		Logger:      svcs.logger,
	})

	srv, mux := worker.NewServer(svcs.cfg, handler, svcs.logger)
	svcs.logger.Info("starting worker",
		"process_concurrency", svcs.cfg.Process.Workers,
		"gap_hours", svcs.cfg.Cluster.GapHours)

	// Run blocks until SIGTERM/SIGINT and drains in-flight jobs.
	if err := srv.Run(mux); err != nil {
		return fmt.Errorf("worker terminated: %w", err)
	}
	return nil
}

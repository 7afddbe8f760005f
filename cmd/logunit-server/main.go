// Command logunit-server wires an EngineConfig to a running Engine and
// keeps it open until an interrupt or termination signal arrives, at
// which point it syncs and closes cleanly.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dd0wney/logunit/pkg/coldarchive"
	"github.com/dd0wney/logunit/pkg/logunit"
)

func main() {
	logDir := flag.String("log-dir", "./data", "directory holding segment files")
	configPath := flag.String("config", "", "optional YAML EngineConfig file")
	noVerify := flag.Bool("no-verify", false, "disable checksum verification on read")
	syncInterval := flag.Duration("sync-interval", 5*time.Second, "periodic Sync interval")
	streamSegments := flag.Bool("stream-segments", true, "accept stream-tagged addresses (ignored when -config is set)")
	archiveBucket := flag.String("archive-bucket", "", "S3 bucket for cold-archiving compacted segments, enables EngineConfig.ColdArchive (ignored when -config is set)")
	archivePrefix := flag.String("archive-prefix", "logunit", "S3 key prefix for archived segments (ignored when -config is set)")
	compactInterval := flag.Duration("compact-interval", time.Minute, "periodic Compact interval")
	flag.Parse()

	var cfg logunit.EngineConfig
	var err error
	if *configPath != "" {
		cfg, err = logunit.LoadEngineConfigYAML(*configPath)
	} else {
		cfg = logunit.DefaultEngineConfig(*logDir)
		cfg.NoVerify = *noVerify
		cfg.StreamSegmentsEnabled = *streamSegments
		if *archiveBucket != "" {
			cfg.ColdArchive = logunit.ColdArchiveConfig{
				Enabled: true,
				Bucket:  *archiveBucket,
				Prefix:  *archivePrefix,
			}
		}
		err = cfg.Validate()
	}
	if err != nil {
		log.Fatalf("logunit-server: invalid configuration: %v", err)
	}

	engine, err := logunit.NewEngine(cfg)
	if err != nil {
		log.Fatalf("logunit-server: failed to start engine: %v", err)
	}

	// EngineConfig.ColdArchive is the single source of truth for whether
	// cold-archiving runs; the storage core never reads it, so it is
	// the command's job to construct the Archiver and install it.
	if cfg.ColdArchive.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		archiver, err := coldarchive.NewS3Archiver(ctx, cfg.ColdArchive.Bucket, cfg.ColdArchive.Prefix)
		cancel()
		if err != nil {
			log.Fatalf("logunit-server: failed to configure cold archiver: %v", err)
		}
		engine.SetArchiver(archiver)
		log.Printf("logunit-server: cold-archiving compacted segments to s3://%s/%s", cfg.ColdArchive.Bucket, cfg.ColdArchive.Prefix)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go runPeriodic(ctx, *syncInterval, func() {
		if err := engine.Sync(); err != nil {
			log.Printf("logunit-server: sync error: %v", err)
		}
	})
	go runPeriodic(ctx, *compactInterval, func() {
		if err := engine.Compact(); err != nil {
			log.Printf("logunit-server: compact error: %v", err)
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Printf("logunit-server: shutting down")
	cancel()

	if err := engine.Sync(); err != nil {
		log.Printf("logunit-server: final sync error: %v", err)
	}
	if err := engine.Close(); err != nil {
		log.Fatalf("logunit-server: close error: %v", err)
	}
}

func runPeriodic(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

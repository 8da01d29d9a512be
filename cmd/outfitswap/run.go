package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"outfitswap/internal/domain"
	"outfitswap/internal/infra"
	"outfitswap/internal/providers/image"
	"outfitswap/internal/pubsub"
	"outfitswap/internal/registry"
	"outfitswap/internal/storage"
	"outfitswap/internal/studio"
)

var errBatchFailures = errors.New("one or more outfits failed")

const progressDrainTimeout = 2 * time.Second

var runCmd = &cobra.Command{
	Use:   "run --base PHOTO [--out DIR] OUTFIT...",
	Short: "Generate one result per outfit image",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatch,
}

func init() {
	runCmd.Flags().String("base", "", "photo of the person to dress (required)")
	runCmd.Flags().StringP("out", "o", "", "directory for result images (env STORAGE_PATH, default ./results)")
	_ = runCmd.MarkFlagRequired("base")

	_ = viper.BindPFlag("out", runCmd.Flags().Lookup("out"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, logFile := infra.NewLoggerWithFile(cfg.AppEnv, cfg.LogFile)
	defer logFile.Close()

	editor, err := image.NewEditorFromConfig(cfg, &logger)
	if err != nil {
		return err
	}
	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		return err
	}

	session := studio.New(editor, registry.NewHandleTable("cli/"), studio.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         &logger,
		FeedBuffer:     4*len(args) + 8,
	})
	defer session.Close()

	basePath, _ := cmd.Flags().GetString("base")
	base, err := readUpload(basePath)
	if err != nil {
		return err
	}
	if _, err := session.AddBase(base); err != nil {
		return fmt.Errorf("base %s: %w", basePath, err)
	}
	outfits := make([]domain.Upload, 0, len(args))
	for _, path := range args {
		up, err := readUpload(path)
		if err != nil {
			return err
		}
		outfits = append(outfits, up)
	}
	if _, err := session.AddOutfits(outfits); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feedCtx, cancelFeed := context.WithCancel(ctx)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		reportProgress(cmd, session.Subscribe(feedCtx))
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Generating %d images\n", len(outfits))
	runErr := session.Run(ctx)
	if runErr != nil {
		cancelFeed()
	}
	select {
	case <-progressDone:
	case <-time.After(progressDrainTimeout):
	}
	cancelFeed()
	if runErr != nil {
		return runErr
	}

	return writeResults(ctx, cmd, session, store)
}

func loadConfig() (*infra.Config, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("provider"); v != "" {
		cfg.EditProvider = v
	}
	if v := viper.GetString("model"); v != "" {
		cfg.GeminiModel = v
	}
	if v := viper.GetString("aspect_ratio"); v != "" {
		cfg.AspectRatio = v
	}
	if v := viper.GetInt("timeout"); v > 0 {
		cfg.GeminiTimeout = time.Duration(v) * time.Second
	}
	if v := viper.GetString("log_file"); v != "" {
		cfg.LogFile = v
	}
	if v := viper.GetString("out"); v != "" {
		cfg.StoragePath = v
	}
	switch cfg.EditProvider {
	case infra.EditProviderGemini, infra.EditProviderSynthetic:
	default:
		return nil, fmt.Errorf("provider %q is not supported", cfg.EditProvider)
	}
	return cfg, nil
}

func readUpload(path string) (domain.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("read %s: %w", path, err)
	}
	return domain.Upload{
		Name: filepath.Base(path),
		MIME: mimetype.Detect(data).String(),
		Data: data,
	}, nil
}

func reportProgress(cmd *cobra.Command, events <-chan pubsub.Event[studio.State]) {
	reported := make(map[string]domain.JobStatus)
	for ev := range events {
		if ev.Type == pubsub.BatchFinished {
			return
		}
		if ev.Type != pubsub.JobUpdated {
			continue
		}
		for _, job := range ev.Payload.Jobs {
			if reported[job.ID] == job.Status {
				continue
			}
			reported[job.ID] = job.Status
			switch job.Status {
			case domain.JobStatusProcessing:
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: processing\n", job.Outfit.Name)
			case domain.JobStatusCompleted:
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: done\n", job.Outfit.Name)
			case domain.JobStatusFailed:
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: failed: %s\n", job.Outfit.Name, job.ErrorMessage)
			}
		}
	}
}

func writeResults(ctx context.Context, cmd *cobra.Command, session *studio.Studio, store *storage.FileStore) error {
	results, err := session.Results()
	if err != nil {
		return err
	}
	for _, res := range results {
		key, err := store.Write(ctx, storage.ResultKey(res.FileName, res.MIME), res.Data)
		if err != nil {
			return fmt.Errorf("save %s: %w", res.FileName, err)
		}
		path, _ := store.Path(key)
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
	}

	state := session.State()
	if state.Error != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), state.Error)
		return errBatchFailures
	}
	return nil
}

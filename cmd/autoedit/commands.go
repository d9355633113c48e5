package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/makeasinger/autoedit/internal/auth"
	"github.com/makeasinger/autoedit/internal/batch"
	"github.com/makeasinger/autoedit/internal/config"
	"github.com/makeasinger/autoedit/internal/logging"
	"github.com/makeasinger/autoedit/internal/model"
	"github.com/makeasinger/autoedit/internal/pipeline"
	"github.com/makeasinger/autoedit/internal/service"
)

var (
	registerID         string
	registerTranscript string

	editFlags struct {
		noSilence   bool
		zoom        bool
		beatSync    bool
		stabilize   bool
		denoise     bool
		noCaptions  bool
		color       string
		platform    string
		quality     string
		music       string
		musicVolume float64
		promote     bool
	}

	batchConcurrency int

	tokenUser  string
	tokenEmail string
	tokenTTL   time.Duration
)

func init() {
	registerCmd.Flags().StringVar(&registerID, "id", "", "asset id (default: random)")
	registerCmd.Flags().StringVar(&registerTranscript, "transcript", "", "path to a plain text transcript")

	for _, cmd := range []*cobra.Command{runCmd, batchCmd} {
		f := cmd.Flags()
		f.BoolVar(&editFlags.noSilence, "keep-silence", false, "do not remove silent regions")
		f.BoolVar(&editFlags.zoom, "zoom", false, "punch in on highlights")
		f.BoolVar(&editFlags.beatSync, "beat-sync", false, "snap cuts to detected beats")
		f.BoolVar(&editFlags.stabilize, "stabilize", false, "stabilize shaky footage")
		f.BoolVar(&editFlags.denoise, "denoise", false, "reduce background noise")
		f.BoolVar(&editFlags.noCaptions, "no-captions", false, "do not burn in captions")
		f.StringVar(&editFlags.color, "color", "", "color preset: auto, cinematic, bleach, log709")
		f.StringVar(&editFlags.platform, "platform", "", "target platform: youtube, shorts, tiktok, reels, square, portrait")
		f.StringVar(&editFlags.quality, "quality", string(model.QualityStandard), "quality preset: standard or best")
		f.StringVar(&editFlags.music, "music", "", "background music reference")
		f.Float64Var(&editFlags.musicVolume, "music-volume", 0.15, "background music volume (0-1)")
		f.BoolVar(&editFlags.promote, "promote", false, "point the asset at the new render once verified")
	}
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", batch.DefaultConcurrency, "assets processed at once")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "local", "user id")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}

func editOptions() model.EditOptions {
	opts := model.DefaultEditOptions()
	opts.RemoveSilence = !editFlags.noSilence
	opts.EnableZoom = editFlags.zoom
	opts.EnableBeatSync = editFlags.beatSync
	opts.EnableStabilize = editFlags.stabilize
	opts.EnableDenoise = editFlags.denoise
	opts.EnableCaptions = !editFlags.noCaptions
	opts.ColorPreset = editFlags.color
	opts.Platform = model.Platform(editFlags.platform)
	opts.Quality = model.QualityPreset(editFlags.quality)
	opts.MusicTrack = editFlags.music
	opts.MusicVolume = editFlags.musicVolume
	opts.Promote = editFlags.promote
	return opts
}

// progressLogger prints pipeline progress to the log.
func progressLogger() pipeline.Notifier {
	logger := logging.WithComponent("progress")
	return pipeline.NotifierFunc(func(e model.ProgressEvent) {
		logger.Info().
			Str("asset_id", e.AssetID).
			Str("stage", string(e.Stage)).
			Int("percent", e.Percent).
			Msg(e.Message)
	})
}

var registerCmd = &cobra.Command{
	Use:   "register [video file]",
	Short: "Register a local video as an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		info, err := a.Executor.ProbeVideo(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("%w: %v", service.ErrUnsupportedMedia, err)
		}

		req := &model.RegisterAssetRequest{
			ID:              registerID,
			SourceRef:       path,
			DurationSeconds: info.DurationSeconds,
			Width:           info.Width,
			Height:          info.Height,
		}
		if registerTranscript != "" {
			data, err := os.ReadFile(registerTranscript)
			if err != nil {
				return fmt.Errorf("failed to read transcript: %w", err)
			}
			req.Transcript = strings.TrimSpace(string(data))
		}

		svc := service.NewAssetService(a.Assets, a.History, a.Storage, a.Executor, config.FromContext(cmd.Context()).Pipeline.WorkDir)
		asset, err := svc.Register(cmd.Context(), req)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd, asset)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.2fs\t%dx%d\n", asset.ID, asset.DurationSeconds, asset.Width, asset.Height)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run [asset id]",
	Short: "Analyze, plan and render one asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		result, err := a.Pipeline.Run(cmd.Context(), pipeline.RunRequest{
			JobID:    uuid.New().String(),
			AssetID:  args[0],
			Options:  editOptions(),
			Notifier: progressLogger(),
		})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd, result)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rendered:  %s\n", result.RenderedURL)
		fmt.Fprintf(out, "duration:  %.2fs (%.2fs removed)\n", result.OutputDuration, result.SecondsRemoved)
		fmt.Fprintf(out, "quality:   %d -> %d (%+d)\n", result.QualityBefore, result.QualityAfter, result.Improvement)
		fmt.Fprintf(out, "edits:     %s\n", strings.Join(result.EditsApplied, ", "))
		fmt.Fprintf(out, "version:   %s\n", result.VersionID)
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [asset id...]",
	Short: "Edit several assets concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		coordinator := batch.New(a.Pipeline, batchConcurrency, progressLogger(), logging.Base())
		result := coordinator.RunBatch(cmd.Context(), lo.Uniq(args), batchConcurrency, editOptions())
		if jsonOut {
			if err := printJSON(cmd, result); err != nil {
				return err
			}
		} else {
			out := cmd.OutOrStdout()
			for _, id := range result.Completed {
				fmt.Fprintf(out, "ok\t%s\n", id)
			}
			for _, f := range result.Failed {
				fmt.Fprintf(out, "failed\t%s\t%s\t%s\n", f.ID, f.Category, f.Error)
			}
		}
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d of %d assets failed", len(result.Failed), result.Total)
		}
		return nil
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions [asset id]",
	Short: "List retained renders of an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		svc := service.NewAssetService(a.Assets, a.History, a.Storage, nil, "")
		resp, err := svc.Versions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd, resp)
		}
		for _, v := range resp.Versions {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
				v.ID, v.CreatedAt.Format(time.RFC3339), v.RenderedRef, strings.Join(v.EditsApplied, ","))
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [asset id] [version id]",
	Short: "Point an asset back at a stored version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		svc := service.NewAssetService(a.Assets, a.History, a.Storage, nil, "")
		resp, err := svc.Restore(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd, resp)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", resp.AssetID, resp.SourceRef)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [asset id]",
	Short: "List cuts applied to an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		svc := service.NewAssetService(a.Assets, a.History, a.Storage, nil, "")
		resp, err := svc.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd, resp)
		}
		for _, e := range resp.Entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%8.2fs\t%.2fs\t%s\n", e.CutTimestamp, e.DurationCut, e.AppliedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an HMAC API token for local use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		token, err := auth.NewLegacyToken(tokenUser, tokenEmail, cfg.JWT.Secret, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"lens-recorder/internal/application"
	"lens-recorder/internal/config"
	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/camera"
	"lens-recorder/internal/infrastructure/encoder"
	"lens-recorder/internal/infrastructure/export"
	"lens-recorder/internal/infrastructure/logger"
	"lens-recorder/internal/infrastructure/render"
	"lens-recorder/internal/infrastructure/sharing"
	"lens-recorder/internal/infrastructure/transcode"
	"lens-recorder/internal/presentation/httpapi"
)

// Run собирает студию и обслуживает ее до отмены ctx или сигнала завершения.
func Run(ctx context.Context, cfg *config.Config) error {
	log := logger.WithComponent("cli")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	facing, err := domain.ParseFacingMode(cfg.Camera.Facing)
	if err != nil {
		return err
	}

	lens, err := render.LensByName(cfg.Render.Lens)
	if err != nil {
		return err
	}
	session := render.NewSession(render.Config{
		MaxWidth:     cfg.Render.MaxWidth,
		MaxHeight:    cfg.Render.MaxHeight,
		FPSWarnBelow: cfg.Render.FPSWarnBelow,
		Lens:         lens,
	}, logger.WithComponent("render"))

	negotiator := application.NewNegotiator(
		camera.NewMediaDevicesManager(logger.WithComponent("camera")),
		map[domain.FacingMode]string{
			domain.FacingFront: cfg.Camera.FrontDevice,
			domain.FacingBack:  cfg.Camera.BackDevice,
		},
		logger.WithComponent("negotiator"),
	)
	switcher := application.NewSwitcher(negotiator, session, application.SwitcherConfig{
		Width:       cfg.Render.Width,
		Height:      cfg.Render.Height,
		FPSLimit:    cfg.Render.FPSLimit,
		Performance: cfg.Profile == config.ProfilePerformance,
	}, logger.WithComponent("switcher"))

	media := encoder.NewFFmpegRecorder(encoder.Config{
		Bin:      cfg.Transcode.FFmpegBin,
		MimeType: cfg.Recording.MimeType,
	}, logger.WithComponent("encoder"))
	recorder := application.NewRecorder(media, session, cfg.Recording.FPS, logger.WithComponent("recorder"))

	engine := transcode.NewEngine(transcode.Config{
		Bin:     cfg.Transcode.FFmpegBin,
		WorkDir: cfg.Transcode.WorkDir,
	}, logger.WithComponent("transcode"))

	sharer, err := sharing.NewWebSocketSharer(cfg.Export.ShareURL, 0, logger.WithComponent("sharing"))
	if err != nil {
		return err
	}

	links := export.NewLinks()
	board := httpapi.NewBoard()
	studio := application.NewStudio(application.StudioDeps{
		Switcher:   switcher,
		Recorder:   recorder,
		Transcoder: engine,
		Downloader: export.NewFileDownloader(cfg.Export.DownloadDir, logger.WithComponent("export")),
		Sharer:     sharer,
		Links:      links,
		Busy:       board,
		Notifier:   board,
	}, application.StudioConfig{
		Facing:     facing,
		Filename:   cfg.Export.Filename,
		ShareTitle: cfg.Export.ShareTitle,
		ShareText:  cfg.Export.ShareText,
	}, logger.WithComponent("studio"))

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Studio:         studio,
			Preview:        session,
			Artifacts:      links,
			Board:          board,
			Logger:         logger.WithComponent("http"),
			RequestsPerMin: cfg.HTTP.RequestsPerMin,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("profile", string(cfg.Profile)).Msg("studio listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// При ошибке загрузка повторится при первом использовании.
		if err := engine.Load(gctx); err != nil {
			log.Warn().Err(err).Msg("transcode engine not ready")
		}
		return nil
	})

	g.Go(func() error {
		if err := studio.Start(gctx); err != nil {
			log.Warn().Err(err).Msg("initial camera acquisition failed")
		}
		<-gctx.Done()

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := studio.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("close studio: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

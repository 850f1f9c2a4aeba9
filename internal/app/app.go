package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Rahul2570089/mp4-2-mp3/cmd/migrate"
	"github.com/Rahul2570089/mp4-2-mp3/internal/auth"
	"github.com/Rahul2570089/mp4-2-mp3/internal/blobstore"
	"github.com/Rahul2570089/mp4-2-mp3/internal/cache"
	"github.com/Rahul2570089/mp4-2-mp3/internal/config"
	"github.com/Rahul2570089/mp4-2-mp3/internal/extractor"
	"github.com/Rahul2570089/mp4-2-mp3/internal/notifier"
	"github.com/Rahul2570089/mp4-2-mp3/internal/orphan"
	"github.com/Rahul2570089/mp4-2-mp3/internal/queue"
	"github.com/Rahul2570089/mp4-2-mp3/internal/redisholder"
	"github.com/Rahul2570089/mp4-2-mp3/internal/repository/storage"
	"github.com/Rahul2570089/mp4-2-mp3/internal/transport/handler"
	"github.com/Rahul2570089/mp4-2-mp3/internal/transport/router"
	use_case "github.com/Rahul2570089/mp4-2-mp3/internal/use-case"
	"github.com/Rahul2570089/mp4-2-mp3/internal/worker"
)

type App struct {
	HttpServer *http.Server

	consumers []*queue.Consumer
	holder    *redisholder.Holder
}

// New constructs every client once and passes it to each component by
// reference; nothing reaches for process-wide globals.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	err := migrate.Migrate(cfg.Database.DSN, migrate.Migrations)
	if err != nil {
		return nil, err
	}

	repo, err := storage.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	holder, err := redisholder.Build(ctx, &cfg.Redis)
	if err != nil {
		return nil, err
	}
	rc := holder.Get()

	blobs, err := blobstore.NewS3Store(ctx, &cfg.S3)
	if err != nil {
		return nil, err
	}

	orphans := orphan.NewLedger(cache.NewCache("mp4-2-mp3:orphans", rc))

	convertQ := queue.NewProducer(rc, cfg.Convert.Stream, cfg.Convert.MaxLen)
	notifyQ := queue.NewProducer(rc, cfg.Notify.Stream, cfg.Notify.MaxLen)

	ex := extractor.New(
		extractor.WithFFmpegPath(cfg.Convert.FFmpegPath),
		extractor.WithBitrate(cfg.Convert.Bitrate),
	)
	if err := ex.VerifyInstalled(ctx); err != nil {
		return nil, err
	}

	email, err := notifier.NewEmail(&cfg.SMTP)
	if err != nil {
		return nil, err
	}

	convertWorker := worker.NewConvert(blobs, ex, notifyQ, orphans)
	notifyWorker := worker.NewNotify(email)

	consumers := []*queue.Consumer{
		queue.NewConsumer(rc, cfg.Convert.WorkerConfig, convertWorker.Process),
		queue.NewConsumer(rc, cfg.Notify, notifyWorker.Process),
	}

	uc := use_case.New(blobs, convertQ, orphans)
	h := handler.New(uc, auth.New(repo, cfg.Auth), cfg)
	r := router.NewRouter(h)

	s := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout * time.Second,
	}

	return &App{
		HttpServer: s,
		consumers:  consumers,
		holder:     holder,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	for _, c := range a.consumers {
		go func(c *queue.Consumer) {
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("consumer stopped: %v", err)
			}
		}(c)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("starting server on %s", a.HttpServer.Addr)
		errCh <- a.HttpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := a.HttpServer.Shutdown(shutdownCtx)
		_ = a.holder.Close()
		return err
	case err := <-errCh:
		return err
	}
}

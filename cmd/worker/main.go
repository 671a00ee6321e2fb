package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/PicDeck/internal/catalog"
	"github.com/UnendingLoop/PicDeck/internal/config"
	"github.com/UnendingLoop/PicDeck/internal/kafka"
	"github.com/UnendingLoop/PicDeck/internal/pipeline"
	"github.com/UnendingLoop/PicDeck/internal/repository"
	"github.com/UnendingLoop/PicDeck/internal/service"
	"github.com/UnendingLoop/PicDeck/internal/storage"
	"github.com/UnendingLoop/PicDeck/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	zlog.InitConsole()

	// инициализировать конфиг/ считать энвы
	appConfig, err := config.Load()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load envs, exiting worker...")
	}
	if err := zlog.SetLevel(appConfig.LogLvl); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to init logger")
	}

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.LoadFile(appConfig.TemplateCatalog)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load template catalog")
	}

	// подключиться к базе
	dbConn, err := repository.ConnectWithRetries(appConfig.PostgresDSN, 5, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Exiting worker...")
	}
	// подключиться к хранилищу
	strg, err := storage.NewBlobStorage(ctx, appConfig, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Exiting worker...")
	}
	repo := repository.NewPostgresBatchRepo(dbConn)

	proc := pipeline.NewProcessor(
		pipeline.WithWorkers(appConfig.Workers),
		pipeline.WithLegacyNaming(appConfig.LegacyNaming),
	)
	// паблишер воркеру не нужен - в очередь пишет только API
	var svc worker.BatchWorkerService = service.NewBatchService(repo, NoopPublisher{}, strg, proc, cat)

	// ждем пока кафка раздуплится
	if err := kafka.WaitKafkaReady(ctx, appConfig.KafkaBroker, 10*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Exiting worker...")
	}

	// подключиться к кафке как читатель
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	cons := wbfkafka.NewConsumer([]string{appConfig.KafkaBroker}, appConfig.KafkaTopic, appConfig.KafkaGroupID)
	cons.StartConsuming(ctx, queue, retryStrategy)

	// Собираем воедино все что нужно воркеру и запускаем его
	w := worker.NewWorkerInstance(svc, queue, cons)
	go w.StartWorker(ctx)

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()

	shutdown(cons, dbConn)
	zlog.Logger.Info().Msg("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-reader")
	}
	zlog.Logger.Info().Msg("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}

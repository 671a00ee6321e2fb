// Package main (in api-subfolder) provides launch of the whole application except worker
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/PicDeck/internal/catalog"
	"github.com/UnendingLoop/PicDeck/internal/config"
	"github.com/UnendingLoop/PicDeck/internal/kafka"
	"github.com/UnendingLoop/PicDeck/internal/mwlogger"
	"github.com/UnendingLoop/PicDeck/internal/pipeline"
	"github.com/UnendingLoop/PicDeck/internal/repository"
	"github.com/UnendingLoop/PicDeck/internal/service"
	"github.com/UnendingLoop/PicDeck/internal/storage"
	"github.com/UnendingLoop/PicDeck/internal/transport"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// стартуем логгер
	zlog.InitConsole()

	// инициализировать конфиг/ считать энвы
	appConfig, err := config.Load()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load envs, exiting app...")
	}
	if err := zlog.SetLevel(appConfig.LogLvl); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to init logger")
	}

	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// каталог шаблонов: встроенный + TOML из конфига
	cat, err := catalog.LoadFile(appConfig.TemplateCatalog)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load template catalog")
	}

	// подключиться к базе и накатить миграции
	dbConn, err := repository.ConnectWithRetries(appConfig.PostgresDSN, 5, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Exiting the app...")
	}
	if err := repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Exiting the app...")
	}

	// подключиться к хранилищу
	strg, err := storage.NewBlobStorage(ctx, appConfig, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Exiting the app...")
	}
	repo := repository.NewPostgresBatchRepo(dbConn)

	// ждем пока кафка раздуплится и создаем топик
	if err := kafka.WaitKafkaReady(ctx, appConfig.KafkaBroker, 10*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Exiting the app...")
	}
	if err := kafka.InitKafkaTopics(ctx, appConfig.KafkaBroker, 10*time.Second, appConfig.KafkaTopic); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Exiting the app...")
	}
	pub := wbfkafka.NewProducer([]string{appConfig.KafkaBroker}, appConfig.KafkaTopic)

	proc := pipeline.NewProcessor(
		pipeline.WithWorkers(appConfig.Workers),
		pipeline.WithLegacyNaming(appConfig.LegacyNaming),
	)

	// создаем экземпляр сервиса и хендлеров
	var svc BatchAPIService = service.NewBatchService(repo, pub, strg, proc, cat)
	handlers := transport.NewBatchHandler(svc, appConfig.MaxUploadMB)

	// сетапим сервер
	engine := ginext.New(appConfig.GinMode)
	engine.MaxMultipartMemory = int64(appConfig.MaxUploadMB) << 20

	engine.GET("/ping", handlers.SimplePinger)
	engine.GET("/templates", handlers.Templates)
	engine.POST("/process", handlers.Process)              // синхронная обработка, ответ - картинка или архив
	engine.POST("/batches", handlers.Create)               // асинхронный батч через очередь
	engine.GET("/batches", handlers.GetAllBatches)         // список с пагинацией и сортировкой
	engine.GET("/batches/:id", handlers.Get)               // статус и провалившиеся задачи
	engine.GET("/batches/:id/result", handlers.LoadResult) // скачивание результата
	engine.DELETE("/batches/:id", handlers.Delete)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           mwlogger.NewMWLogger(engine),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Server launch
	go func() {
		zlog.Logger.Info().Str("addr", srv.Addr).Msg("Server running")
		if err := srv.ListenAndServe(); err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				zlog.Logger.Info().Msg("Server gracefully stopping...")
			default:
				zlog.Logger.Error().Err(err).Msg("Server stopped")
				stop()
			}
		}
	}()

	// запускаем фонового воркера для отслеживания подвисших батчей
	go recoveryLoop(ctx, svc)

	// ждем отмены контекста для запуска грейсфул закрытия соединений
	<-ctx.Done()

	shutdown(srv, pub, dbConn)
	zlog.Logger.Info().Msg("Exiting api...")
}

func recoveryLoop(ctx context.Context, svc BatchAPIService) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().Interface("panic", r).Msg("Recovery loop crashed")
		}
	}()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReviveOrphans(ctx, 20)
		}
	}
}

func shutdown(srv *http.Server, pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to shutdown HTTP-server")
	}

	// Closing Kafka connection:
	if err := pub.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-writer")
	}
	zlog.Logger.Info().Msg("Kafka-producer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}

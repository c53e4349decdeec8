package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rafimuhammad01/dispatch-app/auth"
	"github.com/rafimuhammad01/dispatch-app/config"
	ihttp "github.com/rafimuhammad01/dispatch-app/http"
	ikafka "github.com/rafimuhammad01/dispatch-app/kafka"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

func main() {
	// config
	configPath := flag.String("env_file", "./config/development.yaml", "define the environment file path")
	flag.Parse()
	config.SetFromFile(*configPath)

	// log setup
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if config.Get().Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// app related
	done := make(chan os.Signal, 1)
	ctx := context.Background()
	dep := InitDependency()
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	// server definition
	srv := NewHTTPServer(dep)

	// start server
	go func() {
		log.Info().Any("port", srv.Addr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start http server")
		}
	}()

	// graceful shutdown
	<-done
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("stopping http server")
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown http server")
		} else {
			log.Info().Msg("http server stopped")
		}
	}()
	wg.Wait()

	if err := dep.Writer.Close(); err != nil {
		log.Error().Err(err).Msg("failed to flush kafka writer")
	}
}

type Dependency struct {
	Writer      *kafka.Writer
	Publisher   *ikafka.Publisher
	HTTPHandler *ihttp.LocationHandler
}

func InitDependency() *Dependency {
	writer := NewKafkaWriter()
	publisher := ikafka.NewPublisher(ikafka.WithWriter(writer))

	var authenticator ihttp.Authenticator
	if config.Get().Auth.Enabled {
		authenticator = auth.NewJWTAuthorizer(config.Get().Auth.JWTSecret, 0)
	}
	httpHandler := ihttp.NewLocationHandler(publisher, authenticator)

	return &Dependency{
		Writer:      writer,
		Publisher:   publisher,
		HTTPHandler: httpHandler,
	}
}

func NewHTTPServer(d *Dependency) *http.Server {
	port := ":" + config.Get().HTTP.GatewayPort
	srv := &http.Server{
		Addr:    port,
		Handler: d.HTTPHandler,
	}

	return srv
}

func NewKafkaWriter() *kafka.Writer {
	cfg := config.Get().Kafka
	dialer, err := ikafka.NewDialer(cfg.Connection.Username, cfg.Connection.Password, cfg.Connection.TLS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start kafka producer")
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  cfg.Connection.Brokers,
		Topic:    cfg.Consumer.LocationTopic,
		Balancer: &kafka.Hash{},
		Dialer:   dialer,
	})

	return w
}

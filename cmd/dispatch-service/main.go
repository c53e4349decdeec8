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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rafimuhammad01/dispatch-app/auth"
	"github.com/rafimuhammad01/dispatch-app/config"
	"github.com/rafimuhammad01/dispatch-app/dispatch"
	ihttp "github.com/rafimuhammad01/dispatch-app/http"
	ikafka "github.com/rafimuhammad01/dispatch-app/kafka"
	"github.com/rafimuhammad01/dispatch-app/metrics"
	"github.com/rafimuhammad01/dispatch-app/rabbitmq"
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
	ctx, stopConsumers := context.WithCancel(context.Background())
	dep := InitDependency()
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	// server definition
	srv := NewHTTPServer(dep)
	locationReader := NewKafkaReader(config.Get().Kafka.Consumer.LocationTopic)
	consumers := []func(){
		func() { dep.KafkaHandler.ListenLocations(ctx, locationReader) },
	}
	closers := []func() error{locationReader.Close}

	switch config.Get().OrderEvents.Source {
	case config.SourceKafka:
		orderReader := NewKafkaReader(config.Get().Kafka.Consumer.OrderTopic)
		consumers = append(consumers, func() { dep.KafkaHandler.ListenOrders(ctx, orderReader) })
		closers = append(closers, orderReader.Close)
	case config.SourceRabbitMQ:
		consumer, err := rabbitmq.Dial(config.Get().RabbitMQ.URL, config.Get().RabbitMQ.Exchange, dep.Hub)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start rabbitmq consumer")
		}
		consumers = append(consumers, func() {
			if err := consumer.Listen(ctx); err != nil {
				log.Error().Err(err).Msg("rabbitmq consumer stopped")
			}
		})
		closers = append(closers, consumer.Close)
	}

	// start server
	dep.Hub.Start()
	go func() {
		log.Info().Any("port", srv.Addr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start http server")
		}
	}()

	var consumersWG sync.WaitGroup
	for _, consume := range consumers {
		consumersWG.Add(1)
		go func(consume func()) {
			defer consumersWG.Done()
			consume()
		}(consume)
	}
	log.Info().Int("consumers", len(consumers)).Str("order_events", config.Get().OrderEvents.Source).Msg("consumers started")

	// graceful shutdown
	<-done
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		log.Info().Msg("stopping http server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown http server")
		} else {
			log.Info().Msg("http server stopped")
		}
	}()

	go func() {
		defer wg.Done()
		log.Info().Msg("stopping consumers")
		stopConsumers()
		consumersClosed := make(chan struct{})
		go func() {
			consumersWG.Wait()
			for _, c := range closers {
				if err := c(); err != nil {
					log.Error().Err(err).Msg("failed to close consumer")
				}
			}
			close(consumersClosed)
		}()

		select {
		case <-shutdownCtx.Done():
			log.Error().Err(shutdownCtx.Err()).Msg("failed to shutdown consumers")
		case <-consumersClosed:
			log.Info().Msg("consumers stopped")
		}
	}()
	wg.Wait()

	// websocket clients are hijacked connections, Shutdown does not wait for them
	dep.Hub.Stop()
}

type Dependency struct {
	Hub          *dispatch.Hub
	Registry     *prometheus.Registry
	HTTPHandler  *ihttp.Handler
	KafkaHandler *ikafka.Handler
}

func InitDependency() *Dependency {
	cfg := config.Get()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hubOpts := []dispatch.Option{
		dispatch.WithObserver(metrics.NewCollector(registry)),
		dispatch.WithStaleAfter(cfg.Dispatch.StaleAfter),
		dispatch.WithSweepInterval(cfg.Dispatch.SweepInterval),
		dispatch.WithNearbyRadius(cfg.Dispatch.NearbyRadiusMeters),
	}
	socketOpts := []ihttp.SocketOption{
		ihttp.WithSendBuffer(cfg.Dispatch.SendBuffer),
	}
	if cfg.Auth.Enabled {
		authorizer := auth.NewJWTAuthorizer(cfg.Auth.JWTSecret, 0)
		hubOpts = append(hubOpts, dispatch.WithAuthorizer(authorizer))
		socketOpts = append(socketOpts, ihttp.WithAuthenticator(authorizer))
	}

	hub := dispatch.NewHub(hubOpts...)
	socketHandler := ihttp.NewSocketHandler(hub, socketOpts...)
	httpHandler := ihttp.NewHandler(hub, socketHandler, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	kafkaHandler := ikafka.NewHandler(hub, hub)

	return &Dependency{
		Hub:          hub,
		Registry:     registry,
		HTTPHandler:  httpHandler,
		KafkaHandler: kafkaHandler,
	}
}

func NewHTTPServer(d *Dependency) *http.Server {
	port := ":" + config.Get().HTTP.DispatchPort
	srv := &http.Server{
		Addr:    port,
		Handler: d.HTTPHandler,
	}

	return srv
}

func NewKafkaReader(topic string) *kafka.Reader {
	cfg := config.Get().Kafka
	dialer, err := ikafka.NewDialer(cfg.Connection.Username, cfg.Connection.Password, cfg.Connection.TLS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start kafka consumer")
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Connection.Brokers,
		Topic:       topic,
		MinBytes:    cfg.Consumer.MinBytes,
		MaxBytes:    cfg.Consumer.MaxBytes,
		Dialer:      dialer,
		StartOffset: kafka.LastOffset,
		GroupID:     cfg.Consumer.GroupID(),
	})

	return r
}

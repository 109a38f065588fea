package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"roadassist/internal/config"
	"roadassist/internal/gateway"
	"roadassist/internal/lifecycle"
	"roadassist/internal/notification"
	"roadassist/internal/region"
	"roadassist/internal/reporting"
	"roadassist/internal/resources"
	"roadassist/internal/roles"
	"roadassist/internal/store"
	"roadassist/pkg/messaging"
)

func main() {
	cfg := config.Load()

	var publisher lifecycle.Publisher
	if cfg.NATSUrl != "" {
		msgClient, err := messaging.NewClient(messaging.Config{
			URL:            cfg.NATSUrl,
			Name:           "roadassist-server",
			ReconnectWait:  time.Second,
			MaxReconnects:  60,
			ConnectTimeout: 10 * time.Second,
		})
		if err != nil {
			log.Fatalf("connect to NATS: %v", err)
		}
		defer msgClient.Close()
		publisher = msgClient
	}

	var notifier lifecycle.Notifier
	if cfg.SMSEndpoint != "" {
		var deliveryLog *notification.DeliveryLog
		if cfg.RedisURL != "" {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				log.Fatalf("parse redis url: %v", err)
			}
			deliveryLog = notification.NewDeliveryLog(redis.NewClient(opts))
		}
		notifier = notification.NewSMSGateway(cfg.SMSEndpoint, cfg.SMSApiKey, cfg.SMSSender, deliveryLog)
	}

	var audit lifecycle.Store
	if cfg.DatabaseURL != "" {
		auditStore, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open audit store: %v", err)
		}
		defer auditStore.Close()
		if err := auditStore.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("ensure audit schema: %v", err)
		}
		audit = auditStore
	}

	directory := roles.NewDirectory()
	engine := lifecycle.NewEngine(directory, lifecycle.Config{
		MaxImageBytes: cfg.MaxImageMB << 20,
	}, notifier, publisher, audit)
	catalog := resources.NewCatalog()

	country, err := bootstrapRegions(engine)
	if err != nil {
		log.Fatalf("bootstrap regions: %v", err)
	}

	tokens := roles.NewTokenService(cfg.JWTSecret, 24*time.Hour)
	gw := gateway.NewGateway(gateway.Config{Debug: cfg.Debug},
		directory, engine, catalog, tokens, reporting.NewGenerator(engine), country)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      gw.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// bootstrapRegions builds the region tree and registers a resource pool for
// every county. Region data is seeded here until an admin surface exists.
func bootstrapRegions(engine *lifecycle.Engine) (*region.Region, error) {
	country := region.NewCountry("Iran")
	provinces := map[string][]string{
		"Tehran":  {"Shemiran", "Damavand", "Rey"},
		"Isfahan": {"Khansar", "Kashan"},
	}
	for name, counties := range provinces {
		province, err := country.AddProvince(name)
		if err != nil {
			return nil, err
		}
		for _, countyName := range counties {
			county, err := province.AddCounty(countyName)
			if err != nil {
				return nil, err
			}
			if _, err := engine.RegisterCounty(county); err != nil {
				return nil, err
			}
		}
	}
	return country, nil
}

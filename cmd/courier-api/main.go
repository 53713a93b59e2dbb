// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courier/internal/config"
	httptransport "courier/internal/http"
	"courier/internal/infra"
	"courier/internal/maps"
	"courier/internal/modules/location"
	"courier/internal/modules/notify"
	"courier/internal/modules/order"
	"courier/internal/modules/pricing"
	"courier/internal/modules/search"
	"courier/internal/modules/tracking"
	"courier/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("COURIER_FIREBASE_PROJECT_ID is required")
	}
	fb, err := infra.NewFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	settingsProvider := settings.NewCache(settings.NewStore(dbPool), cfg.Search.CacheTTL)
	searchSettings := search.NewSettings(settingsProvider, cfg.Search)

	var geocoder pricing.Geocoder
	if cfg.Maps.APIKey != "" {
		geocoder, err = maps.NewGeocodeService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
	}
	pricingSvc := pricing.NewService(geocoder)

	locationStore := location.NewStore(redisClient)
	locationSvc := location.NewService(locationStore)

	notifier := notify.NewDispatcher(fb.Messaging, locationStore)

	orderStore := order.NewStore(dbPool, redisClient)
	orderSvc := order.NewService(orderStore, pricingSvc, notifier, locationSvc, searchSettings)

	searchTimer := search.NewTimer(orderSvc, searchSettings)
	feed := tracking.NewRedisFeed(redisClient)
	synchronizer := tracking.NewSynchronizer(feed, orderStore, searchTimer)

	handler := httptransport.NewRouter(httptransport.ServerDeps{
		Order:    orderSvc,
		Location: locationSvc,
		Tracking: synchronizer,
		Verifier: fb,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

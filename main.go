package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"photohunter/config"
	"photohunter/handlers"
	"photohunter/middleware"
	"photohunter/repository"
	"photohunter/services"
)

type stores struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	pictures  repository.PictureRepository
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load()
	if err != nil {
		glog.Exitf("Error loading configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.HealthCheck{}
	var st stores

	switch cfg.Store {
	case config.StoreMemory:
		glog.Warningf("Using the in-memory store, data is lost on restart")
		mem := repository.NewMemoryStore()
		st = stores{mem.Users(), mem.Locations(), mem.Pictures()}
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		mongoStore, err := repository.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		cancel()
		if err != nil {
			glog.Exitf("MongoDB unavailable: %v", err)
		}
		defer mongoStore.Disconnect(context.Background())
		st = stores{mongoStore.Users(), mongoStore.Locations(), mongoStore.Pictures()}
		checks["mongodb"] = mongoStore.Ping
	}

	// Redis
	var geoIndex services.GeoIndex
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			glog.Warningf("Redis unavailable, running without cache and geo index: %v", err)
		} else {
			st.users = repository.NewCachedUsers(st.users, redisClient, cfg.UserCacheTTL)
			redisIndex := services.NewRedisGeoIndex(redisClient)
			if err := redisIndex.Rebuild(ctx, st.locations); err != nil {
				glog.Warningf("Failed to build the geo index, box queries use the store: %v", err)
			} else {
				geoIndex = redisIndex
			}
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}

	var images services.ImageHost
	if cfg.GCSBucket != "" {
		gcs, err := services.NewGCSImageHost(ctx, cfg.GCSBucket)
		if err != nil {
			glog.Exitf("Image host unavailable: %v", err)
		}
		defer gcs.Close()
		images = gcs
	} else {
		glog.Warningf("GCS_BUCKET is not set, image uploads are disabled")
	}

	var mailer services.Mailer = services.LogMailer{}
	if cfg.SendgridAPIKey != "" {
		mailer = services.NewSendgridMailer(cfg.SendgridAPIKey, cfg.MailFrom)
	}

	var oauth services.OAuthProvider
	if cfg.GoogleClientID != "" {
		oauth = services.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	}

	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	userService := services.NewUserService(services.UserServiceDeps{
		Users:                    st.users,
		Locations:                st.locations,
		Tokens:                   tokens,
		Mailer:                   mailer,
		OAuth:                    oauth,
		RequireEmailVerification: cfg.RequireEmailVerification,
		BaseURL:                  cfg.BaseURL,
	})
	locationService := services.NewLocationService(services.LocationServiceDeps{
		Locations:     st.locations,
		Pictures:      st.pictures,
		Users:         st.users,
		Images:        images,
		Geo:           geoIndex,
		BoxHalfSideKm: cfg.GeoBoxKm,
	})

	if err := middleware.RegisterMetrics(); err != nil {
		glog.Warningf("Failed to register metrics views: %v", err)
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.RouterDeps{
			Users:          userService,
			Locations:      locationService,
			Tokens:         tokens,
			AllowedOrigins: cfg.AllowedOrigins,
			HealthChecks:   checks,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		glog.Infof("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("Server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	glog.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("Graceful shutdown failed: %v", err)
	}
	userService.Wait()
}

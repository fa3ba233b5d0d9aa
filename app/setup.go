package app

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sahilchouksey/uniportal-api/api"
	"github.com/sahilchouksey/uniportal-api/config"
	"github.com/sahilchouksey/uniportal-api/database"
	"github.com/sahilchouksey/uniportal-api/router"
	"github.com/sahilchouksey/uniportal-api/services"
	"github.com/sahilchouksey/uniportal-api/services/cron"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/services/studyplan"
	"github.com/sahilchouksey/uniportal-api/services/videohost"
	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/auth"
	"github.com/sahilchouksey/uniportal-api/utils/cache"
	"github.com/sahilchouksey/uniportal-api/utils/middleware"
)

const mb = 1024 * 1024

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}
	if getEnv.JWT_SECRET == "" {
		return fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	log, err := utils.NewLogger(getEnv.LOG_MODE)
	if err != nil {
		return err
	}
	defer log.Sync()

	// Initialize GORM database connection
	store, err := database.StartGORM(log)
	if err != nil {
		log.Error("check whether the database is running", "driver", getEnv.DB_DRIVER)
		return err
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	db := store.GetDB()

	// Redis is optional: without it details are not cached, login attempts are
	// not throttled and cron ticks are not coordinated between replicas.
	redisCache, err := cache.NewRedisCache(getEnv.REDIS_URL)
	if err != nil {
		log.Warn("redis unavailable, continuing without cache", "error", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	fileStore, err := newFileStore(getEnv)
	if err != nil {
		return err
	}

	var aggregator *studyplan.Aggregator
	cacheTTL := time.Duration(getEnv.CACHE_TTL_SECONDS) * time.Second
	if redisCache != nil {
		aggregator = studyplan.NewAggregator(db, redisCache, cacheTTL, log)
	} else {
		aggregator = studyplan.NewAggregator(db, nil, cacheTTL, log)
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        getEnv.JWT_SECRET,
		Expiry:        time.Duration(getEnv.JWT_EXPIRY_MINUTES) * time.Minute,
		RefreshExpiry: time.Duration(getEnv.JWT_REFRESH_EXPIRY_HOURS) * time.Hour,
		Issuer:        getEnv.JWT_ISSUER,
	})

	maxUpload := int64(getEnv.MAX_UPLOAD_MB) * mb
	maxVideo := int64(getEnv.MAX_VIDEO_UPLOAD_MB) * mb

	var videoService *services.VideoService
	hostClient := videohost.NewClient(videohost.Config{
		BaseURL: getEnv.VIDEO_HOST_BASE_URL,
		Token:   getEnv.VIDEO_HOST_TOKEN,
	})
	if hostClient.Configured() {
		videoService = services.NewVideoService(db, hostClient, log.With("component", "videos"), maxVideo)
	} else {
		log.Warn("VIDEO_HOST_BASE_URL not set, video uploads are disabled")
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if getEnv.CRON_ENABLED {
		opts := cron.Options{
			Tokens: auth.NewBlacklistService(db),
			Log:    log.With("component", "cron"),
		}
		if videoService != nil {
			opts.Videos = videoService
		}
		if redisCache != nil {
			opts.Lock = redisCache
		}
		cronManager = cron.NewCronManager(db, opts)
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			log.Warn("failed to start cron jobs", "error", err)
			cronManager = nil
		}
	}
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
	}()

	// Init API. The body limit fits a video plus its form fields.
	bodyLimit := maxVideo
	if maxUpload > bodyLimit {
		bodyLimit = maxUpload
	}
	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT), int(bodyLimit+mb), log)

	uploadRoot := ""
	if local, ok := fileStore.(*storage.LocalStore); ok {
		uploadRoot = local.Root()
	}

	router.SetupRoutes(server.GetEngine(), router.Deps{
		DB:             db,
		Log:            log,
		JWT:            jwtManager,
		Redis:          redisCache,
		Store:          fileStore,
		Aggregator:     aggregator,
		Faculties:      services.NewFacultyService(db, fileStore, aggregator, log, maxUpload),
		Videos:         videoService,
		Dashboard:      services.NewDashboardService(db),
		MaxUploadBytes: maxUpload,
		UploadRoot:     uploadRoot,
		Security: middleware.SecurityConfig{
			AllowedOrigins:    getEnv.ALLOWED_ORIGINS,
			RateLimitRequests: getEnv.RATE_LIMIT_REQUESTS,
			RateLimitWindow:   time.Minute,
			AccessLog:         true,
		},
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	// Get the PORT & Start the Server
	return server.Run()
}

// newFileStore picks the upload backend from STORAGE_DRIVER.
func newFileStore(env *config.EnviornmentVariable) (storage.FileStore, error) {
	switch env.STORAGE_DRIVER {
	case "local":
		root, err := filepath.Abs(env.UPLOAD_ROOT)
		if err != nil {
			return nil, err
		}
		return storage.NewLocalStore(root), nil
	case "spaces":
		return storage.NewSpacesStore(storage.SpacesConfig{
			AccessKey: env.DO_SPACES_ACCESS_KEY,
			SecretKey: env.DO_SPACES_SECRET_KEY,
			Bucket:    env.DO_SPACES_BUCKET,
			Region:    env.DO_SPACES_REGION,
			Endpoint:  env.DO_SPACES_ENDPOINT,
			CDNURL:    env.DO_SPACES_CDN_URL,
		})
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", env.STORAGE_DRIVER)
	}
}

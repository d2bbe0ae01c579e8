// Package api contains all endpoints available
package api

import (
	"fmt"
	"time"

	"anonfiles/share-api/db"
	"anonfiles/share-api/internal/binding"
	"anonfiles/share-api/internal/meta"
	"anonfiles/share-api/internal/notify"
	"anonfiles/share-api/internal/settings"
	"anonfiles/share-api/internal/share"
	"anonfiles/share-api/internal/stager"
	"anonfiles/share-api/internal/storage"
	"anonfiles/share-api/middleware"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	ginzap "github.com/gin-contrib/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var store = persist.NewMemoryStore(time.Minute)

type API struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Blobs    storage.Backend
	Stager   *stager.Stager
	Cons     *share.Consolidator
	Gate     *share.Gate
	Reaper   *share.Reaper
	Notifier notify.Notifier
	Bindings *binding.Store
	Settings *settings.Store
}

func NewRouter() (*API, error) {
	a := &API{}

	makeLogger()

	gdb, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite database, %w", err)
	}
	a.DB = gdb

	root := viper.GetString("storage.root")

	// Staging always happens on local disk, only consolidated share
	// units follow storage.type
	local, err := storage.NewLocal(root)
	if err != nil {
		return nil, err
	}

	a.Blobs = local
	if viper.GetString("storage.type") == "s3" {
		s3, err := storage.NewS3()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 backend, %w", err)
		}
		a.Blobs = s3
	}

	if viper.GetBool("telegram.enabled") {
		a.Notifier = notify.NewTelegram(viper.GetString("telegram.bot_token"))
	} else {
		a.Notifier = notify.Nop{}
	}

	records := meta.NewStore(a.Blobs)

	a.Stager = stager.New(root)
	a.Bindings = binding.NewStore(gdb)
	a.Settings = settings.NewStore(gdb)
	a.Cons = share.NewConsolidator(a.Stager, a.Blobs, records)
	a.Reaper = share.NewReaper(a.Blobs, records, a.Cons)
	a.Gate = share.NewGate(a.Blobs, records, a.Notifier, a.Bindings, a.Reaper, viper.GetBool("gate.serialize_counters"))

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	a.Router.MaxMultipartMemory = 5 << 20

	adminAuth := middleware.NewAdminAuthMiddleware()
	maxUploadSize := viper.GetInt64("upload.max_size")

	main := router.Group("/api")
	{
		// POST /api/upload		-> Stages one file into an upload session
		main.POST("/upload", middleware.BodySizeLimiter(maxUploadSize), a.Upload)

		// POST /api/consolidate	-> Turns a session into a share link
		main.POST("/consolidate", middleware.BodySizeLimiter(1<<20), a.Consolidate)

		// GET /api/file-info/:tag	-> Lists the files behind a share link
		main.GET("/file-info/:tag", a.FileInfo)

		// POST /api/file-info/:tag	-> Standalone password probe
		main.POST("/file-info/:tag", middleware.BodySizeLimiter(1<<20), a.FileInfoProbe)

		// POST /api/download/:tag/:file -> Gated download of one file
		main.POST("/download/:tag/:file", middleware.BodySizeLimiter(1<<20), a.FileDownload)

		// GET /api/settings		-> Public settings for the upload form
		main.GET("/settings", cacheFor(30), a.SettingsFetch)
	}

	admin := main.Group("/admin", middleware.BodySizeLimiter(1<<20))
	{
		// POST /api/admin/login	-> Issues the admin session cookie
		admin.POST("/login", a.AdminLogin)

		// GET /api/admin/check-auth	-> Validates the admin cookie
		admin.GET("/check-auth", adminAuth, a.AdminCheckAuth)

		// GET /api/admin/settings	-> Reads the global settings
		admin.GET("/settings", adminAuth, a.AdminSettingsFetch)

		// POST /api/admin/settings	-> Updates the global settings
		admin.POST("/settings", adminAuth, a.AdminSettingsUpdate)

		// GET /api/admin/links		-> Lists every share unit
		admin.GET("/links", adminAuth, a.AdminLinksFetch)

		// DELETE /api/admin/links	-> Deletes a share unit wholesale
		admin.DELETE("/links", adminAuth, a.AdminLinkDelete)
	}

	telegram := main.Group("/telegram", middleware.BodySizeLimiter(1<<20))
	{
		// POST /api/telegram/generate-ref -> Issues a bot deep link + tag triple
		telegram.POST("/generate-ref", a.TelegramGenerateRef)

		// GET /api/telegram/status	-> Polled by the upload form until the
		// deep link is redeemed, returns the bound chatId
		telegram.GET("/status", a.TelegramStatus)

		// POST /api/telegram/webhook	-> Bot command updates
		telegram.POST("/webhook", a.TelegramWebhook)
	}

	a.Reaper.Start(viper.GetDuration("reaper.interval"))

	return a, nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()

	if level, err := zapcore.ParseLevel(viper.GetString("app.log_level")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}

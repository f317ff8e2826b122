package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	modauth "github.com/dmitrymomot/authkit/modules/auth"
	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/auth/pgstore"
	"github.com/dmitrymomot/authkit/pkg/config"
	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/httpserver"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/pg"
	"github.com/dmitrymomot/authkit/pkg/redis"
)

type appConfig struct {
	Name        string `env:"APP_NAME" envDefault:"authkit"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	SessionSecret string        `env:"SESSION_SECRET,required"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	LinkingTTL    time.Duration `env:"LINKING_TTL" envDefault:"10m"`
}

func main() {
	var (
		appCfg     appConfig
		pgCfg      pg.Config
		redisCfg   redis.Config
		moduleCfg  modauth.Config
		googleCfg  auth.GoogleOAuthConfig
		githubCfg  auth.GitHubOAuthConfig
		discordCfg auth.DiscordOAuthConfig
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&moduleCfg)
	config.MustLoad(&googleCfg)
	config.MustLoad(&githubCfg)
	config.MustLoad(&discordCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Environment, appCfg.Name))
	logger.SetAsDefault(log)

	ctx := context.Background()

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.Error("failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		log.Error("failed to apply migrations", logger.Error(err))
		os.Exit(1)
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		log.Error("failed to connect to redis", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	issuer, err := auth.NewIssuer(appCfg.SessionSecret,
		auth.WithSessionTTL(appCfg.SessionTTL),
		auth.WithLinkingTTL(appCfg.LinkingTTL),
	)
	if err != nil {
		log.Error("failed to initialize credential issuer", logger.Error(err))
		os.Exit(1)
	}

	svc := auth.NewService(
		pgstore.New(pool),
		issuer,
		[]auth.ProviderAdapter{
			auth.NewGoogleAdapter(googleCfg),
			auth.NewGitHubAdapter(githubCfg),
			auth.NewDiscordAdapter(discordCfg),
		},
		auth.WithLogger(log),
		auth.WithReplayGuard(auth.NewRedisReplayGuard(redisClient)),
	)

	handler := modauth.NewHandler(svc, cookie.New(), moduleCfg, modauth.WithLogger(log))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Mount("/api/auth", modauth.Router(handler))

	srv := httpserver.New(
		httpserver.WithAddr(appCfg.HTTPAddr),
		httpserver.WithReadTimeout(10*time.Second),
		httpserver.WithWriteTimeout(30*time.Second),
		httpserver.WithIdleTimeout(120*time.Second),
	)

	log.Info("starting server", "addr", appCfg.HTTPAddr, "env", appCfg.Environment)
	if err := srv.Run(ctx, r); err != nil {
		log.Error("server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

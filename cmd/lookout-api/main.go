// README: Entry point; loads config, wires the targeting pipeline, serves the session API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"lookout/internal/ai"
	"lookout/internal/catalog"
	"lookout/internal/config"
	httptransport "lookout/internal/http"
	"lookout/internal/http/handlers"
	"lookout/internal/infra"
	"lookout/internal/maps"
	"lookout/internal/modules/aiusage"
	"lookout/internal/modules/session"
	"lookout/internal/modules/targeting"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	redisClient, err := infra.NewRedis(ctx, cfg.Redis.URL, cfg.Redis.Addr)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	checks := map[string]handlers.Checker{"redis": redisChecker{redisClient}}

	var quota *aiusage.Service
	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer dbPool.Close()
		quota = aiusage.NewService(aiusage.NewStore(dbPool))
		checks["postgres"] = dbChecker{dbPool}
	} else {
		log.Print("LOOKOUT_DB_DSN not set; enrichment quota disabled")
	}

	var verifier infra.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
	} else {
		log.Print("LOOKOUT_FIREBASE_PROJECT_ID not set; authentication disabled")
	}

	provider, err := catalogProvider(cfg)
	if err != nil {
		return err
	}
	catalogClient := catalog.NewClient(provider, cfg.Catalog.Limit)

	llm, closeLLM, err := llmProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLLM()

	store := session.NewStore(redisClient, cfg.Redis.SnapshotTTL)
	deps := session.Deps{
		Catalog:   catalogClient,
		Loader:    targeting.NewLoader(catalogClient, summarizer(llm)),
		Publisher: store,
		Defaults: session.Config{
			RadiusM:    cfg.Targeting.RadiusM,
			ThresholdM: cfg.Targeting.ThresholdM,
			Tolerance:  cfg.Targeting.Tolerance,
			Enrich:     cfg.Targeting.Enrich,
		},
	}
	if llm != nil && quota != nil {
		deps.LoaderFor = func(owner string) session.DetailLoader {
			return targeting.NewLoader(catalogClient, aiusage.Guard(quota, llm, owner))
		}
	}
	registry := session.NewRegistry(ctx, deps)
	defer registry.Close()

	sessionDeps := handlers.SessionDeps{
		Sessions: registry,
		Events:   store,
		LLM:      llm,
	}
	if quota != nil {
		sessionDeps.Quota = quota
	}
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey, cfg.Maps.Language)
		if err != nil {
			return err
		}
		sessionDeps.Routes = routes
	}

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Verifier: verifier,
		Sessions: sessionDeps,
		Checks:   checks,
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s (catalog=%s)", cfg.HTTP.Addr, cfg.Catalog.Provider)
		return server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Print("shutting down")
		registry.Close()
		return server.Shutdown(context.Background())
	})
	return g.Wait()
}

func catalogProvider(cfg config.Config) (catalog.Provider, error) {
	if cfg.Catalog.Provider == "places" {
		return maps.NewPlacesService(cfg.Maps.APIKey, maps.PlacesOptions{
			PlaceType:       cfg.Maps.PlaceType,
			Language:        cfg.Maps.Language,
			ExcludeKeywords: cfg.Maps.ExcludeKeywords,
		})
	}
	return catalog.NewWikipediaProvider(cfg.Catalog.Endpoint, cfg.Catalog.UserAgent, cfg.Catalog.Timeout), nil
}

// llmProvider returns nil when no key is configured.
func llmProvider(ctx context.Context, cfg config.Config) (ai.LLMProvider, func(), error) {
	noop := func() {}
	key := cfg.AIKey()
	if key == "" {
		log.Print("no AI key configured; enrichment disabled")
		return nil, noop, nil
	}
	if strings.EqualFold(cfg.AI.Provider, "chatgpt") {
		p, err := ai.NewChatGPTProvider(key, cfg.AI.OpenAIEndpoint)
		if err != nil {
			return nil, noop, err
		}
		return p, noop, nil
	}
	p, err := ai.NewGeminiProvider(ctx, key)
	if err != nil {
		return nil, noop, err
	}
	return p, p.Close, nil
}

// summarizer keeps a nil provider a nil interface so the loader skips enrichment.
func summarizer(llm ai.LLMProvider) targeting.Summarizer {
	if llm == nil {
		return nil
	}
	return llm
}

type dbChecker struct{ pool *pgxpool.Pool }

func (d dbChecker) Check(ctx context.Context) error { return d.pool.Ping(ctx) }

type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

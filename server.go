package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soumitsalman/eventsack/feeds"
	"github.com/soumitsalman/eventsack/nlp"
	"github.com/soumitsalman/eventsack/sdk"
	"github.com/soumitsalman/eventsack/store"
	"golang.org/x/time/rate"
)

// POST /scan
// POST /ingest
// GET /healthz
// GET /metrics

const _ERROR_MESSAGE = "malformed request body"

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type handlers struct {
	svc *sdk.Service
}

func (h *handlers) scanHandler(ctx *gin.Context) {
	var req sdk.ScanRequest
	// an empty body is a scan of the stored backlog over the default window
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: _ERROR_MESSAGE, Details: err.Error()})
		return
	}
	result, err := h.svc.Scan(ctx.Request.Context(), req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (h *handlers) ingestHandler(ctx *gin.Context) {
	var req sdk.IngestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: _ERROR_MESSAGE, Details: err.Error()})
		return
	}
	if req.Events == nil {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: _ERROR_MESSAGE, Details: "'events' must be an array"})
		return
	}
	result, err := h.svc.Ingest(ctx.Request.Context(), req.Events)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func healthHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(ctx *gin.Context, err error) {
	var validation sdk.ValidationError
	if errors.As(err, &validation) {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request", Details: validation.Error()})
		return
	}
	log.Printf("[server] %s %s failed. %v\n", ctx.Request.Method, ctx.Request.URL.Path, err)
	ctx.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error", Details: err.Error()})
}

func initializeRateLimiter(limit float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	return func(ctx *gin.Context) {
		if limiter.Allow() {
			ctx.Next()
		} else {
			ctx.AbortWithStatus(http.StatusTooManyRequests)
		}
	}
}

func newServer(svc *sdk.Service, cfg ServerConfig) *gin.Engine {
	h := &handlers{svc: svc}
	router := gin.Default()
	router.GET("/healthz", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	group := router.Group("/")
	group.Use(initializeRateLimiter(cfg.RateLimit, cfg.RateBurst))
	// TODO: put these under auth once tenant management issues service tokens
	group.POST("/scan", h.scanHandler)
	group.POST("/ingest", h.ingestHandler)
	return router
}

type closableStore interface {
	sdk.Store
	Close(ctx context.Context) error
}

func openStore(ctx context.Context, cfg StoreConfig) (closableStore, error) {
	switch cfg.Driver {
	case POSTGRES:
		return store.NewPostgresStore(ctx, cfg.ConnectionString, cfg.MaxConns, cfg.DedupeBriefs)
	case MONGO:
		return store.NewMongoStore(ctx, cfg.ConnectionString, cfg.Database, cfg.DedupeBriefs)
	default:
		log.Println("[server] no database configured, using the in-memory store")
		return store.NewMemoryStore(cfg.DedupeBriefs), nil
	}
}

// newClassifier returns nil when no completion service is configured, which
// leaves both classifier stages on their fallbacks.
func newClassifier(cfg LLMConfig) sdk.Classifier {
	if cfg.APIKey == "" {
		log.Println("[server] LLMSERVICE_API_KEY is not set, classifier runs on fallbacks")
		return nil
	}
	llm, err := nlp.NewLLM(cfg.BaseURL, cfg.Model, cfg.APIKey)
	if err != nil {
		log.Println("[server] classifier runs on fallbacks.", err)
		return nil
	}
	return nlp.NewClassifierClient(llm,
		nlp.WithRetries(cfg.Retries, cfg.RetryDelay),
		nlp.WithCallTimeout(cfg.Timeout))
}

func newService(cfg *Config, st sdk.Store, classifier sdk.Classifier) *sdk.Service {
	return sdk.NewService(st, classifier,
		sdk.WithFailurePolicy(sdk.FailurePolicy(cfg.Classifier.FailurePolicy)),
		sdk.WithTrade(cfg.Classifier.Trade),
		sdk.WithCompetitors(cfg.Classifier.Competitors),
		sdk.WithClassifierBatchSize(cfg.Classifier.BatchSize),
		sdk.WithTokenBudget(nlp.NewTokenBudget(cfg.LLM.MaxPromptTokens, cfg.LLM.MaxDescriptionTokens)),
		sdk.WithFanout(cfg.Fanout.Workers, cfg.Fanout.WriteDelay),
		sdk.WithIngestBatches(cfg.Ingest.BatchSize, cfg.Ingest.BatchDelay),
		sdk.WithLease(*cfg.Store.Lease, cfg.Store.ClaimLimit),
		sdk.WithDefaultWindow(cfg.Scan.DefaultWindowDays),
		sdk.WithRegistry(feeds.NewRegistry(cfg.Sources)),
		sdk.WithFetcher(feeds.NewFetcher(cfg.Scan.FetchTimeout)),
	)
}

func main() {
	godotenv.Load()
	loader, err := NewConfigLoader(os.Getenv("EVENTSACK_CONFIG"))
	if err != nil {
		log.Fatalln("config not working", err)
	}
	cfg := loader.Config()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStore(ctx, cfg.Store)
	cancel()
	if err != nil {
		log.Fatalln("initialization not working", err)
	}
	defer st.Close(context.Background())

	svc := newService(cfg, st, newClassifier(cfg.LLM))
	// competitors and source labels follow the file without a restart
	loader.OnChange(func(updated *Config) {
		svc.SetCompetitors(updated.Classifier.Competitors)
		svc.Registry().Replace(updated.Sources)
	})
	stop, err := loader.Watch()
	if err != nil {
		log.Println("[server] config hot reload is off.", err)
	} else {
		defer stop()
	}

	if err := newServer(svc, cfg.Server).Run(":" + cfg.Server.Port); err != nil {
		log.Println("[server] stopped.", err)
	}
}

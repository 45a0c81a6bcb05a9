package handlers

import (
	"net/http"
	"sort"
	"time"

	"mint-sniper/agent/internal/metrics"
	"mint-sniper/agent/internal/models"
	"mint-sniper/shared/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WatchlistView is the read-only side of the watchlist store.
type WatchlistView interface {
	PendingCount() int
	SeenCount() int
	Snapshot() ([]models.WatchlistEntry, []string)
	Get(mint string) (models.WatchlistEntry, bool)
}

type entryResponse struct {
	Mint              string    `json:"mint"`
	BaselineMarketCap float64   `json:"baselineMcap"`
	PreviousMarketCap float64   `json:"prevMcap"`
	Ratio             float64   `json:"ratio"`
	AddedAt           time.Time `json:"addedAt"`
	NextPollAt        time.Time `json:"nextPollAt"`
	AgeSeconds        float64   `json:"ageSeconds"`
	State             string    `json:"state"`
}

func toResponse(e models.WatchlistEntry, now time.Time) entryResponse {
	ratio := 0.0
	if e.BaselineMarketCap > 0 {
		ratio = e.PreviousMarketCap / e.BaselineMarketCap
	}
	return entryResponse{
		Mint:              e.Mint,
		BaselineMarketCap: e.BaselineMarketCap,
		PreviousMarketCap: e.PreviousMarketCap,
		Ratio:             ratio,
		AddedAt:           e.AddedAt,
		NextPollAt:        e.NextPollAt,
		AgeSeconds:        now.Sub(e.AddedAt).Seconds(),
		State:             string(e.State),
	}
}

// NewRouter builds the gin engine with CORS and request logging.
func NewRouter(appLogger *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(appLogger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	router.Use(cors.New(corsConfig))
	return router
}

func requestLogger(appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		appLogger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func RegisterRoutes(router *gin.Engine, m *metrics.Metrics) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is running. Sniper active!"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))
}

func RegisterAPIRoutes(router *gin.Engine, appLogger *logger.Logger, view WatchlistView) {
	startedAt := time.Now()

	apiGroup := router.Group("/api/v1")
	{
		apiGroup.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":        "ok",
				"uptimeSeconds": int(time.Since(startedAt).Seconds()),
				"pending":       view.PendingCount(),
				"alerted":       view.SeenCount(),
			})
		})

		apiGroup.GET("/watchlist", func(c *gin.Context) {
			entries, seen := view.Snapshot()
			sort.Slice(entries, func(i, j int) bool { return entries[i].AddedAt.Before(entries[j].AddedAt) })

			now := time.Now()
			out := make([]entryResponse, 0, len(entries))
			for _, e := range entries {
				out = append(out, toResponse(e, now))
			}
			c.JSON(http.StatusOK, gin.H{"pending": out, "alerted": seen})
		})

		apiGroup.GET("/watchlist/:mint", func(c *gin.Context) {
			mint := c.Param("mint")
			e, ok := view.Get(mint)
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "mint is not on the watchlist"})
				return
			}
			c.JSON(http.StatusOK, toResponse(e, time.Now()))
		})
	}
	appLogger.Info("API routes registered under /api/v1")
}

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/orgai/internal/chat"
	"github.com/suPer8Hu/orgai/internal/common"
	"github.com/suPer8Hu/orgai/internal/corpus"
	"github.com/suPer8Hu/orgai/internal/httpapi/handlers"
	"github.com/suPer8Hu/orgai/internal/httpapi/middleware"
	"github.com/suPer8Hu/orgai/internal/metrics"
)

type Deps struct {
	Chat           *chat.Service
	Corpora        *corpus.Store
	Queue          handlers.QueueStats
	Stats          *metrics.Collector
	Logger         *slog.Logger
	AdminJWTSecret string
	AllowedOrigins []string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(d.AllowedOrigins))

	h := handlers.NewHandler(d.Chat, d.Corpora, d.Queue, d.Stats, d.Logger, d.AllowedOrigins)

	r.GET("/ping", h.Ping)
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Metrics)

	chatGroup := r.Group("/chat")
	chatGroup.POST("", h.Chat)
	chatGroup.POST("/stream", h.ChatStream)
	chatGroup.GET("/ws", h.ChatWS)
	chatGroup.POST("/clear", h.ClearChat)
	chatGroup.GET("/sessions/:user/history", h.History)
	chatGroup.GET("/sessions/:user/jobs", h.ListChatJobs)
	chatGroup.GET("/jobs/:job_id", h.GetChatJob)

	admin := r.Group("/admin")
	admin.Use(middleware.AdminRequired(d.AdminJWTSecret))
	admin.POST("/corpus/:mode/refresh", h.RefreshCorpus)

	return r
}

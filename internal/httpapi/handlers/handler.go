package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/suPer8Hu/orgai/internal/chat"
	"github.com/suPer8Hu/orgai/internal/common"
	"github.com/suPer8Hu/orgai/internal/corpus"
	"github.com/suPer8Hu/orgai/internal/metrics"
)

// QueueStats is the read side of the admission queue.
type QueueStats interface {
	Depth() int
	Running() string
}

type Handler struct {
	Svc      *chat.Service
	Corpora  *corpus.Store
	Queue    QueueStats
	Stats    *metrics.Collector
	Logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(svc *chat.Service, corpora *corpus.Store, q QueueStats, stats *metrics.Collector, logger *slog.Logger, allowedOrigins []string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Svc:     svc,
		Corpora: corpora,
		Queue:   q,
		Stats:   stats,
		Logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// Numeric envelope codes per client error code.
var envelopeCodes = map[string]int{
	chat.CodeInvalidRequest:      40001,
	chat.CodeInvalidMode:         40002,
	chat.CodeCanceled:            40801,
	chat.CodeInternal:            50001,
	chat.CodeUpstreamUnavailable: 50201,
	chat.CodeUpstreamError:       50202,
	chat.CodeUnavailable:         50301,
	chat.CodeTimeout:             50401,
}

var httpStatuses = map[string]int{
	chat.CodeInvalidRequest:      http.StatusBadRequest,
	chat.CodeInvalidMode:         http.StatusBadRequest,
	chat.CodeCanceled:            http.StatusRequestTimeout,
	chat.CodeInternal:            http.StatusInternalServerError,
	chat.CodeUpstreamUnavailable: http.StatusBadGateway,
	chat.CodeUpstreamError:       http.StatusBadGateway,
	chat.CodeUnavailable:         http.StatusServiceUnavailable,
	chat.CodeTimeout:             http.StatusGatewayTimeout,
}

// failErr writes err through the envelope without leaking internals.
func failErr(c *gin.Context, err error, data any) {
	code, msg := chat.Describe(err)
	status, ok := httpStatuses[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if data == nil {
		data = gin.H{"error": code}
	}
	common.FailWithData(c, status, envelopeCodes[code], msg, data)
}

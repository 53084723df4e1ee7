package http

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskwire/relay/internal/adapters/relay"
	"github.com/taskwire/relay/internal/app"
	"github.com/taskwire/relay/internal/config"
)

const usageBanner = `taskwire relay

WS   /api/ws   task relay endpoint (JSON frames, see protocol docs)
GET  /health   liveness summary
GET  /stats    per-room breakdown
`

// ClientTokenMiddleware hands every browser a stable token so
// reconnects can be correlated in logs. No authentication.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get("ct").(string)
		if token == "" {
			token = uuid.NewString()
			session.Set("ct", token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, broker *app.Broker, ctl *relay.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("TaskwireSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/health", healthHandler(broker))
	r.GET("/stats", statsHandler(broker))
	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusOK, usageBanner)
	})

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws relay endpoint hit")
		ctl.HandleRelay(ctx, c)
	})

	return r
}

type healthReply struct {
	Status           string    `json:"status"`
	ConnectedClients int       `json:"connectedClients"`
	TotalTasks       int       `json:"totalTasks"`
	Rooms            int       `json:"rooms"`
	UptimeSeconds    float64   `json:"uptime"`
	Timestamp        time.Time `json:"timestamp"`
}

func healthHandler(broker *app.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, healthReply{
			Status:           "ok",
			ConnectedClients: broker.Registry.Count(),
			TotalTasks:       broker.Tasks.Count(),
			Rooms:            broker.Rooms.Count(),
			UptimeSeconds:    broker.Uptime().Seconds(),
			Timestamp:        time.Now(),
		})
	}
}

type roomStat struct {
	Room  string `json:"room"`
	Users int    `json:"users"`
	Tasks int    `json:"tasks"`
}

type statsReply struct {
	Rooms         []roomStat `json:"rooms"`
	TotalClients  int        `json:"totalClients"`
	TotalTasks    int        `json:"totalTasks"`
	MemoryAllocMB float64    `json:"memoryAllocMB"`
	MemorySysMB   float64    `json:"memorySysMB"`
	UptimeSeconds float64    `json:"uptime"`
	Timestamp     time.Time  `json:"timestamp"`
}

func statsHandler(broker *app.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		names := broker.Rooms.Names()
		rooms := make([]roomStat, 0, len(names))
		for _, name := range names {
			rooms = append(rooms, roomStat{
				Room:  string(name),
				Users: broker.Rooms.MemberCount(name),
				Tasks: broker.Tasks.CountByRoom(name),
			})
		}

		c.JSON(http.StatusOK, statsReply{
			Rooms:         rooms,
			TotalClients:  broker.Registry.Count(),
			TotalTasks:    broker.Tasks.Count(),
			MemoryAllocMB: float64(mem.Alloc) / (1 << 20),
			MemorySysMB:   float64(mem.Sys) / (1 << 20),
			UptimeSeconds: broker.Uptime().Seconds(),
			Timestamp:     time.Now(),
		})
	}
}

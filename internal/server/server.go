package server

import (
	"context"
	"net/http"

	"cardledger/internal/auth"
	"cardledger/internal/card"
	"cardledger/internal/config"
	"cardledger/internal/ledger"
	"cardledger/internal/notify"
	"cardledger/internal/reader"
	"cardledger/internal/session"
	"cardledger/internal/staff"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
	events *notify.Service
}

func New(db *sqlx.DB, cfg *config.Config, events *notify.Service, rdr reader.Reader) *Server {
	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(MetricsMiddleware())

	staffRepo := staff.NewRepository(db)
	cardRepo := card.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)

	ledgerService := ledger.NewService(ledgerRepo)
	cardService := card.NewService(cardRepo, ledgerService, rdr)
	sessionService := session.NewService(
		staffRepo, cardRepo, ledgerService, rdr, events,
		cfg.RevertWindow, cfg.IdleTimeout,
	)

	staffHandler := staff.NewHandler(staffRepo)
	cardHandler := card.NewHandler(cardService)
	ledgerHandler := ledger.NewHandler(ledgerService, cfg.HistoryPageLimit)
	sessionHandler := session.NewHandler(sessionService)
	loginHandler := NewLoginHandler(cfg)

	// The station desk frontend is unauthenticated: it only sees touch
	// outcomes and the event feed, never the ledger. The limiter caps a
	// runaway bridge or polling loop.
	desk := router.Group("/")
	desk.Use(RateLimitMiddleware(10, 20))
	{
		desk.POST("/touch", sessionHandler.Touch)
		desk.GET("/session", sessionHandler.Current)
		desk.GET("/events", Events(events))
	}

	public := router.Group("/auth")
	public.Use(RateLimitMiddleware(5, 10))
	{
		public.POST("/login", loginHandler.Login)
		public.POST("/refresh", loginHandler.Refresh)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	adminMiddleware := auth.RequireRole(auth.RoleAdmin)
	admin := router.Group("/admin")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.POST("/session/external", sessionHandler.AcquireExternal)
		admin.DELETE("/session/external", sessionHandler.ReleaseExternal)

		admin.POST("/staff", staffHandler.CreateStaff)
		admin.GET("/staff", staffHandler.ListStaff)
		admin.GET("/staff/:staffID", staffHandler.GetStaff)
		admin.PUT("/staff/:staffID", staffHandler.UpdateStaff)
		admin.DELETE("/staff/:staffID", staffHandler.DeleteStaff)
		admin.POST("/staff/:staffID/restore", staffHandler.RestoreStaff)

		admin.POST("/cards", cardHandler.Register)
		admin.GET("/cards", cardHandler.List)
		admin.GET("/cards/:cardID", cardHandler.Get)
		admin.PUT("/cards/:cardID", cardHandler.Update)
		admin.DELETE("/cards/:cardID", cardHandler.Delete)
		admin.POST("/cards/:cardID/restore", cardHandler.Restore)
		admin.POST("/cards/:cardID/refund", cardHandler.Refund)

		admin.GET("/cards/:cardID/ledgers", ledgerHandler.ListLedgers)
		admin.GET("/cards/:cardID/consistency", ledgerHandler.ConsistencyReport)
		admin.GET("/cards/:cardID/merge-histories", ledgerHandler.ListMergeHistories)
		admin.GET("/balances", ledgerHandler.LatestBalances)
		admin.POST("/ledgers", ledgerHandler.CreateManualEntry)
		admin.GET("/ledgers/:ledgerID/details", ledgerHandler.ListDetails)
		admin.POST("/ledgers/:ledgerID/dividers", ledgerHandler.ToggleDivider)
		admin.DELETE("/ledgers/:ledgerID/dividers", ledgerHandler.ClearDividers)
		admin.POST("/ledgers/merge", ledgerHandler.Merge)
		admin.POST("/ledgers/:ledgerID/split", ledgerHandler.Split)
		admin.POST("/merge-histories/:historyID/undo", ledgerHandler.UndoMerge)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())

	return &Server{
		router: router,
		db:     db,
		config: cfg,
		events: events,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Router exists for handler-level tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

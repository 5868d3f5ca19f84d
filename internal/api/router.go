package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parking_reservation/internal/api/handler"
	"parking_reservation/internal/api/middleware"
	"parking_reservation/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func SetupRouter(as *service.AuthService, ps *service.ParkingService, authMw *middleware.AuthMiddleware, db Pinger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := handler.NewAuthHandler(as)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		lotH := handler.NewParkingLotHandler(ps)
		reservationH := handler.NewReservationHandler(ps)
		lotRoutes := v1.Group("/parking-lots")
		{
			lotRoutes.POST("", lotH.CreateParkingLot)
			lotRoutes.GET("", lotH.GetAllParkingLots)
			lotRoutes.GET("/available", lotH.GetAvailableParkingLots)
			lotRoutes.GET("/search", lotH.SearchParkingLots)
			lotRoutes.GET("/:id", lotH.GetParkingLotByID)
			lotRoutes.PUT("/:id", lotH.UpdateParkingLot)
			lotRoutes.DELETE("/:id", lotH.DeleteParkingLot)
			lotRoutes.GET("/:id/spots", lotH.GetSpotsByLotID)
			lotRoutes.POST("/:id/reservations", reservationH.Book)
		}

		reservationRoutes := v1.Group("/reservations")
		{
			reservationRoutes.GET("/active", reservationH.GetActive)
			reservationRoutes.GET("/history", reservationH.GetHistory)
			reservationRoutes.GET("/:id", reservationH.GetByID)
			reservationRoutes.POST("/:id/release", reservationH.Release)
		}

		statsH := handler.NewStatsHandler(ps)
		v1.GET("/stats", statsH.GetStats)

		// Privileged operations are gated by service.Authorize.
		adminRoutes := v1.Group("/admin")
		{
			adminRoutes.GET("/summary", statsH.GetAdminSummary)
		}

		userRoutes := v1.Group("/users")
		{
			userRoutes.GET("", authHandler.ListUsers)
			userRoutes.PUT("/:id/role", authHandler.UpdateUserRole)
		}
	}
	return r
}

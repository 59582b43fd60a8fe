package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	handler "cashdesk-watcher/internal/handlers"
	"cashdesk-watcher/internal/repository"
	service "cashdesk-watcher/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, recon *service.Service, log *zap.Logger) {
	requestRepo := repository.NewDepositRequestRepository(db)
	h := handler.NewWatcherHandler(db, requestRepo, recon, log)

	api := r.Group("/api")

	api.GET("/health", h.Health)
	api.GET("/audit", h.ListAudit)

	requests := api.Group("/requests")
	{
		requests.GET("/pending", h.ListPending)
		requests.POST("/:id/retry", h.Retry)
		requests.POST("/:id/receipt", h.ReceiptReceived)
	}
}

package main

import (
	"log"
	"net/http"
	"prestar/src/db"
	"prestar/src/models"
	"prestar/src/types"
	"prestar/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/payments/checkout", func(ctx *gin.Context) {
			var body types.CreateCheckoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			payment, err := utils.CreateCheckout(ctx.Request.Context(), paymentsRepo, &body)
			if err != nil {
				log.Printf("Error creating checkout: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": payment})
		}).
		GET("/payments", func(ctx *gin.Context) {
			var filters types.PaymentQueryFilters
			if err := ctx.ShouldBindQuery(&filters); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			list, err := paymentsRepo.ListPayments(ctx.Request.Context(), filters)
			if err != nil {
				log.Printf("Error listing payments: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": list})
		}).
		GET("/payments/:id", func(ctx *gin.Context) {
			id, err := uuid.Parse(ctx.Param("id"))
			if err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			payment, err := paymentsRepo.GetPayment(ctx.Request.Context(), id)
			if err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": payment})
		})
	return g
}

// reviewHandlers is the operator queue: payments parked with needs_review
// and the action to clear them once reconciled by hand.
func reviewHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/payments/review/queue", func(ctx *gin.Context) {
			needsReview := true
			list, err := paymentsRepo.ListPayments(ctx.Request.Context(), types.PaymentQueryFilters{
				NeedsReview: &needsReview,
			})
			if err != nil {
				log.Printf("Error listing review queue: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": list})
		}).
		PUT("/payments/:id/review", func(ctx *gin.Context) {
			id, err := uuid.Parse(ctx.Param("id"))
			if err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body struct {
				Note string `json:"note" binding:"required"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			conn := db.GetDb()
			err = conn.Transaction(func(tx *gorm.DB) error {
				var payment models.Payment
				if err := tx.Where("id = ?", id).First(&payment).Error; err != nil {
					return err
				}
				metadata := payment.Metadata
				if metadata == nil {
					metadata = types.JSONB{}
				}
				metadata["review_note"] = body.Note
				metadata["reviewed_by"] = ctx.GetString("email")
				return tx.Model(&models.Payment{}).
					Where("id = ?", id).
					Updates(map[string]any{
						"needs_review":  false,
						"review_reason": nil,
						"metadata":      metadata,
					}).Error
			})
			if err != nil {
				log.Printf("Error resolving review for %s: %s\n", id, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		})
	return g
}

func notificationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.GET("/notifications", func(ctx *gin.Context) {
		userId := ctx.GetUint("id")
		var notifications []models.Notification
		conn := db.GetDb()
		err := conn.
			Where("user_id = ?", userId).
			Order("created_at desc").
			Limit(100).
			Find(&notifications).
			Error
		if err != nil {
			log.Printf("Error listing notifications: %s\n", err.Error())
			ctx.Status(http.StatusInternalServerError)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": notifications})
	})
	return g
}

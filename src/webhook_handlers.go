package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"prestar/src/payments"
	"prestar/src/types"

	"github.com/gin-gonic/gin"
)

// webhookRoutes exposes one endpoint per provider rail. Status codes follow
// what each provider's retry loop expects: a rejected signature or an
// unparseable body is a client error they should not redeliver, a transient
// failure is a 503 so they do, and every reconciliation outcome, duplicates
// and unknown references included, is acknowledged with 200.
func webhookRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhooks/mercadopago", webhookHandlerFor(types.PROVIDER_REDIRECT_CHECKOUT))
	apiv1.POST("/webhooks/dlocal", webhookHandlerFor(types.PROVIDER_LOCAL_PROCESSOR))
	apiv1.POST("/webhooks/payu", webhookHandlerFor(types.PROVIDER_CARD_GATEWAY))
	return apiv1
}

func webhookHandlerFor(kind types.ProviderKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		hdr := payments.Header{}
		for name := range ctx.Request.Header {
			hdr[http.CanonicalHeaderKey(name)] = ctx.GetHeader(name)
		}
		outcome, err := paymentsEngine.Process(ctx.Request.Context(), kind, body, hdr)
		if err != nil {
			switch {
			case errors.Is(err, payments.ErrParse):
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, payments.ErrForged):
				log.Printf("[%s] rejected notification with bad signature\n", kind)
				ctx.Status(http.StatusForbidden)
			case payments.IsTransient(err):
				ctx.Status(http.StatusServiceUnavailable)
			default:
				log.Printf("[%s] webhook error: %s\n", kind, err.Error())
				ctx.Status(http.StatusBadRequest)
			}
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"result": outcome.Kind})
	}
}

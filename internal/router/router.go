package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"Atlas/internal/handler"
	"Atlas/internal/middleware"
)

func Register(h *server.Hertz) {
	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())

	v1 := h.Group("/v1")

	health := v1.Group("/health")
	{
		health.GET("/live", handler.Live)
		health.GET("/ready", handler.Ready)
	}

	// 广场：浏览无需登录，fork 需要
	explore := v1.Group("/explore/itineraries", middleware.GeneralRateLimitMiddleware())
	{
		explore.GET("", handler.ListPublicItineraries)
		explore.GET("/:itinerary_id", handler.GetPublicItinerary)
		explore.GET("/:itinerary_id/items", handler.ListPublicItineraryItems)
		explore.POST("/:itinerary_id/fork", middleware.AuthMiddleware(), handler.ForkPublicItinerary)
	}

	authed := v1.Group("", middleware.AuthMiddleware(), middleware.GeneralRateLimitMiddleware())

	itineraries := authed.Group("/itineraries")
	{
		itineraries.POST("", handler.CreateItinerary)
		itineraries.GET("", handler.ListMyItineraries)
		itineraries.GET("/:itinerary_id", handler.GetItinerary)
		itineraries.PATCH("/:itinerary_id", handler.UpdateItinerary)
		itineraries.DELETE("/:itinerary_id", handler.DeleteItinerary)

		itineraries.GET("/:itinerary_id/items", handler.ListItineraryItems)
		itineraries.POST("/:itinerary_id/items", handler.CreateItineraryItem)
		itineraries.PATCH("/:itinerary_id/items/:item_id", handler.UpdateItineraryItem)
		itineraries.DELETE("/:itinerary_id/items/:item_id", handler.DeleteItineraryItem)

		itineraries.POST("/:itinerary_id/fork", handler.ForkItinerary)
		itineraries.GET("/:itinerary_id/diff", handler.GetItineraryDiff)
		itineraries.POST("/:itinerary_id/diff/actions", handler.RecordDiffActions)
	}

	ai := authed.Group("/ai/import")
	{
		ai.POST("/preview", middleware.AIPreviewRateLimitMiddleware(), handler.PreviewImport)
		ai.POST("/commit", middleware.ImportRateLimitMiddleware(), handler.CommitImport)
	}

	pois := authed.Group("/pois")
	{
		pois.GET("", handler.ListPOIs)
		pois.POST("", handler.CreatePOI)
		pois.GET("/search", handler.SearchPOIs)
		pois.GET("/:poi_id", handler.GetPOI)
		pois.PUT("/:poi_id", handler.UpdatePOI)
		pois.DELETE("/:poi_id", handler.DeletePOI)
		pois.PUT("/:poi_id/parent", handler.SetPOIParent)
		pois.GET("/:poi_id/parents", handler.GetPOIParentChain)
	}
}

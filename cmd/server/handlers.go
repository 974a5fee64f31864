package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freshcart/cartsense-go/pkg/recengine"
	"github.com/freshcart/cartsense-go/pkg/tracking"
)

// APIHandler routes HTTP requests to the recommendation engine.
type APIHandler struct {
	engine *recengine.Engine
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(engine *recengine.Engine) *APIHandler {
	return &APIHandler{engine: engine}
}

// SetupRoutes configures all API routes.
func (h *APIHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/recommendations", h.GetRecommendations)
		api.GET("/products", h.GetProducts)
		api.POST("/track", h.TrackInteraction)
	}
	router.GET("/health", h.Health)
}

// GetRecommendations handles recommendation requests.
//
// Without a user_id the response is the popularity-based cold-start list.
// Rate-limited and quota-exhausted generation failures map to 429 and 402
// so the storefront can show the matching notice; every other engine
// failure is a plain 500.
func (h *APIHandler) GetRecommendations(c *gin.Context) {
	userID := c.Query("user_id")

	opts := []recengine.RecommendOption{}
	if limitParam := c.Query("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		opts = append(opts, recengine.WithListSize(limit))
	}
	if c.Query("include_secondary") == "true" {
		opts = append(opts, recengine.WithSecondarySignals(true))
	}

	resp, err := h.engine.Recommend(c.Request.Context(), userID, opts...)
	if err != nil {
		switch {
		case errors.Is(err, recengine.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please try again later."})
		case errors.Is(err, recengine.ErrQuotaExhausted):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Recommendation quota exhausted."})
		default:
			log.Printf("Error getting recommendations: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recommendations"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":         userID,
		"recommendations": resp.Recommendations,
		"source":          resp.Source,
		"analysis":        resp.Analysis,
	})
}

// GetProducts returns the product catalog.
func (h *APIHandler) GetProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.engine.Catalog().Products()})
}

// trackRequest is the POST /api/track payload.
type trackRequest struct {
	UserID          string  `json:"user_id" binding:"required"`
	ProductID       string  `json:"product_id" binding:"required"`
	ProductName     string  `json:"product_name"`
	Category        string  `json:"category"`
	InteractionType string  `json:"interaction_type" binding:"required"`
	Quantity        int     `json:"quantity"`
	Rating          int     `json:"rating"`
	Price           float64 `json:"price"`
}

// TrackInteraction records a user interaction event.
func (h *APIHandler) TrackInteraction(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	rec := &tracking.Record{
		UserID:      req.UserID,
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Category:    req.Category,
		Kind:        tracking.Kind(req.InteractionType),
		Quantity:    req.Quantity,
		Rating:      req.Rating,
		Price:       req.Price,
		OccurredAt:  time.Now(),
	}

	// Fill the denormalized name and category from the catalog when the
	// client omits them.
	if rec.ProductName == "" || rec.Category == "" {
		if p := h.engine.Catalog().Find(rec.ProductID); p != nil {
			if rec.ProductName == "" {
				rec.ProductName = p.Name
			}
			if rec.Category == "" {
				rec.Category = p.Category
			}
		}
	}

	if err := h.engine.Store().Record(c.Request.Context(), rec); err != nil {
		if errors.Is(err, tracking.ErrInvalidRecord) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid interaction record"})
			return
		}
		log.Printf("Error recording interaction: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record interaction"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "recorded"})
}

// Health reports service liveness.
func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

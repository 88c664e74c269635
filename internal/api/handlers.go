package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"fourwalls/server/internal/auth"
	"fourwalls/server/internal/database"
	"fourwalls/server/internal/extraction"
	"fourwalls/server/internal/facebook"
	"fourwalls/server/internal/importer"
	"fourwalls/server/internal/models"
	"fourwalls/server/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const userIDKey = "user_id"

type Handler struct {
	db       *database.Database
	importer *importer.Importer
	pipeline *pipeline.Pipeline
	verifier auth.Verifier
	logger   *logrus.Logger
}

type MigrateRequest struct {
	Code        string `json:"code" binding:"required"`
	RedirectURI string `json:"redirect_uri" binding:"required"`
}

type ParseRequest struct {
	PostIDs []int64 `json:"post_ids" binding:"required"`
	UserID  string  `json:"user_id"`
}

func NewHandler(db *database.Database, imp *importer.Importer, pipe *pipeline.Pipeline, verifier auth.Verifier, logger *logrus.Logger) *Handler {
	return &Handler{
		db:       db,
		importer: imp,
		pipeline: pipe,
		verifier: verifier,
		logger:   logger,
	}
}

// AuthRequired resolves the bearer token to a user before any buffer or
// catalog access happens.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		user, err := h.verifier.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			h.logger.WithError(err).Error("Token verification failed")
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Authentication service unavailable"})
			return
		}

		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// MigrateFacebook exchanges the authorization code and fills the caller's
// staging buffer with housing-related posts.
func (h *Handler) MigrateFacebook(c *gin.Context) {
	var req MigrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to parse migrate request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and redirect_uri are required"})
		return
	}

	h.runImport(c, req.Code, req.RedirectURI)
}

// ImportCallback is the redirect target after third-party consent. The
// redirect URI re-derived from this request must match the one the consent
// screen was opened with.
func (h *Handler) ImportCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	scheme := "https"
	if c.Request.TLS == nil {
		scheme = "http"
	}
	redirectURI := fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, c.Request.URL.Path)

	h.runImport(c, code, redirectURI)
}

func (h *Handler) runImport(c *gin.Context, code, redirectURI string) {
	userID := c.GetString(userIDKey)

	summary, err := h.importer.ExchangeAndFetch(c.Request.Context(), code, redirectURI, userID)
	if err != nil {
		switch {
		case errors.Is(err, facebook.ErrExchangeFailed):
			// Codes are single-use; the user has to restart the flow
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to exchange authorization code"})
		case errors.Is(err, facebook.ErrFetchFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch posts"})
		default:
			h.logger.WithError(err).Error("Import failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import posts"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Successfully processed %d posts, found %d housing-related posts",
			summary.TotalPosts, summary.HousingPosts),
		"total_posts":   summary.TotalPosts,
		"housing_posts": summary.HousingPosts,
		"posts_saved":   summary.Imported,
	})
}

// ParsePosts runs one extraction request over the selected buffer entries.
func (h *Handler) ParsePosts(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to parse extraction request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "post_ids array is required"})
		return
	}

	userID := c.GetString(userIDKey)
	if req.UserID != "" && req.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "user_id does not match the authenticated user"})
		return
	}

	result, err := h.pipeline.Submit(c.Request.Context(), req.PostIDs, userID)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrInvalidSelection):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No posts found for the given IDs"})
		case errors.Is(err, extraction.ErrModelUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to process with the extraction model"})
		case errors.Is(err, extraction.ErrMalformedModelOutput):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to parse AI response"})
		case errors.Is(err, extraction.ErrMissingFallbackNeighbourhood):
			h.logger.WithError(err).Error("Fallback neighbourhood missing")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server is misconfigured"})
		default:
			h.logger.WithError(err).Error("Extraction run failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process posts"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"properties_added": result.Added,
		"total_processed":  result.Submitted,
	})
}

// ListImports returns the caller's staging buffer.
func (h *Handler) ListImports(c *gin.Context) {
	userID := c.GetString(userIDKey)

	entries, err := h.db.ListBufferEntries(userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list buffer entries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list imports"})
		return
	}

	if entries == nil {
		entries = []models.BufferEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// DeleteImport removes one staging entry owned by the caller.
func (h *Handler) DeleteImport(c *gin.Context) {
	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entry id"})
		return
	}

	userID := c.GetString(userIDKey)
	if err := h.db.DeleteBufferEntry(entryID, userID); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
		case errors.Is(err, database.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Entry belongs to another user"})
		default:
			h.logger.WithError(err).Error("Failed to delete buffer entry")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete entry"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

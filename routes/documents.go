package routes

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"merchant-docs-platform/internal/config"
	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/internal/logger"
	"merchant-docs-platform/internal/queue"
	"merchant-docs-platform/models"
	"merchant-docs-platform/services"
	"merchant-docs-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// SetupDocumentRoutes registers the document CRUD and processing endpoints
func SetupDocumentRoutes(
	router *gin.Engine,
	cfg *config.Config,
	docs database.DocumentStore,
	processor *services.DocumentProcessor,
	previews *services.PreviewService,
	search *services.SearchManager,
	queueClient *asynq.Client,
) {
	group := router.Group("/api/documents")
	{
		group.POST("", handleUpload(cfg, docs, queueClient))
		group.GET("", handleList(docs))
		group.GET("/:id", handleGet(docs))
		group.PATCH("/:id", handleUpdate(docs, search))
		group.DELETE("/:id", handleDelete(processor))
		group.POST("/:id/reprocess", handleReprocess(docs, queueClient))
		group.GET("/:id/preview", handlePreview(previews))
		group.GET("/:id/insights", handleInsights(previews))
	}
}

// handleUpload accepts a multipart file, stores it on disk and enqueues
// async processing. The response is returned before extraction begins.
func handleUpload(cfg *config.Config, docs database.DocumentStore, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", gin.H{"max_size": cfg.MaxFileSize})
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		defer file.Close()

		mimeType := resolveMimeType(header)
		if !isAllowedType(mimeType, cfg.AllowedTypes) {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type",
				"File type is not allowed", gin.H{"mime_type": mimeType, "allowed": cfg.AllowedTypes})
			return
		}
		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", gin.H{"max_size": cfg.MaxFileSize})
			return
		}

		docID := uuid.NewString()

		if err := os.MkdirAll(cfg.FileStorageDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}
		path := filepath.Join(cfg.FileStorageDir, fmt.Sprintf("%s%s", docID, filepath.Ext(header.Filename)))
		if err := saveUpload(file, path, cfg.MaxFileSize); err != nil {
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}

		now := time.Now()
		doc := &models.Document{
			ID:           docID,
			Name:         header.Filename,
			OriginalName: header.Filename,
			MimeType:     mimeType,
			Size:         header.Size,
			Path:         path,
			UserID:       c.Query("user_id"),
			FolderID:     c.Query("folder_id"),
			Category:     c.PostForm("category"),
			Description:  c.PostForm("description"),
			IsPublic:     c.PostForm("is_public") == "true",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if tags := c.PostForm("tags"); tags != "" {
			doc.Tags = strings.Split(tags, ",")
		}

		if err := docs.Create(c.Request.Context(), doc); err != nil {
			os.Remove(path)
			utils.RespondWithInternalError(c, "Failed to create document record", nil)
			return
		}

		task, err := queue.NewDocumentProcessTask(docID, path)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build processing task", nil)
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			// Keep the record; the scheduler re-enqueues unprocessed
			// documents later
			logger.Error("Failed to enqueue processing task", "document_id", docID, "error", err)
			c.JSON(http.StatusAccepted, models.UploadResponse{
				ID:       docID,
				Filename: header.Filename,
				Status:   models.StatusPending,
				Message:  "Upload stored; processing will be retried",
			})
			return
		}

		c.JSON(http.StatusAccepted, models.UploadResponse{
			ID:       docID,
			Filename: header.Filename,
			Status:   models.StatusPending,
			Message:  "Upload accepted for processing",
			TaskID:   info.ID,
		})
	}
}

func handleList(docs database.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := database.DocumentListFilter{
			UserID:   c.Query("user_id"),
			Category: c.Query("category"),
			FolderID: c.Query("folder_id"),
			Limit:    parseIntQuery(c, "limit", 50, 200),
			Offset:   parseIntQuery(c, "offset", 0, 1<<30),
		}

		result, err := docs.List(c.Request.Context(), filter)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"documents": result,
			"count":     len(result),
		})
	}
}

func handleGet(docs database.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		doc, err := docs.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}

		if err := docs.IncrementViews(c.Request.Context(), id); err != nil {
			logger.Warn("Failed to increment views", "document_id", id, "error", err)
		}

		c.JSON(http.StatusOK, doc)
	}
}

func handleUpdate(docs database.DocumentStore, search *services.SearchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var patch models.DocumentPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			utils.RespondWithBadRequest(c, "Invalid update payload", gin.H{"error": err.Error()})
			return
		}

		doc, err := docs.Update(c.Request.Context(), id, &patch)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to update document", nil)
			return
		}

		search.DocumentChanged(id)
		c.JSON(http.StatusOK, doc)
	}
}

func handleDelete(processor *services.DocumentProcessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := processor.RemoveDocument(c.Request.Context(), id); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to delete document", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

// handleReprocess re-enqueues the full pipeline for an existing document
func handleReprocess(docs database.DocumentStore, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		doc, err := docs.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}

		task, err := queue.NewDocumentProcessTask(doc.ID, doc.Path)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build processing task", nil)
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue processing task", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"document_id": doc.ID,
			"task_id":     info.ID,
			"status":      models.StatusPending,
		})
	}
}

func handlePreview(previews *services.PreviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		preview := previews.Preview(c.Request.Context(), c.Param("id"), c.Query("query"))
		c.JSON(http.StatusOK, preview)
	}
}

func handleInsights(previews *services.PreviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		insights := previews.Insights(c.Request.Context(), c.Param("id"), c.Query("query"))
		c.JSON(http.StatusOK, insights)
	}
}

// resolveMimeType prefers the declared content type, falling back to the
// file extension
func resolveMimeType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".csv":
		return "text/csv"
	case ".txt", ".md":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func isAllowedType(mimeType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.EqualFold(strings.TrimSpace(t), mimeType) {
			return true
		}
	}
	return false
}

func saveUpload(file multipart.File, path string, maxSize int64) error {
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, maxSize)); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

func parseIntQuery(c *gin.Context, name string, fallback, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > max {
		return fallback
	}
	return v
}

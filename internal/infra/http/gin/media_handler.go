package ginserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"karta/internal/infra/storage/s3"
)

const maxListingPhotoSizeBytes int64 = 10 * 1024 * 1024

// MediaHandler accepts listing photo uploads and stores them in the
// object bucket. The returned URL goes into the listing via a normal
// update, so the change still flows through the event stream.
type MediaHandler struct {
	Uploader s3.Uploader
	Logger   *slog.Logger
}

func (h MediaHandler) UploadPhoto(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media storage unavailable"})
		return
	}

	listingID := strings.TrimSpace(c.Param("id"))
	if listingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file is required: %v", err)})
		return
	}
	if fileHeader.Size <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		return
	}
	if fileHeader.Size > maxListingPhotoSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file too large (max %d MB)", maxListingPhotoSizeBytes/1024/1024)})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxListingPhotoSizeBytes+1024))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read file"})
		return
	}
	if int64(len(data)) > maxListingPhotoSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file too large (max %d MB)", maxListingPhotoSizeBytes/1024/1024)})
		return
	}

	contentType := http.DetectContentType(data)
	if !isAllowedImageType(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported content type: %s", contentType)})
		return
	}

	objectKey := buildPhotoObjectKey(listingID, fileHeader.Filename, contentType)
	url, err := h.Uploader.Upload(c.Request.Context(), objectKey, bytes.NewReader(data), contentType)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "upload interrupted"})
			return
		}
		if h.Logger != nil {
			h.Logger.Error("photo upload failed", "listing_id", listingID, "user_id", p.ID, "error", err)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upload failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func isAllowedImageType(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return true
	}
	return false
}

func buildPhotoObjectKey(listingID, filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		switch contentType {
		case "image/jpeg":
			ext = ".jpg"
		case "image/png":
			ext = ".png"
		case "image/webp":
			ext = ".webp"
		case "image/gif":
			ext = ".gif"
		}
	}
	return fmt.Sprintf("listings/%s/%s%s", listingID, uuid.NewString(), ext)
}

var _ MediaHTTP = MediaHandler{}

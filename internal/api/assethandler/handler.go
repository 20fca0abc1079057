// Package assethandler exposes the asset core (internal/assetcore) over
// HTTP using gin, following the teacher's handler/DTO split in
// internal/api/handler.
package assethandler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"assetvault/internal/api"
	"assetvault/internal/assetcore"

	"github.com/gin-gonic/gin"
)

// AssetHandler adapts gin requests onto a Service.
type AssetHandler struct {
	service *assetcore.Service
	memory  *assetcore.MemoryMonitor
}

// NewAssetHandler builds a handler around service. memory is consulted by
// UploadConfig to scale the advertised concurrency hint to the host's
// available RAM; pass nil to always return the static recommendation.
func NewAssetHandler(service *assetcore.Service, memory *assetcore.MemoryMonitor) *AssetHandler {
	return &AssetHandler{service: service, memory: memory}
}

// uploadResponse mirrors §6's single-shot upload response shape.
type uploadResponse struct {
	Success bool   `json:"success"`
	Hash    string `json:"hash,omitempty"`
	Ext     string `json:"ext,omitempty"`
	URL     string `json:"url,omitempty"`
	Bytes   int64  `json:"bytes,omitempty"`
	Mime    string `json:"mime,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Upload handles POST /api/upload (multipart/form-data: project, file).
func (h *AssetHandler) Upload(c *gin.Context) {
	alias := c.PostForm("project")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, uploadResponse{Success: false, Error: "no file provided"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, uploadResponse{Success: false, Error: "could not open upload"})
		return
	}
	defer f.Close()

	// Read one byte beyond the ceiling so an oversized upload fails fast
	// with a clean validation error instead of buffering the whole body.
	limited := io.LimitReader(f, assetcore.MaxUploadSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		c.JSON(http.StatusBadRequest, uploadResponse{Success: false, Error: "failed to read upload"})
		return
	}

	info, err := h.service.Upload(c.Request.Context(), alias, data, fileHeader.Filename)
	if err != nil {
		writeUploadError(c, err)
		return
	}

	url, err := h.service.BuildURL(alias, info.Hash, info.Ext)
	if err != nil {
		writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		Success: true,
		Hash:    info.Hash,
		Ext:     info.Ext,
		URL:     url,
		Bytes:   info.Bytes,
		Mime:    info.Mime,
	})
}

func writeUploadError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if isInfrastructureError(err) {
		status = http.StatusInternalServerError
	}
	c.JSON(status, uploadResponse{Success: false, Error: err.Error()})
}

func isInfrastructureError(err error) bool {
	return errors.Is(err, assetcore.ErrIOError) ||
		errors.Is(err, assetcore.ErrDatabaseError) ||
		errors.Is(err, assetcore.ErrCancelled)
}

// mapServiceError maps the asset core's error taxonomy onto the standard
// envelope, per §7: Validation/State -> 400, Infrastructure -> 500.
func mapServiceError(c *gin.Context, err error) {
	if isInfrastructureError(err) {
		api.GinInternalError(c, err)
		return
	}
	api.GinBadRequest(c, err)
}

// startChunkedUploadRequest is the JSON body for StartChunkedUpload.
type startChunkedUploadRequest struct {
	ProjectAlias string `json:"project_alias" binding:"required"`
	Filename     string `json:"filename"`
	TotalSize    int64  `json:"total_size" binding:"required"`
	TotalChunks  int    `json:"total_chunks" binding:"required"`
	MimeType     string `json:"mime_type"`
}

// StartChunkedUpload handles POST /api/uploads.
func (h *AssetHandler) StartChunkedUpload(c *gin.Context) {
	var req startChunkedUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.GinBadRequest(c, err)
		return
	}

	uploadID, err := h.service.StartChunkedUpload(assetcore.StartChunkedUploadRequest{
		ProjectAlias: req.ProjectAlias,
		Filename:     req.Filename,
		TotalSize:    req.TotalSize,
		TotalChunks:  req.TotalChunks,
		MimeType:     req.MimeType,
	})
	if err != nil {
		mapServiceError(c, err)
		return
	}

	api.GinSuccess(c, gin.H{"upload_id": uploadID})
}

type uploadChunkRequest struct {
	ChunkIndex int    `json:"chunk_index"`
	Data       string `json:"data" binding:"required"`
}

// UploadChunk handles POST /api/uploads/:id/chunks.
func (h *AssetHandler) UploadChunk(c *gin.Context) {
	uploadID := c.Param("id")

	var req uploadChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.GinBadRequest(c, err)
		return
	}

	received, complete, err := h.service.UploadChunk(uploadID, req.ChunkIndex, req.Data)
	if err != nil {
		var missing *assetcore.MissingChunksError
		if errors.As(err, &missing) {
			api.GinBadRequest(c, err)
			return
		}
		mapServiceError(c, err)
		return
	}

	api.GinSuccess(c, gin.H{"received_chunks": received, "complete": complete})
}

// FinalizeChunkedUpload handles POST /api/uploads/:id/finalize.
func (h *AssetHandler) FinalizeChunkedUpload(c *gin.Context) {
	uploadID := c.Param("id")

	result, err := h.service.FinalizeChunkedUpload(c.Request.Context(), uploadID)
	if err != nil {
		mapServiceError(c, err)
		return
	}

	api.GinSuccess(c, result)
}

// AbortChunkedUpload handles DELETE /api/uploads/:id.
func (h *AssetHandler) AbortChunkedUpload(c *gin.Context) {
	uploadID := c.Param("id")

	if err := h.service.AbortChunkedUpload(uploadID); err != nil {
		mapServiceError(c, err)
		return
	}

	api.GinSuccess(c, gin.H{"aborted": true})
}

// Progress handles GET /api/uploads/:id/progress.
func (h *AssetHandler) Progress(c *gin.Context) {
	uploadID := c.Param("id")

	received, total, err := h.service.Progress(uploadID)
	if err != nil {
		mapServiceError(c, err)
		return
	}

	api.GinSuccess(c, gin.H{"received_chunks": received, "total_chunks": total})
}

// UploadConfig handles GET /api/uploads/config.
func (h *AssetHandler) UploadConfig(c *gin.Context) {
	cfg := h.service.RecommendedChunkConfig()
	if h.memory != nil {
		cfg.MaxConcurrent = h.memory.MaxConcurrentSessions()
	}
	api.GinSuccess(c, cfg)
}

// CleanupOrphans handles POST /api/projects/:alias/orphans/cleanup.
func (h *AssetHandler) CleanupOrphans(c *gin.Context) {
	alias := c.Param("alias")

	deleted, err := h.service.CleanupOrphans(c.Request.Context(), alias)
	if err != nil {
		mapServiceError(c, err)
		return
	}

	log.Printf("[AssetHandler] cleaned up %d orphaned assets for %s", deleted, alias)
	api.GinSuccess(c, gin.H{"deleted": deleted})
}

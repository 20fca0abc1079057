package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AssetControllerInterface is the HTTP surface NewRouter wires up; handler
// satisfies it, with the interface declared here so router construction
// does not have to import the handler package.
type AssetControllerInterface interface {
	Upload(c *gin.Context)
	StartChunkedUpload(c *gin.Context)
	UploadChunk(c *gin.Context)
	FinalizeChunkedUpload(c *gin.Context)
	AbortChunkedUpload(c *gin.Context)
	Progress(c *gin.Context)
	UploadConfig(c *gin.Context)
	CleanupOrphans(c *gin.Context)
}

// NewRouter builds the gin engine for the asset upload API, per §6:
// single-shot upload, the in-process chunked-upload API exposed over
// JSON, and the supplemented progress/config endpoints.
func NewRouter(assets AssetControllerInterface) *gin.Engine {
	r := gin.Default()
	r.HandleMethodNotAllowed = true

	r.Use(func(c *gin.Context) {
		corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
	})

	api := r.Group("/api")
	{
		api.POST("/upload", assets.Upload)

		uploads := api.Group("/uploads")
		{
			uploads.GET("/config", assets.UploadConfig)
			uploads.POST("", assets.StartChunkedUpload)
			uploads.POST("/:id/chunks", assets.UploadChunk)
			uploads.POST("/:id/finalize", assets.FinalizeChunkedUpload)
			uploads.DELETE("/:id", assets.AbortChunkedUpload)
			uploads.GET("/:id/progress", assets.Progress)
		}

		api.POST("/projects/:alias/orphans/cleanup", assets.CleanupOrphans)
	}

	return r
}

// corsMiddleware allows * origins with GET/POST/DELETE/OPTIONS and
// Content-Type, covering the upload endpoint and the chunked-upload routes.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

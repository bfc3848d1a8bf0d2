package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/services"
)

// SnapshotHandler handles full-dataset export and import requests.
type SnapshotHandler struct {
	snapshotService services.SnapshotServicer
	snapshotDir     string
}

// NewSnapshotHandler creates a new SnapshotHandler. File save and load
// are confined to snapshotDir.
func NewSnapshotHandler(snapshotService services.SnapshotServicer, snapshotDir string) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: snapshotService, snapshotDir: snapshotDir}
}

// FileRequest represents the request payload for file save and load.
type FileRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// Export handles exporting the full dataset as a JSON document.
func (h *SnapshotHandler) Export(c *gin.Context) {
	snap, err := h.snapshotService.Export()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// Import handles replacing the full dataset from a JSON document.
func (h *SnapshotHandler) Import(c *gin.Context) {
	var snap services.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	if err := h.snapshotService.Import(&snap); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Snapshot imported"})
}

// SaveFile handles writing the current dataset to a named snapshot file.
func (h *SnapshotHandler) SaveFile(c *gin.Context) {
	path, err := h.resolvePath(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.snapshotService.SaveFile(path); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Snapshot saved", "path": path})
}

// LoadFile handles replacing the dataset from a named snapshot file.
func (h *SnapshotHandler) LoadFile(c *gin.Context) {
	path, err := h.resolvePath(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.snapshotService.LoadFile(path); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Snapshot loaded"})
}

// resolvePath binds the file request and confines the name to the
// snapshot directory.
func (h *SnapshotHandler) resolvePath(c *gin.Context) (string, error) {
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", apperrors.WithMessage(apperrors.ErrValidation, err.Error())
	}

	name := filepath.Base(req.Name)
	if name != req.Name || strings.HasPrefix(name, ".") {
		return "", apperrors.WithField(apperrors.ErrValidation, "name", "name must be a plain file name")
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	return filepath.Join(h.snapshotDir, name), nil
}

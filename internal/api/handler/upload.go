package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/bookshelf/internal/api/models"
	"github.com/jon4hz/bookshelf/internal/upload"
)

// UploadFormField is the multipart field carrying the cover.
const UploadFormField = "book"

// Upload stores a cover image and returns its public URL.
func (h *Handler) Upload(c *gin.Context) {
	header, err := c.FormFile(UploadFormField)
	if err != nil {
		fail(c, http.StatusBadRequest, "No file uploaded")
		return
	}

	f, err := header.Open()
	if err != nil {
		log.Error("failed to open uploaded file", "error", err)
		fail(c, http.StatusInternalServerError, "Error occurred while uploading")
		return
	}
	defer f.Close()

	saved, err := h.uploads.Save(c.Request.Context(), f, header.Size)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrTooLarge), errors.Is(err, upload.ErrNotAnImage):
			fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, upload.ErrInsufficientStorage):
			fail(c, http.StatusInsufficientStorage, err.Error())
		default:
			log.Error("failed to store upload", "error", err)
			fail(c, http.StatusInternalServerError, "Error occurred while uploading")
		}
		return
	}

	c.JSON(http.StatusOK, models.UploadResponse{Success: true, ImgURL: saved.URL})
}

package handler

import (
	"os"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cms-timetable/internal/service"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
	"github.com/noah-isme/cms-timetable/pkg/response"
	"github.com/noah-isme/cms-timetable/pkg/storage"
)

type exportOpener interface {
	Open(token string) (*os.File, storage.Grant, error)
}

// ExportHandler serves generated export files behind signed tokens.
type ExportHandler struct {
	exports exportOpener
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports exportOpener) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Download godoc
// @Summary Download a timetable export
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, grant, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}

	response.Disposition(c, false, "timetable-"+path.Base(grant.Path))
	response.File(c, service.ContentType(grant.Path), info.Size(), file)
}

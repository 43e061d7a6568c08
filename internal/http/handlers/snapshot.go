package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/award-ledger/internal/http/response"
	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
	"github.com/yungbote/award-ledger/internal/services"
	"github.com/yungbote/award-ledger/internal/snapshot"
)

type SnapshotHandler struct {
	awards    services.AwardService
	uploadDir string
}

// NewSnapshotHandler stores uploaded snapshots under uploadDir while they
// are decoded; an empty dir means the system temp dir.
func NewSnapshotHandler(awards services.AwardService, uploadDir string) *SnapshotHandler {
	return &SnapshotHandler{awards: awards, uploadDir: uploadDir}
}

// GET /api/snapshot?compressed=true
func (h *SnapshotHandler) Download(c *gin.Context) {
	compressed := queryBool(c, "compressed")

	var buf bytes.Buffer
	res, err := h.awards.WriteSnapshot(c.Request.Context(), &buf, compressed)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}

	name := "awards-snapshot-" + time.Now().UTC().Format("20060102-150405") + ".json"
	contentType := "application/json"
	if compressed {
		name += snapshot.CompressedSuffix
		contentType = "application/gzip"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("X-Snapshot-Id", res.SnapshotID)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// POST /api/snapshot/rebuild?confirm=yes
//
// Destructive: deletes the summary and raw source, clears both backends and
// loads the uploaded snapshot.
func (h *SnapshotHandler) Rebuild(c *gin.Context) {
	if c.Query("confirm") != "yes" {
		response.RespondError(c, http.StatusPreconditionFailed, "confirmation_required",
			errors.New("rebuild deletes all stored records; repeat with confirm=yes"))
		return
	}
	path, cleanup, err := h.saveUpload(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}
	defer cleanup()

	rep, err := h.awards.ImportAndRebuild(c.Request.Context(), path)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rebuild": rep})
}

// POST /api/snapshot/import?overwrite=true
func (h *SnapshotHandler) Import(c *gin.Context) {
	path, cleanup, err := h.saveUpload(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}
	defer cleanup()

	rep, err := h.awards.ImportMerge(c.Request.Context(), path, queryBool(c, "overwrite"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"import": rep})
}

// saveUpload copies the multipart "file" field to a temp file that keeps
// the uploaded name's .gz suffix, since the codec picks gzip by suffix.
func (h *SnapshotHandler) saveUpload(c *gin.Context) (string, func(), error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("%w: multipart field \"file\" is required", apperr.ErrInvalidArgument)
	}
	src, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	pattern := "upload-*.json"
	if snapshot.IsCompressed(fh.Filename) {
		pattern += snapshot.CompressedSuffix
	}
	dst, err := os.CreateTemp(h.uploadDir, pattern)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(dst.Name()) }
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		cleanup()
		return "", nil, err
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return filepath.Clean(dst.Name()), cleanup, nil
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

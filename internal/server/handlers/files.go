package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/3leaps/issgate/pkg/iss"
)

// FileService is the subset of the file access client the handlers call.
type FileService interface {
	ListFiles(ctx context.Context, tenant, jobID, path string) ([]string, error)
	ListFilesMatching(ctx context.Context, tenant, jobID, path, pattern string) ([]string, error)
	DownloadFile(ctx context.Context, tenant, jobID, filePath string) ([]byte, error)
}

// FilesHandler serves the /api/v1/jobs/{jobID}/files routes.
type FilesHandler struct {
	files  FileService
	logger *zap.Logger
}

// NewFilesHandler wires the file routes to the file access client.
func NewFilesHandler(files FileService, logger *zap.Logger) *FilesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilesHandler{files: files, logger: logger}
}

// FileListResponse is the body for the file listing.
type FileListResponse struct {
	Files      []string `json:"files"`
	TotalFiles int      `json:"total_files"`
	JobID      string   `json:"job_id"`
}

// FileContentResponse wraps downloaded file content. The content is
// returned as a string inside a JSON body rather than as a raw stream.
type FileContentResponse struct {
	FileContent string `json:"file_content"`
}

// List serves GET /api/v1/jobs/{jobID}/files. The optional path query
// selects a subdirectory; the optional pattern query filters names with a
// glob.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		respondWithError(w, r, fmt.Errorf("job id is required: %w", iss.ErrValidation))
		return
	}

	q := r.URL.Query()
	tenant := q.Get("tenant")
	path := q.Get("path")
	pattern := q.Get("pattern")

	var (
		files []string
		err   error
	)
	if pattern != "" {
		files, err = h.files.ListFilesMatching(r.Context(), tenant, jobID, path, pattern)
	} else {
		files, err = h.files.ListFiles(r.Context(), tenant, jobID, path)
	}
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, FileListResponse{Files: files, TotalFiles: len(files), JobID: jobID})
}

// Download serves GET /api/v1/jobs/{jobID}/files/{path...}. The trailing
// wildcard is the file path relative to the job's artifact output.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		respondWithError(w, r, fmt.Errorf("job id is required: %w", iss.ErrValidation))
		return
	}

	filePath := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if filePath == "" {
		respondWithError(w, r, fmt.Errorf("file path is required: %w", iss.ErrValidation))
		return
	}

	content, err := h.files.DownloadFile(r.Context(), r.URL.Query().Get("tenant"), jobID, filePath)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, FileContentResponse{FileContent: string(content)})
}

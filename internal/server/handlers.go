package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/completion"
	"github.com/fyrsmithlabs/knowd/internal/ingest"
	"github.com/fyrsmithlabs/knowd/internal/retrieval"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

// maxUploadBytes caps document uploads at 50 MiB.
const maxUploadBytes = 50 << 20

// scrollPageSize is the page size used when walking the whole
// collection.
const scrollPageSize = 100

// UploadResponse is the response body for POST /api/v1/knowledge/upload.
type UploadResponse struct {
	Detail   string         `json:"detail"`
	Filename string         `json:"filename,omitempty"`
	Exists   bool           `json:"exists"`
	Message  string         `json:"message,omitempty"`
	Result   *ingest.Result `json:"result,omitempty"`
}

// SearchResponse is the response body for POST /api/v1/knowledge/search.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []retrieval.Result `json:"results"`
	Count   int                `json:"count"`
}

// ContextResponse is the response body for
// POST /api/v1/knowledge/generate-context.
type ContextResponse struct {
	Query       string            `json:"query"`
	ContextData *retrieval.Bundle `json:"context_data"`
	Prompts     PromptPair        `json:"prompts"`
}

// PromptPair bundles the rendered system and user prompts.
type PromptPair struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// FileInfo summarizes one uploaded document.
type FileInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	TotalChunks int    `json:"total_chunks"`
	ContentHash string `json:"content_hash"`
	ChunkCount  int    `json:"chunk_count"`
}

// FileListResponse is the response body for GET /api/v1/knowledge/files.
type FileListResponse struct {
	Files       []FileInfo `json:"files"`
	TotalFiles  int        `json:"total_files"`
	TotalChunks int        `json:"total_chunks"`
}

// DeleteResponse is the response body for
// DELETE /api/v1/knowledge/files/:filename.
type DeleteResponse struct {
	Detail        string `json:"detail"`
	Filename      string `json:"filename"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

// OverwriteResponse is the response body for
// POST /api/v1/knowledge/files/:filename/overwrite.
type OverwriteResponse struct {
	Detail        string         `json:"detail"`
	ChunksDeleted int            `json:"chunks_deleted"`
	Result        *ingest.Result `json:"result"`
}

// StatsResponse is the response body for GET /api/v1/knowledge/stats.
type StatsResponse struct {
	CollectionName string `json:"collection_name"`
	TotalDocuments int    `json:"total_documents"`
	VectorSize     int    `json:"vector_size"`
	DistanceMetric string `json:"distance_metric"`
	Status         string `json:"status"`
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Messages []completion.Message `json:"messages"`
}

func (s *Server) handleUpload(c echo.Context) error {
	filename, raw, err := readUpload(c)
	if err != nil {
		return err
	}

	existing, _, err := s.store.Scroll(c.Request().Context(),
		&vectorstore.Filter{Filename: filename}, 1, "")
	if err != nil {
		s.logger.Error("duplicate check failed", zap.String("filename", filename), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "error checking for existing file")
	}
	if len(existing) > 0 {
		return c.JSON(http.StatusOK, UploadResponse{
			Detail:   "File already exists",
			Filename: filename,
			Exists:   true,
			Message: fmt.Sprintf("A file named %q already exists in the knowledge base. "+
				"Would you like to overwrite it?", filename),
		})
	}

	result, err := s.pipeline.Ingest(c.Request().Context(), filename, raw)
	if err != nil {
		return ingestError(filename, err)
	}

	return c.JSON(http.StatusCreated, UploadResponse{
		Detail: "Document indexed successfully",
		Result: result,
	})
}

func (s *Server) handleSearch(c echo.Context) error {
	query := c.FormValue("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	limit := formInt(c, "limit", 10)
	threshold := formFloat(c, "score_threshold", s.rag.ScoreThreshold)

	results := s.engine.Search(c.Request().Context(), query, limit, float32(threshold), true)
	if results == nil {
		results = []retrieval.Result{}
	}

	return c.JSON(http.StatusOK, SearchResponse{
		Query:   query,
		Results: results,
		Count:   len(results),
	})
}

func (s *Server) handleGenerateContext(c echo.Context) error {
	query := c.FormValue("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	maxChunks := formInt(c, "max_chunks", s.rag.MaxChunks)
	maxChars := formInt(c, "max_chars", s.rag.MaxChars)

	bundle := s.engine.GetContext(c.Request().Context(), query,
		maxChunks, maxChars, float32(s.rag.ScoreThreshold))

	return c.JSON(http.StatusOK, ContextResponse{
		Query:       query,
		ContextData: bundle,
		Prompts: PromptPair{
			System: retrieval.SystemPrompt,
			User:   retrieval.UserPrompt(bundle, query),
		},
	})
}

func (s *Server) handleListFiles(c echo.Context) error {
	ctx := c.Request().Context()

	files := make(map[string]*FileInfo)
	var order []string
	cursor := ""
	for {
		points, next, err := s.store.Scroll(ctx, nil, scrollPageSize, cursor)
		if err != nil {
			s.logger.Error("listing files failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "error listing files")
		}
		for _, p := range points {
			info, ok := files[p.Payload.Filename]
			if !ok {
				info = &FileInfo{
					Filename:    p.Payload.Filename,
					ContentType: p.Payload.ContentType,
					TotalChunks: p.Payload.TotalChunks,
					ContentHash: p.Payload.ContentHash,
				}
				files[p.Payload.Filename] = info
				order = append(order, p.Payload.Filename)
			}
			info.ChunkCount++
		}
		if next == "" {
			break
		}
		cursor = next
	}

	resp := FileListResponse{Files: make([]FileInfo, 0, len(order))}
	for _, name := range order {
		resp.Files = append(resp.Files, *files[name])
		resp.TotalChunks += files[name].ChunkCount
	}
	resp.TotalFiles = len(resp.Files)

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteFile(c echo.Context) error {
	filename, err := pathFilename(c)
	if err != nil {
		return err
	}

	deleted, err := s.deleteFileChunks(c, filename)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return echo.NewHTTPError(http.StatusNotFound,
			fmt.Sprintf("file %q not found in knowledge base", filename))
	}

	return c.JSON(http.StatusOK, DeleteResponse{
		Detail:        "File deleted successfully",
		Filename:      filename,
		ChunksDeleted: deleted,
	})
}

func (s *Server) handleOverwriteFile(c echo.Context) error {
	filename, err := pathFilename(c)
	if err != nil {
		return err
	}
	_, raw, err := readUpload(c)
	if err != nil {
		return err
	}

	// A missing original is fine here: overwrite doubles as
	// create-or-replace.
	deleted, err := s.deleteFileChunks(c, filename)
	if err != nil {
		return err
	}

	result, err := s.pipeline.Ingest(c.Request().Context(), filename, raw)
	if err != nil {
		return ingestError(filename, err)
	}

	return c.JSON(http.StatusOK, OverwriteResponse{
		Detail:        "File overwritten successfully",
		ChunksDeleted: deleted,
		Result:        result,
	})
}

func (s *Server) handleStats(c echo.Context) error {
	info, err := s.store.CollectionInfo(c.Request().Context())
	if err != nil {
		s.logger.Error("stats lookup failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "error getting knowledge base stats")
	}

	return c.JSON(http.StatusOK, StatsResponse{
		CollectionName: info.Name,
		TotalDocuments: info.PointCount,
		VectorSize:     info.VectorSize,
		DistanceMetric: info.Distance,
		Status:         "healthy",
	})
}

// handleChat proxies a chat conversation to the completion backend and
// streams the reply back as plain text.
func (s *Server) handleChat(c echo.Context) error {
	if s.completions == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "chat backend not configured")
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages field is required")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	resp.WriteHeader(http.StatusOK)

	err := s.completions.Stream(c.Request().Context(), req.Messages, func(delta string) error {
		if _, err := io.WriteString(resp, delta); err != nil {
			return err
		}
		resp.Flush()
		return nil
	})
	if err != nil {
		// Headers are already sent, so the best we can do is log and
		// truncate the stream.
		s.logger.Error("chat stream aborted", zap.Error(err))
	}
	return nil
}

// deleteFileChunks removes every chunk stored under filename and
// returns how many were deleted.
func (s *Server) deleteFileChunks(c echo.Context, filename string) (int, error) {
	ctx := c.Request().Context()
	filter := &vectorstore.Filter{Filename: filename}

	var ids []string
	cursor := ""
	for {
		points, next, err := s.store.Scroll(ctx, filter, scrollPageSize, cursor)
		if err != nil {
			s.logger.Error("collecting chunks for deletion failed",
				zap.String("filename", filename), zap.Error(err))
			return 0, echo.NewHTTPError(http.StatusInternalServerError, "error deleting file")
		}
		for _, p := range points {
			ids = append(ids, p.ID)
		}
		if next == "" {
			break
		}
		cursor = next
	}

	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.store.Delete(ctx, ids); err != nil {
		s.logger.Error("deleting chunks failed",
			zap.String("filename", filename), zap.Error(err))
		return 0, echo.NewHTTPError(http.StatusInternalServerError, "error deleting file")
	}

	s.logger.Info("deleted file chunks",
		zap.String("filename", filename), zap.Int("chunks", len(ids)))
	return len(ids), nil
}

// readUpload extracts the multipart file field, capping its size.
func readUpload(c echo.Context) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	if fh.Size > maxUploadBytes {
		return "", nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d byte limit", maxUploadBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "unable to read uploaded file")
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "unable to read uploaded file")
	}
	if len(raw) > maxUploadBytes {
		return "", nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d byte limit", maxUploadBytes))
	}

	// Strip any client-supplied directory components.
	return filepath.Base(fh.Filename), raw, nil
}

// pathFilename decodes and sanitizes the :filename path parameter.
func pathFilename(c echo.Context) (string, error) {
	raw := c.Param("filename")
	decoded, err := url.PathUnescape(raw)
	if err != nil || decoded == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid filename")
	}
	return filepath.Base(decoded), nil
}

func ingestError(filename string, err error) error {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ingest.ErrEmptyDocument):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError,
			fmt.Sprintf("internal server error processing document %q", filename))
	}
}

func formInt(c echo.Context, field string, fallback int) int {
	v := c.FormValue(field)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func formFloat(c echo.Context, field string, fallback float64) float64 {
	v := c.FormValue(field)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		return fallback
	}
	return f
}

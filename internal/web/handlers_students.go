package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/logging"
	"github.com/go-chi/chi/v5"
)

// UploadResponse is the body returned after a successful import.
type UploadResponse struct {
	Message string `json:"message"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	page, err := parseIntParam(r, "page", defaultPage)
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, err := parseIntParam(r, "limit", defaultLimit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if limit > maxLimit {
		respondError(w, r, fmt.Errorf("%w: limit must not exceed %d", core.ErrInvalidInput, maxLimit))
		return
	}

	result, err := s.service.Directory.List(r.Context(), core.ListParams{
		Page:   page,
		Limit:  limit,
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	in, err := decodeStudent(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	student, err := s.service.Directory.Create(r.Context(), in.CreateFields(s.now()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	student, err := s.service.Directory.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	in, err := decodeStudent(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	student, err := s.service.Directory.Update(r.Context(), chi.URLParam(r, "id"), in.Fields())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Directory.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Student deleted successfully"})
}

// handleUploadStudents imports the multipart "file" field.
func (s *Server) handleUploadStudents(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	if r.ContentLength > maxSize {
		respondError(w, r, fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, maxSize))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, maxSize))
			return
		}
		respondError(w, r, fmt.Errorf("%w: invalid multipart form: %v", core.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	if !core.SupportedFile(header.Filename) {
		respondError(w, r, fmt.Errorf("%w: %q", core.ErrUnsupportedFile, header.Filename))
		return
	}

	ctx := r.Context()
	if s.cfg.Upload.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Upload.Timeout)
		defer cancel()
	}

	result, err := s.service.Import(ctx, header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "file", header.Filename, "size", header.Size).
		Info("upload processed", "created", result.Created, "skipped", result.Skipped)

	writeJSON(w, http.StatusOK, UploadResponse{
		Message: fmt.Sprintf("Successfully uploaded %d students", result.Created),
		Created: result.Created,
		Skipped: result.Skipped,
	})
}

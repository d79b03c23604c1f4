package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/detector"
	"github.com/kozaktomas/facewatch/internal/recognition"
)

const (
	errInvalidRequestBody = "invalid request body"

	maxUploadSize = 64 << 20
)

// IdentityResponse is one identity in the face index.
type IdentityResponse struct {
	Label string `json:"label"`
	Kind  string `json:"kind"`
	Faces int    `json:"faces"`
}

// EnrollResponse reports an enrollment.
type EnrollResponse struct {
	Identity string   `json:"identity"`
	Added    int      `json:"added"`
	Skipped  int      `json:"skipped"`
	Merged   []string `json:"merged,omitempty"`
	Outliers []int    `json:"outliers,omitempty"`
	Saved    bool     `json:"saved"`
}

// RenameRequest is the body of a rename.
type RenameRequest struct {
	Name string `json:"name"`
}

func (s *Server) listIdentities(w http.ResponseWriter, r *http.Request) {
	summaries := s.faces.Identities()
	out := make([]IdentityResponse, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, IdentityResponse{
			Label: sum.Identity.String(),
			Kind:  sum.Identity.Kind.String(),
			Faces: sum.Rows,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// enrollIdentity takes a multipart form with a name field and one or more
// images in the files field.
func (s *Server) enrollIdentity(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	images := make([][]byte, 0, len(headers))
	for _, fh := range headers {
		data, err := readUpload(fh)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to read %s", fh.Filename))
			return
		}
		images = append(images, data)
	}

	res, err := s.faces.Enroll(r.Context(), name, images)
	if err != nil && !errors.Is(err, database.ErrPersistence) {
		respondFaceError(w, err)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("identity", name).Msg("Enrollment applied but not saved")
	}

	resp := EnrollResponse{
		Identity: res.Identity.String(),
		Added:    res.Added,
		Skipped:  res.Skipped,
		Outliers: res.Outliers,
		Saved:    err == nil,
	}
	for _, m := range res.Merged {
		resp.Merged = append(resp.Merged, m.String())
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) renameIdentity(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	err := s.faces.Rename(label, req.Name)
	if err != nil && !errors.Is(err, database.ErrPersistence) {
		respondFaceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"identity": req.Name, "saved": err == nil})
}

func (s *Server) deleteIdentity(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")

	removed, err := s.faces.Delete(label)
	if err != nil && !errors.Is(err, database.ErrPersistence) {
		respondFaceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": removed, "saved": err == nil})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// respondFaceError maps index and recognition errors to HTTP statuses.
func respondFaceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, database.ErrInvalidLabel),
		errors.Is(err, database.ErrReservedLabel),
		errors.Is(err, detector.ErrDecodeFailure):
		status = http.StatusBadRequest
	case errors.Is(err, database.ErrLabelNotFound):
		status = http.StatusNotFound
	case errors.Is(err, database.ErrLabelExists),
		errors.Is(err, database.ErrLabelConflict):
		status = http.StatusConflict
	case errors.Is(err, recognition.ErrNoFaceDetected):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Face index request failed")
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

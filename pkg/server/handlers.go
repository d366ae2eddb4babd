package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/render"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

const maxBodyBytes = 1 << 20

type incidentRequest struct {
	RawContext string `json:"rawContext"`
}

type onboardingRequest struct {
	Role  string `json:"role"`
	Tools string `json:"tools"`
	Goals string `json:"goals"`
}

type pipelineRequest struct {
	Content  string         `json:"content"`
	Context  map[string]any `json:"context,omitempty"`
	Category string         `json:"category,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.RawContext) == "" {
		writeError(w, http.StatusBadRequest, "rawContext is required")

		return
	}

	resp := s.deps.Generator.GenerateIncidentSOP(r.Context(), req.RawContext)

	s.logFor(r).WithFields(observability.SOPFields(resp.SOP)).
		WithField("bone_status", resp.BoneHealth.Status).
		Info("Incident SOP generated")

	s.writeSOP(w, r, resp.SOP, resp)
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	var req onboardingRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Role) == "" {
		writeError(w, http.StatusBadRequest, "role is required")

		return
	}

	sop := s.deps.Generator.GenerateOnboardingPlan(r.Context(), req.Role, req.Tools, req.Goals)

	s.logFor(r).WithFields(observability.SOPFields(sop)).Info("Onboarding plan generated")

	s.writeSOP(w, r, sop, sop)
}

func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	var req pipelineRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")

		return
	}

	var forced *types.Category

	if req.Category != "" {
		category, err := types.ParseCategory(req.Category)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())

			return
		}

		forced = &category
	}

	result := s.deps.Generator.Run(r.Context(), types.RawInput{Content: req.Content, Context: req.Context}, forced)

	s.logFor(r).WithField("success", result.Success).Info("Pipeline run completed")

	writeJSON(w, http.StatusOK, result)
}

// writeSOP writes sop as markdown or HTML when ?format asks for it, and
// jsonBody otherwise.
func (s *Server) writeSOP(w http.ResponseWriter, r *http.Request, sop *types.SOP, jsonBody any) {
	var (
		body        []byte
		contentType string
		err         error
	)

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, jsonBody)

		return
	case "markdown", "md":
		body, err = render.Markdown(sop)
		contentType = "text/markdown; charset=utf-8"
	case "html":
		body, err = render.HTML(sop)
		contentType = "text/html; charset=utf-8"
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))

		return
	}

	if err != nil {
		s.logFor(r).WithError(err).Error("Failed to render SOP")
		writeError(w, http.StatusInternalServerError, "failed to render SOP")

		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// logFor returns the request-scoped logger set by the logging middleware.
func (s *Server) logFor(r *http.Request) logrus.FieldLogger {
	return observability.LoggerFromContext(r.Context(), s.log)
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")

			return false
		}

		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())

		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

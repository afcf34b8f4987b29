package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"asanapdf/internal/render"
	"asanapdf/internal/selection"
	"asanapdf/internal/service"
)

// ProjectsResponse is the body of GET /api/projects.
type ProjectsResponse struct {
	Projects []service.Project `json:"projects"`
}

// TasksResponse is the body of GET /api/projects/{projectID}/tasks.
type TasksResponse struct {
	Tasks        []service.Task                  `json:"tasks"`
	CustomFields []service.CustomFieldDescriptor `json:"custom_fields"`
}

// ExportRequest is the body of POST /api/export. Fields and CustomFields
// switch fields off (false) or on (true); unnamed fields stay on.
type ExportRequest struct {
	ProjectID    string          `json:"project_id" validate:"required"`
	TaskIDs      []string        `json:"task_ids" validate:"required,min=1,dive,required"`
	Fields       map[string]bool `json:"fields,omitempty"`
	CustomFields map[string]bool `json:"custom_fields,omitempty"`
	Introduction string          `json:"introduction,omitempty" validate:"max=20000"`
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	svc, ok := serviceFrom(r.Context())
	if !ok {
		RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
		return
	}

	projects, err := svc.ListProjects(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	projects = service.FilterProjects(projects, r.URL.Query().Get("q"))
	if projects == nil {
		projects = []service.Project{}
	}
	RespondWithJSON(w, r, http.StatusOK, ProjectsResponse{Projects: projects})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	svc, ok := serviceFrom(r.Context())
	if !ok {
		RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
		return
	}

	tasks, err := svc.ListTasks(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := TasksResponse{
		Tasks:        tasks,
		CustomFields: service.CustomFieldCatalog(tasks),
	}
	if resp.Tasks == nil {
		resp.Tasks = []service.Task{}
	}
	if resp.CustomFields == nil {
		resp.CustomFields = []service.CustomFieldDescriptor{}
	}
	RespondWithJSON(w, r, http.StatusOK, resp)
}

// handleExport builds a selection for this request only and streams the
// rendered document.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	svc, ok := serviceFrom(r.Context())
	if !ok {
		RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request: project_id and task_ids are required", err)
		return
	}

	tasks, err := svc.ListTasks(r.Context(), req.ProjectID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	state := selection.New(s.log)
	state.SelectProject(service.Project{ID: req.ProjectID}, tasks)
	for _, id := range req.TaskIDs {
		if state.IsSelected(id) {
			continue
		}
		if err := state.ToggleTask(id); err != nil {
			handleError(w, r, err)
			return
		}
	}
	if err := state.ApplyToggles(req.Fields, req.CustomFields); err != nil {
		handleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	renderer := render.New(s.backend, s.bannerTitle, s.log)
	if err := renderer.Render(&buf, state.Rendered(), req.Introduction); err != nil {
		handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", render.Filename(s.now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.log.Warn("failed to send document", "error", err)
	}
}

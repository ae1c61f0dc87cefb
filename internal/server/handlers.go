package server

import (
	"net/http"
	"strconv"

	"github.com/joss/actionplan/internal/export"
	"github.com/joss/actionplan/internal/metrics"
	"github.com/joss/actionplan/internal/plan"
)

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	plans, err := s.engine.ListPlans(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title      string                `json:"title"`
		AnalysisID string                `json:"analysis_id"`
		Phases     []plan.GeneratedPhase `json:"phases"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := s.engine.CreatePlan(r.Context(), req.Title, req.AnalysisID, actor(r),
		&plan.GeneratedPlan{Phases: req.Phases})
	if err != nil {
		writeError(w, err)
		return
	}
	writePlan(w, http.StatusCreated, p)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writePlan(w, http.StatusOK, p)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, plan.Mutation{Op: plan.OpArchivePlan})
}

func (s *Server) handleUnarchive(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, plan.Mutation{Op: plan.OpUnarchivePlan})
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhaseID       string   `json:"phase_id"`
		Title         string   `json:"title"`
		Description   string   `json:"description"`
		EstimatedTime string   `json:"estimated_time"`
		Resources     []string `json:"resources"`
		AfterTaskID   string   `json:"after_task_id"`
		Prepend       bool     `json:"prepend"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mutateStatus(w, r, plan.Mutation{
		Op:            plan.OpAddTask,
		PhaseID:       req.PhaseID,
		Title:         req.Title,
		Description:   req.Description,
		EstimatedTime: req.EstimatedTime,
		Resources:     req.Resources,
		AfterTaskID:   req.AfterTaskID,
		Prepend:       req.Prepend,
		CreatedBy:     plan.OriginUser,
	}, http.StatusCreated)
}

// handlePatchTask edits task content or transitions its status. A
// request with "status" set is a status transition; content fields in
// the same request are rejected to keep history entries single-purpose.
func (s *Server) handlePatchTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title         *string   `json:"title"`
		Description   *string   `json:"description"`
		EstimatedTime *string   `json:"estimated_time"`
		Resources     *[]string `json:"resources"`
		Status        string    `json:"status"`
		Override      bool      `json:"override"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	m := plan.Mutation{TaskID: r.PathValue("taskID")}
	if req.Status != "" {
		if req.Title != nil || req.Description != nil || req.EstimatedTime != nil || req.Resources != nil {
			writeError(w, plan.ErrValidation)
			return
		}
		m.Op = plan.OpSetStatus
		m.Status = plan.Status(req.Status)
		m.Override = req.Override
	} else {
		m.Op = plan.OpEditTask
		m.NewTitle = req.Title
		m.NewDescription = req.Description
		m.NewEstimatedTime = req.EstimatedTime
		m.NewResources = req.Resources
	}
	s.mutate(w, r, m)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, plan.Mutation{
		Op:     plan.OpDeleteTask,
		TaskID: r.PathValue("taskID"),
	})
}

func (s *Server) handleReorderTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewOrder int `json:"new_order"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mutate(w, r, plan.Mutation{
		Op:       plan.OpReorderTask,
		TaskID:   r.PathValue("taskID"),
		NewOrder: req.NewOrder,
	})
}

func (s *Server) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PrerequisiteID string `json:"prerequisite_id"`
		DependentID    string `json:"dependent_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mutateStatus(w, r, plan.Mutation{
		Op:             plan.OpAddDependency,
		PrerequisiteID: req.PrerequisiteID,
		TaskID:         req.DependentID,
	}, http.StatusCreated)
}

func (s *Server) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, plan.Mutation{
		Op:     plan.OpRemoveDependency,
		EdgeID: r.PathValue("edgeID"),
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	p, entry, err := s.engine.Undo(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("ETag", strconv.FormatInt(p.Version, 10))
	writeJSON(w, http.StatusOK, map[string]any{"plan": p, "entry": entry})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan.Recompute(p))
}

func (s *Server) handleProgressHistory(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.engine.ProgressHistory(r.Context(), r.PathValue("id"), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var from int64
	if raw := r.URL.Query().Get("from"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			from = v
		}
	}
	entries, err := s.engine.History(r.Context(), r.PathValue("id"), from)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Format           string `json:"format"`
		IncludeCompleted bool   `json:"include_completed"`
		IncludeSkipped   bool   `json:"include_skipped"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Format == "" {
		req.Format = string(export.FormatJSON)
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := s.engine.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	snap := export.Build(p, export.Options{
		IncludeCompleted: req.IncludeCompleted,
		IncludeSkipped:   req.IncludeSkipped,
	})
	out, err := export.Serialize(snap, format)
	metrics.Global().RecordExport(err == nil)
	if err != nil {
		writeError(w, err)
		return
	}

	switch format {
	case export.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	case export.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	case export.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// mutate runs one version-anchored mutation and replies with the new
// plan state.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, m plan.Mutation) {
	s.mutateStatus(w, r, m, http.StatusOK)
}

func (s *Server) mutateStatus(w http.ResponseWriter, r *http.Request, m plan.Mutation, status int) {
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	m.ActorID = actor(r)

	p, _, err := s.engine.Apply(r.Context(), r.PathValue("id"), m, version)
	if err != nil {
		writeError(w, err)
		return
	}
	writePlan(w, status, p)
}

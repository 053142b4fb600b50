package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Live-to-Role/grimoire/internal/library"
)

type ruleDTO struct {
	ID            string     `json:"id"`
	RuleType      string     `json:"rule_type"`
	Pattern       string     `json:"pattern"`
	Enabled       bool       `json:"enabled"`
	Priority      int        `json:"priority"`
	IsDefault     bool       `json:"is_default"`
	FilesExcluded int64      `json:"files_excluded"`
	LastMatchedAt *time.Time `json:"last_matched_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toRuleDTO(r *library.ExclusionRule) ruleDTO {
	return ruleDTO{
		ID:            r.ID,
		RuleType:      string(r.RuleType),
		Pattern:       r.Pattern,
		Enabled:       r.Enabled,
		Priority:      r.Priority,
		IsDefault:     r.IsDefault,
		FilesExcluded: r.FilesExcluded,
		LastMatchedAt: r.LastMatchedAt,
		CreatedAt:     r.CreatedAt,
	}
}

func (a *API) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := a.service.ListRules()
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	out := make([]ruleDTO, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleDTO(rule))
	}
	a.writeJSON(w, http.StatusOK, out)
}

type createRuleRequest struct {
	RuleType string `json:"rule_type"`
	Pattern  string `json:"pattern"`
	Priority int    `json:"priority"`
}

// handleCreateRule validates and creates a custom exclusion rule.
// An invalid regex or size pattern is rejected with 400 here, never
// silently accepted and ignored at scan time.
func (a *API) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rule, err := a.service.AddRule(library.RuleType(req.RuleType), req.Pattern, req.Priority)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toRuleDTO(rule))
}

type updateRuleRequest struct {
	Pattern  *string `json:"pattern"`
	Enabled  *bool   `json:"enabled"`
	Priority *int    `json:"priority"`
}

func (a *API) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req updateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rule, err := a.service.UpdateRule(chi.URLParam(r, "id"), library.RulePatch{
		Pattern:  req.Pattern,
		Enabled:  req.Enabled,
		Priority: req.Priority,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toRuleDTO(rule))
}

func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := a.service.RemoveRule(chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package director

import (
	"net/http"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/gorilla/mux"
)

type policyPayload struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Config      types.JSONMap `json:"config"`
	Enabled     *bool         `json:"enabled"`
}

// PoliciesHandler serves GET /api/policies.
func (d *Director) PoliciesHandler(w http.ResponseWriter, r *http.Request) {
	var policies []types.Policy
	if err := d.db.Order("id").Find(&policies).Error; err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to fetch policies")
		return
	}
	jsonResponse(w, http.StatusOK, policies)
}

// PostPolicyHandler serves POST /api/policies.
func (d *Director) PostPolicyHandler(w http.ResponseWriter, r *http.Request) {
	var payload policyPayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid policy payload")
		return
	}
	if payload.Name == "" {
		errorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	now := time.Now().UTC()
	policy := types.Policy{
		Name:        payload.Name,
		Description: payload.Description,
		Config:      payload.Config,
		Enabled:     payload.Enabled == nil || *payload.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.db.Create(&policy).Error; err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to create policy")
		return
	}

	jsonResponse(w, http.StatusCreated, policy)
}

// PutPolicyHandler serves PUT /api/policies/{id}.
func (d *Director) PutPolicyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid policy id")
		return
	}

	var policy types.Policy
	if err := d.db.First(&policy, id).Error; err != nil {
		if isNotFound(err) {
			errorResponse(w, http.StatusNotFound, "Policy not found")
			return
		}
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to load policy")
		return
	}

	var payload policyPayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid policy payload")
		return
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if payload.Name != "" {
		updates["name"] = payload.Name
	}
	if payload.Description != "" {
		updates["description"] = payload.Description
	}
	if payload.Config != nil {
		updates["config"] = payload.Config
	}
	if payload.Enabled != nil {
		updates["enabled"] = *payload.Enabled
	}

	if err := d.db.Model(&policy).Updates(updates).Error; err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to update policy")
		return
	}

	if err := d.db.First(&policy, id).Error; err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to load policy")
		return
	}
	jsonResponse(w, http.StatusOK, policy)
}

// DeletePolicyHandler serves DELETE /api/policies/{id}.
func (d *Director) DeletePolicyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid policy id")
		return
	}

	res := d.db.Delete(&types.Policy{}, id)
	if res.Error != nil {
		ErrorLogger(LogHolder{Message: res.Error.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to delete policy")
		return
	}
	if res.RowsAffected == 0 {
		errorResponse(w, http.StatusNotFound, "Policy not found")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{"success": true})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-pos/gate"
	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/models"
	"gorm.io/gorm"
)

// AdminHandler manages profiles and their assignment to users.
type AdminHandler struct {
	DB            *gorm.DB
	CacheResolver *gate.CachedResolver[uint] // invalidated on changes
	log           *logging.Logger
}

func NewAdminHandler(db *gorm.DB, cacheResolver *gate.CachedResolver[uint], log *logging.Logger) *AdminHandler {
	return &AdminHandler{DB: db, CacheResolver: cacheResolver, log: log}
}

// Profiles lists profiles with their permissions.
func (h *AdminHandler) Profiles(w http.ResponseWriter, r *http.Request) {
	var profiles []models.Profile
	if err := h.DB.WithContext(r.Context()).Preload("Permissions").Order("name").Find(&profiles).Error; err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

// Permissions lists every known permission.
func (h *AdminHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	var permissions []models.Permission
	if err := h.DB.WithContext(r.Context()).Order("resource_type, action").Find(&permissions).Error; err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissions)
}

type savePermissionsRequest struct {
	Permissions []string `json:"permissions"` // "resource:action" codes
}

// SavePermissions replaces the permissions of a profile.
func (h *AdminHandler) SavePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req savePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	db := h.DB.WithContext(r.Context())
	var profile models.Profile
	if err := db.First(&profile, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "profile_not_found", nil)
		return
	}

	var permissions []models.Permission
	unknown := []string{}
	for _, code := range req.Permissions {
		res, act := gate.Permission(code).Parse()
		var perm models.Permission
		err := db.Where("resource_type = ? AND action = ?", res, string(act)).First(&perm).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || res == "" {
			unknown = append(unknown, code)
			continue
		}
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		permissions = append(permissions, perm)
	}
	if len(unknown) > 0 {
		httpx.JSONError(w, http.StatusBadRequest, "unknown_permission", unknown)
		return
	}

	if err := db.Model(&profile).Association("Permissions").Replace(permissions); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	// the profile may be shared by many users
	if h.CacheResolver != nil {
		h.CacheResolver.InvalidateAll()
	}
	profile.Permissions = permissions
	httpx.JSON(w, http.StatusOK, profile)
}

// Users lists users with their profile.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	if err := h.DB.WithContext(r.Context()).Preload("Profile").Order("email").Find(&users).Error; err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

type assignProfileRequest struct {
	ProfileID *uint `json:"profile_id"` // null removes the profile
}

// AssignProfile handles POST /api/admin/users/{id}/profile.
func (h *AdminHandler) AssignProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req assignProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	db := h.DB.WithContext(r.Context())
	if req.ProfileID != nil {
		var profile models.Profile
		if err := db.First(&profile, *req.ProfileID).Error; err != nil {
			httpx.JSONError(w, http.StatusNotFound, "profile_not_found", nil)
			return
		}
	}

	res := db.Model(&models.User{}).Where("id = ?", userID).Update("profile_id", req.ProfileID)
	if res.Error != nil {
		writeError(w, r, h.log, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		httpx.JSONError(w, http.StatusNotFound, "user_not_found", nil)
		return
	}
	if h.CacheResolver != nil {
		h.CacheResolver.Invalidate(userID)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "profile_id": req.ProfileID})
}

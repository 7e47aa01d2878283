package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"laundrylink-backend/internal/auth"
	"laundrylink-backend/internal/model"
	"laundrylink-backend/internal/store"
)

type signUpRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	FullName   string `json:"full_name" binding:"required"`
	Phone      string `json:"phone"`
	RoomNumber string `json:"room_number"`
	StudentID  string `json:"student_id"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Profile   *model.Profile `json:"profile"`
}

// SignUp registers a student account and starts a session.
func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		badRequest(c, fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	profile := &model.Profile{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Role:         model.RoleStudent,
		RoomNumber:   req.RoomNumber,
		StudentID:    req.StudentID,
		PasswordHash: hash,
	}
	if err := h.store.CreateProfile(c.Request.Context(), profile); err != nil {
		h.respondError(c, err)
		return
	}

	h.startSession(c, http.StatusCreated, profile)
}

// SignIn exchanges email and password for a token.
func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	profile, err := h.store.GetProfileByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		h.respondError(c, auth.ErrInvalidCredentials)
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := auth.CheckPassword(profile.PasswordHash, req.Password); err != nil {
		h.respondError(c, err)
		return
	}

	h.startSession(c, http.StatusOK, profile)
}

// Me returns the caller's profile.
func (h *Handler) Me(c *gin.Context) {
	profile, err := h.store.GetProfile(c.Request.Context(), h.identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) startSession(c *gin.Context, status int, p *model.Profile) {
	token, exp, err := h.tokens.Issue(p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, sessionResponse{Token: token, ExpiresAt: exp, Profile: p})
}

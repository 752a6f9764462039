package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/service"
	"teamboard/pkg/logger"
)

type AuthHandler struct {
	auth   Auth
	logger *zap.Logger
}

func NewAuthHandler(auth Auth, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please add all fields")
		return
	}

	res, err := h.auth.Signup(c.Request.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, "Signup", err)
		return
	}
	logger.WithTrace(c.Request.Context(), h.logger).Info("User registered", zap.String("user_id", res.ID))
	c.JSON(http.StatusCreated, res)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "Login", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Profile handles GET /api/auth/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	p, err := h.auth.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, "Profile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateProfile handles PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		Name     string  `json:"name"`
		Email    string  `json:"email"`
		Avatar   *string `json:"avatar"`
		Password string  `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	res, err := h.auth.UpdateProfile(c.Request.Context(), currentUser(c), service.UpdateProfileInput{
		Name:     req.Name,
		Email:    req.Email,
		Avatar:   req.Avatar,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, "UpdateProfile", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Users handles GET /api/auth/users
func (h *AuthHandler) Users(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ListUsers", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

package app

import (
	"net/http"
	"strings"

	"relgraph/internal/service"
	"relgraph/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type AuthHandler struct {
	authService service.AuthService
	registry    *service.SessionRegistry
	jwtSecret   string
}

func NewAuthHandler(authService service.AuthService, registry *service.SessionRegistry, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		registry:    registry,
		jwtSecret:   jwtSecret,
	}
}

// Register handles user registration
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, bindingErrorMessage(err))
		return
	}

	resp, err := h.authService.Register(req)
	if err != nil {
		util.ErrorResponse(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Registration successful", resp)
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, bindingErrorMessage(err))
		return
	}

	resp, err := h.authService.Login(req)
	if err != nil {
		util.Unauthorized(c, err.Error())
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Login successful", resp)
}

// Logout drops the actor's relationship session so a re-authentication
// starts from a clean projection
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	h.registry.Evict(userID.(string))
	util.SuccessResponse(c, http.StatusOK, "Logged out", nil)
}

// AuthMiddleware validates JWT token
func (h *AuthHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			util.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			util.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := util.ValidateToken(parts[1], h.jwtSecret)
		if err != nil {
			util.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("username", claims.Username)
		c.Next()
	}
}

// bindingErrorMessage turns validator errors into a readable message
func bindingErrorMessage(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		fields := make([]string, 0, len(verrs))
		for _, verr := range verrs {
			fields = append(fields, strings.ToLower(verr.Field())+" failed on "+verr.Tag())
		}
		return "validation failed: " + strings.Join(fields, ", ")
	}
	return err.Error()
}

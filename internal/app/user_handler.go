package app

import (
	"net/http"
	"strconv"

	"relgraph/internal/repository"
	"relgraph/internal/util"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userRepo repository.UserRepository
}

func NewUserHandler(userRepo repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// SearchUsers handles searching users by username or name
// GET /api/v1/users/search?q=...&limit=20&offset=0
func (h *UserHandler) SearchUsers(c *gin.Context) {
	keyword := c.Query("q")
	if keyword == "" {
		util.BadRequest(c, "Search keyword is required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	users, err := h.userRepo.SearchUsers(keyword, limit, offset)
	if err != nil {
		util.ErrorResponse(c, http.StatusInternalServerError, "Failed to search users", nil)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Users retrieved", gin.H{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}

// GetUser handles fetching a single user
// GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		util.BadRequest(c, "User ID is required")
		return
	}

	user, err := h.userRepo.FindByID(id)
	if err != nil {
		util.NotFound(c, "User not found")
		return
	}

	util.SuccessResponse(c, http.StatusOK, "User retrieved", gin.H{"user": user})
}

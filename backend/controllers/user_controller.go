package controllers

import (
	"time"

	"learnplan/backend/middleware"
	"learnplan/backend/models"
	"learnplan/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type UserController struct {
	Log *utils.Logger
}

func NewUserController(log *utils.Logger) *UserController {
	return &UserController{Log: log}
}

// UserResponse is the public view of a user, without the password hash.
type UserResponse struct {
	ID           uint       `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	StreakDays   int        `json:"streak_days"`
	LastActivity *time.Time `json:"last_activity"`
	CreatedAt    time.Time  `json:"created_at"`
}

func NewUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		StreakDays:   user.StreakDays,
		LastActivity: user.LastActivity,
		CreatedAt:    user.CreatedAt,
	}
}

// Me godoc
// @Summary Get user profile
// @Description Returns authenticated user's profile data
// @Tags users
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /users/me [get]
func (uc *UserController) Me(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return utils.Unauthorized(c, "Not authenticated")
	}
	return utils.Success(c, fiber.StatusOK, NewUserResponse(user))
}

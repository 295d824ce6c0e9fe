package controllers

import (
	"learnplan/backend/middleware"
	"learnplan/backend/services"
	"learnplan/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type ActivityController struct {
	Progress *services.ProgressService
	Log      *utils.Logger
}

func NewActivityController(progress *services.ProgressService, log *utils.Logger) *ActivityController {
	return &ActivityController{Progress: progress, Log: log}
}

type ActivityResponse struct {
	Status string `json:"status"`
	*services.ActivityResult
}

// LogActivity godoc
// @Summary Log an activity
// @Description Records an activity event. Completed events credit the activity once and update plan progress.
// @Tags activity
// @Accept json
// @Produce json
// @Param request body services.LogActivityInput true "Activity event"
// @Success 200 {object} ActivityResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /activity/log [post]
func (ac *ActivityController) LogActivity(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var input services.LogActivityInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	result, err := ac.Progress.LogActivity(c.UserContext(), user.ID, input)
	if err != nil {
		return utils.Fail(c, ac.Log, err)
	}
	return utils.Success(c, fiber.StatusOK, ActivityResponse{Status: "success", ActivityResult: result})
}

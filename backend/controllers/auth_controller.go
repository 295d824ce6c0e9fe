package controllers

import (
	"learnplan/backend/services"
	"learnplan/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type AuthController struct {
	Auth *services.AuthService
	Log  *utils.Logger
}

func NewAuthController(auth *services.AuthService, log *utils.Logger) *AuthController {
	return &AuthController{Auth: auth, Log: log}
}

// Register godoc
// @Summary Register a new user
// @Description Creates a new user account
// @Tags auth
// @Accept json
// @Produce json
// @Param user body services.RegisterInput true "User registration data"
// @Success 201 {object} UserResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Router /register/ [post]
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var input services.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	user, err := ac.Auth.Register(c.UserContext(), input)
	if err != nil {
		return utils.Fail(c, ac.Log, err)
	}
	return utils.Created(c, NewUserResponse(user))
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.LoginInput true "Login credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Router /login/ [post]
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input services.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	token, err := ac.Auth.Login(c.UserContext(), input)
	if err != nil {
		return utils.Fail(c, ac.Log, err)
	}
	return utils.Success(c, fiber.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

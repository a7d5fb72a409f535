package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"promptchat/internal/app"
	"promptchat/internal/transport/http/middleware"
	"promptchat/internal/transport/http/response"
)

type AuthHandler struct {
	authService  *app.AuthService
	cookieName   string
	cookieMaxAge int
}

func NewAuthHandler(authService *app.AuthService, cookieName string, cookieMaxAge int) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookieName:   cookieName,
		cookieMaxAge: cookieMaxAge,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := h.authService.Register(app.RegisterInput{
		Username: username,
		Password: password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDuplicateUsername):
			response.Error(c, http.StatusBadRequest, response.CodeUsernameExists, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "register failed")
		}
		return
	}

	response.OK(c, "registration successful, please log in", gin.H{
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
		},
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Username: username,
		Password: password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidCredential):
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		}
		return
	}

	c.SetCookie(h.cookieName, result.Token, h.cookieMaxAge, "/", "", false, true)
	response.OK(c, "welcome to your personal area", gin.H{
		"token": result.Token,
		"user": gin.H{
			"id":       result.User.ID,
			"username": result.User.Username,
		},
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if token, exists := c.Get(middleware.ContextTokenKey); exists {
		if tokenStr, ok := token.(string); ok {
			_ = h.authService.Logout(c.Request.Context(), tokenStr)
		}
	}

	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/login")
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found in session")
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch current user failed")
		return
	}
	if user == nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found")
		return
	}

	response.OK(c, "ok", gin.H{
		"id":       user.ID,
		"username": user.Username,
	})
}

package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appsvc "promptchat/internal/app"
	"promptchat/internal/bootstrap"
	"promptchat/internal/cache"
	"promptchat/internal/repository"
	"promptchat/internal/transport/http/handler"
	"promptchat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)

	userRepo := repository.NewUserRepository(app.MySQL)
	chatRepo := repository.NewChatRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)

	sessionTTL := time.Duration(app.Config.Auth.SessionExpireMinute) * time.Minute
	sessionStore := cache.NewSessionStore(app.Redis, sessionTTL)

	authService := appsvc.NewAuthService(
		userRepo,
		sessionStore,
		app.Config.Auth.JWTSecret,
		sessionTTL,
	)
	chatService := appsvc.NewChatService(
		chatRepo,
		messageRepo,
		app.EventPublisher,
		app.Answerer,
		app.Config.Answer.MaxContextMessage,
	)

	authHandler := handler.NewAuthHandler(authService, app.Config.Auth.SessionCookie, int(sessionTTL.Seconds()))
	chatHandler := handler.NewChatHandler(chatService)
	healthHandler := handler.NewHealthHandler(app)

	return buildRouter(routerDeps{
		AuthHandler:  authHandler,
		ChatHandler:  chatHandler,
		HealthCheck:  healthHandler.Check,
		RequireLogin: middleware.RequireSession(authService, app.Config.Auth.SessionCookie),
	})
}

type routerDeps struct {
	AuthHandler  *handler.AuthHandler
	ChatHandler  *handler.ChatHandler
	HealthCheck  gin.HandlerFunc
	RequireLogin gin.HandlerFunc
}

func buildRouter(deps routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/login", loginPage)
	router.GET("/healthz", deps.HealthCheck)

	router.POST("/register", deps.AuthHandler.Register)
	router.POST("/login", deps.AuthHandler.Login)

	authorized := router.Group("/")
	authorized.Use(deps.RequireLogin)
	authorized.GET("/logout", deps.AuthHandler.Logout)
	authorized.GET("/me", deps.AuthHandler.Me)
	authorized.POST("/chat", deps.ChatHandler.SubmitPrompt)
	authorized.POST("/delete_chat/:id", deps.ChatHandler.DeleteChat)
	authorized.GET("/chats", deps.ChatHandler.ListChats)
	authorized.POST("/chats", deps.ChatHandler.CreateChat)
	authorized.GET("/chat/:id/messages", deps.ChatHandler.GetMessages)

	return router
}

// loginPage is the anonymous entry point protected routes redirect to.
func loginPage(c *gin.Context) {
	c.String(http.StatusOK, "login required: POST /login with username and password")
}

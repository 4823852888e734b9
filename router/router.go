package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"drxchat/api"
	"drxchat/config"
	_ "drxchat/docs"
	"drxchat/middleware"
	"drxchat/storage"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, store storage.Storage, completer api.Completer, log *zap.Logger) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	// CORS 中间件
	r.Use(CORSMiddleware())

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	chatHandler := api.NewChatHandler(store, log)
	messageHandler := api.NewMessageHandler(store, completer, cfg, log)
	exportHandler := api.NewExportHandler(store, log)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.Health)

		chats := apiGroup.Group("/chats")
		{
			chats.POST("", chatHandler.Create)
			chats.GET("", chatHandler.ListByUser)
			chats.GET("/:chatId", chatHandler.Get)
			chats.GET("/:chatId/messages", messageHandler.List)
			chats.POST("/:chatId/messages", messageHandler.Send)
			chats.DELETE("/:chatId/messages", messageHandler.Clear)
			chats.GET("/:chatId/export", exportHandler.Export)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		api.NotFound(c, "Not found")
	})

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

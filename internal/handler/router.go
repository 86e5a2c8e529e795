package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 在 /api/v1 分组下注册所有路由，importHandler 为 nil 时不开放导入接口。
func RegisterRoutes(r *gin.Engine, chatHandler *ChatHistoryHandler, importHandler *ImportHandler) {
	r.GET("/healthz", Health)

	apiV1 := r.Group("/api/v1")
	{
		chatSession := apiV1.Group("/chatSession")
		{
			chatSession.POST("/create", chatHandler.CreateSession)
			chatSession.GET("/getChat/:chatId", chatHandler.GetSession)
			chatSession.GET("/getChatMessages/:chatId", chatHandler.GetMessages)
			chatSession.POST("/edit", chatHandler.EditSession)
			chatSession.POST("/message", chatHandler.AppendMessage)
		}

		if importHandler != nil {
			apiV1.POST("/importDocument", importHandler.ImportDocument)
		}
	}
}

// Health 是存活探针。
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "ok",
	})
}

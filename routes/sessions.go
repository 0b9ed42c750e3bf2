package routes

import (
	"net/http"

	"pdf-rag-chatbot/middleware"
	"pdf-rag-chatbot/models"
	"pdf-rag-chatbot/services"
	"pdf-rag-chatbot/utils"

	"github.com/gin-gonic/gin"
)

// SetupSessionRoutes wires session lifecycle endpoints. A session owns
// one vector collection and one document; deleting it removes all three.
func SetupSessionRoutes(router *gin.Engine, sessions *services.SessionService, auth *middleware.AuthMiddleware) {
	group := router.Group("/sessions")
	group.Use(auth.RequireAuth())

	group.POST("", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		session, err := sessions.Create(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create session", nil)
			return
		}

		c.JSON(http.StatusCreated, session)
	})

	group.GET("", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		list, err := sessions.List(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list sessions", nil)
			return
		}
		if list == nil {
			list = []models.Session{}
		}

		c.JSON(http.StatusOK, gin.H{"sessions": list, "count": len(list)})
	})

	group.GET("/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		session, err := sessions.Get(c.Request.Context(), c.Param("id"), userID)
		if err != nil {
			utils.RespondWithNotFound(c, "Session not found")
			return
		}

		c.JSON(http.StatusOK, session)
	})

	group.DELETE("/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		session, err := sessions.Get(c.Request.Context(), c.Param("id"), userID)
		if err != nil {
			utils.RespondWithNotFound(c, "Session not found")
			return
		}

		if err := sessions.Delete(c.Request.Context(), session); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete session", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Session deleted", "id": session.ID})
	})

	// Collection-addressed teardown for clients that track the vector
	// collection name rather than the session id.
	collections := router.Group("/collections")
	collections.Use(auth.RequireAuth())

	collections.DELETE("/:name", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		session, err := sessions.GetByCollection(c.Request.Context(), c.Param("name"), userID)
		if err != nil {
			utils.RespondWithNotFound(c, "Collection not found")
			return
		}

		if err := sessions.Delete(c.Request.Context(), session); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete collection", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Collection deleted", "collection": session.CollectionName})
	})
}

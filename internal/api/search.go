package api

import (
	"net/http"

	"github.com/darp-registry/darp/pkg/types"
	"github.com/gin-gonic/gin"
)

// searchServersHandler returns the servers relevant to the query, most relevant first.
func (s *Server) searchServersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		servers, err := s.searchService.Search(c.Request.Context(), c.Query("query"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toPublicList(servers))
	}
}

func (s *Server) searchURLsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		urls, err := s.searchService.SearchURLs(c.Request.Context(), c.Query("query"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, &types.SearchURLsResponse{URLs: urls})
	}
}

func (s *Server) routeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input types.RouteRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		transcript, err := s.routingEngine.Route(c.Request.Context(), input.Request)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, &types.RouteResponse{Conversation: transcript})
	}
}

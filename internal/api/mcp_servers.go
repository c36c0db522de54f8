package api

import (
	"net/http"
	"strconv"

	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/internal/model"
	"github.com/darp-registry/darp/internal/service/catalog"
	"github.com/darp-registry/darp/pkg/types"
	"github.com/gin-gonic/gin"
)

func (s *Server) createServerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input types.CreateServerInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		srv, err := s.catalogService.Create(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusCreated, srv.ToPublicWithTools())
	}
}

// listServersHandler returns one page of the catalog,
// or the servers with the given ids when the ids query parameter is present.
func (s *Server) listServersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rawIDs, ok := c.GetQueryArray("ids"); ok {
			ids := make([]uint, 0, len(rawIDs))
			for _, raw := range rawIDs {
				id, err := parseID(raw)
				if err != nil {
					abortWithError(c, err)
					return
				}
				ids = append(ids, id)
			}
			servers, err := s.catalogService.GetByIDs(c.Request.Context(), ids)
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, toPublicList(servers))
			return
		}

		page, err := intQuery(c, "page", 1)
		if err != nil {
			abortWithError(c, err)
			return
		}
		size, err := intQuery(c, "size", catalog.DefaultPageSize)
		if err != nil {
			abortWithError(c, err)
			return
		}

		result, err := s.catalogService.List(c.Request.Context(), page, size)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (s *Server) getServerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}

		srv, err := s.catalogService.Get(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, srv.ToPublicWithTools())
	}
}

func (s *Server) updateServerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}

		var input types.UpdateServerInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		srv, err := s.catalogService.Update(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, srv.ToPublicWithTools())
	}
}

func (s *Server) deleteServerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}

		if err := s.catalogService.Delete(c.Request.Context(), id); err != nil {
			abortWithError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func toPublicList(servers []model.Server) []*types.ServerWithTools {
	out := make([]*types.ServerWithTools, 0, len(servers))
	for i := range servers {
		out = append(out, servers[i].ToPublicWithTools())
	}
	return out
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return 0, errs.InvalidInput("invalid server id '%s'", raw)
	}
	return uint(id), nil
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.InvalidInput("%s must be an integer", key)
	}
	return v, nil
}

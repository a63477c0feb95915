package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// readAdminIDFromContext extracts the authenticated admin ID from gin context.
func readAdminIDFromContext(c *gin.Context) (uint64, bool) {
	val, exists := c.Get("adminID")
	if !exists {
		return 0, false
	}
	id, ok := val.(uint64)
	return id, ok
}

// parseUintParam parses a numeric path parameter.
func parseUintParam(c *gin.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

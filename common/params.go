package common

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParseID reads a positive integer path parameter.
func ParseID(c *gin.Context, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, InvalidInput("INVALID_ID", "Invalid "+name)
	}
	return uint(n), nil
}

// QueryFlag reports whether any of keys is set to "true" or "1".
func QueryFlag(c *gin.Context, keys ...string) bool {
	for _, k := range keys {
		switch c.Query(k) {
		case "true", "1":
			return true
		}
	}
	return false
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func validationFailed(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "Validation failed",
		"error":   err.Error(),
	})
}

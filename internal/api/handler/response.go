package handler

import (
	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondOK writes the payload with "ok": true merged into the top level.
// The flat envelope keeps clients' happy path a single-level read.
func respondOK(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// respondError writes {"ok": false, "error": code, "message": msg}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"ok":      false,
		"error":   code,
		"message": msg,
	})
}

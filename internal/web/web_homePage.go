package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// homePage renders the single page application. The page loads its data from /api/v1.
func (s *WebServer) homePage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

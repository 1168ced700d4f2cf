package handlers

import (
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ServeFrontend 静态文件服务（嵌入的前端）
// distFS 必须包含 web/dist 目录
func ServeFrontend(r *gin.Engine, distFS fs.FS) {
	dist, err := fs.Sub(distFS, "web/dist")
	if err != nil {
		log.Printf("⚠️ 嵌入前端资源不可用: %v (将以纯API模式运行)", err)
		return
	}

	fileServer := http.FileServer(http.FS(dist))

	r.NoRoute(func(c *gin.Context) {
		// API 路径不参与前端回退
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || strings.HasPrefix(c.Request.URL.Path, "/admin/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		path := strings.TrimPrefix(c.Request.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		// 未命中的路径回退到 index.html（前端路由）
		if _, err := fs.Stat(dist, path); err != nil {
			c.Request.URL.Path = "/"
		}

		fileServer.ServeHTTP(c.Writer, c.Request)
	})
}

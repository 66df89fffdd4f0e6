package rest

import "github.com/gin-gonic/gin"

// NewApi registers the public site and the JSON API on router
func NewApi(router gin.IRouter, posts *PostsHandler) {
	router.GET("/", posts.GetIndex)
	router.GET("/posts/:slug", posts.GetArtifact)

	postsV1 := router.Group("api/posts/v1")
	{
		postsV1.GET("/", posts.GetPosts)
		postsV1.GET("/:slug", posts.GetPost)
	}
}

package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/unicms/internal/handler"
	"github.com/unicms/internal/service"
)

// Options 配置路由器所需的外部依赖。
type Options struct {
	API           *handler.API
	SessionSecret string
	UploadDir     string
	UploadURLPath string
}

// Setup 配置 Gin 引擎和路由
func Setup(opts Options) *gin.Engine {
	r := gin.Default()

	store := cookie.NewStore([]byte(opts.SessionSecret))
	r.Use(sessions.Sessions("unicms_session", store))

	if opts.UploadDir != "" && opts.UploadURLPath != "" {
		r.Static(opts.UploadURLPath, opts.UploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	a := opts.API

	api := r.Group("/api")
	{
		api.POST("/auth/login", a.Login)
		api.POST("/auth/logout", a.Logout)

		// 公开读取
		api.GET("/posts", a.ListPosts)
		api.GET("/posts/:idOrSlug", a.GetPost)
		api.GET("/categories", a.ListCategories)
		api.GET("/tags", a.ListTags)

		// 需要认证身份的路由；每条变更路由再按权限门禁
		auth := api.Group("")
		auth.Use(a.AuthRequired())
		{
			auth.GET("/auth/me", a.Me)

			auth.POST("/posts", a.RequireAccess(service.PermManagePosts), a.CreatePost)
			auth.PUT("/posts/:id", a.RequireAccess(service.PermManagePosts), a.UpdatePost)
			auth.PATCH("/posts/:id", a.RequireAccess(service.PermManagePosts), a.PatchPost)
			auth.DELETE("/posts/:id", a.RequireAccess(service.PermManagePosts), a.DeletePost)

			auth.POST("/categories", a.RequireAccess(service.PermManageTaxonomy), a.CreateCategory)
			auth.PUT("/categories/:id", a.RequireAccess(service.PermManageTaxonomy), a.UpdateCategory)
			auth.DELETE("/categories/:id", a.RequireAccess(service.PermManageTaxonomy), a.DeleteCategory)

			auth.POST("/tags", a.RequireAccess(service.PermManageTaxonomy), a.CreateTag)
			auth.PUT("/tags/:id", a.RequireAccess(service.PermManageTaxonomy), a.UpdateTag)
			auth.DELETE("/tags/:id", a.RequireAccess(service.PermManageTaxonomy), a.DeleteTag)

			auth.GET("/roles", a.RequireAccess(service.PermManageAccess), a.ListRoles)
			auth.POST("/roles", a.RequireAccess(service.PermManageAccess), a.CreateRole)
			auth.PUT("/roles/:id", a.RequireAccess(service.PermManageAccess), a.UpdateRole)
			auth.DELETE("/roles/:id", a.RequireAccess(service.PermManageAccess), a.DeleteRole)

			auth.GET("/permissions", a.RequireAccess(service.PermManageAccess), a.ListPermissions)
			auth.POST("/permissions", a.RequireAccess(service.PermManageAccess), a.CreatePermission)
			auth.PUT("/permissions/:id", a.RequireAccess(service.PermManageAccess), a.UpdatePermission)
			auth.DELETE("/permissions/:id", a.RequireAccess(service.PermManageAccess), a.DeletePermission)

			auth.GET("/users", a.RequireAccess(service.PermManageUsers), a.ListUsers)
			auth.POST("/users", a.RequireAccess(service.PermManageUsers), a.CreateUser)
			auth.PUT("/users/:id", a.RequireAccess(service.PermManageUsers), a.UpdateUser)
			auth.DELETE("/users/:id", a.RequireAccess(service.PermManageUsers), a.DeleteUser)
			auth.PUT("/users/:id/roles", a.RequireAccess(service.PermManageAccess), a.SetUserRoles)
			auth.PUT("/users/:id/permissions", a.RequireAccess(service.PermManageAccess), a.SetUserPermissions)
			auth.PUT("/users/:id/access", a.RequireAccess(service.PermManageAccess), a.SetUserAccess)

			auth.POST("/uploads", a.RequireAccess(service.PermUpload), a.UploadImage)
		}
	}

	return r
}

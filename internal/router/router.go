package router

import (
	"net/http"

	"Niche_Community/internal/auth"
	"Niche_Community/internal/handler"
	"Niche_Community/internal/middleware"
	"Niche_Community/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services 路由依赖的全部服务，由 main 组装
type Services struct {
	Provider      *auth.Provider
	Discussions   *service.DiscussionService
	Communities   *service.CommunityService
	Posts         *service.PostService
	Feed          *service.FeedService
	Polls         *service.PollService
	Notifications *service.NotificationService
	Profiles      *service.ProfileService
	Leaderboard   *service.LeaderboardService
}

func InitRouter(s Services, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	authn := middleware.AuthMiddleware(s.Provider)
	optional := middleware.OptionalAuth(s.Provider)

	authH := handler.NewAuthHandler(s.Provider)
	discussion := handler.NewDiscussionHandler(s.Discussions)
	community := handler.NewCommunityHandler(s.Communities)
	post := handler.NewPostHandler(s.Posts, s.Feed)
	poll := handler.NewPollHandler(s.Polls)
	notification := handler.NewNotificationHandler(s.Notifications)
	profile := handler.NewProfileHandler(s.Profiles, s.Leaderboard)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"msg": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// 登录相关接口
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signin", authH.SignIn)
		authGroup.POST("/refresh", authH.Refresh)
		authGroup.POST("/signout", authn, authH.SignOut)
		authGroup.GET("/me", authn, authH.Me)
	}

	// 社区相关接口，读接口不要求登录
	communityGroup := api.Group("/communities")
	{
		communityGroup.GET("", optional, community.List)
		communityGroup.GET("/:id", optional, community.Get)
		communityGroup.POST("", authn, community.Create)
		communityGroup.PATCH("/:id", authn, community.Update)
		communityGroup.DELETE("/:id", authn, community.Delete)
		communityGroup.POST("/:id/join", authn, community.Join)
		communityGroup.POST("/:id/leave", authn, community.Leave)

		// 讨论帖
		communityGroup.GET("/:id/discussions", optional, discussion.List)
		communityGroup.POST("/:id/discussions", authn, discussion.Add)
		communityGroup.GET("/:id/discussions/:did/tally", optional, discussion.Tally)
		communityGroup.POST("/:id/discussions/:did/vote", authn, discussion.Vote)
		communityGroup.POST("/:id/discussions/:did/react", authn, discussion.React)
		communityGroup.GET("/:id/discussions/:did/replies", optional, discussion.Replies)
		communityGroup.POST("/:id/discussions/:did/replies", authn, discussion.Reply)
	}

	// 帖子相关接口
	postGroup := api.Group("/posts")
	{
		postGroup.GET("", optional, post.ListPosts)
		postGroup.POST("", authn, post.CreatePost)
		postGroup.PATCH("/:id", authn, post.UpdatePost)
		postGroup.DELETE("/:id", authn, post.DeletePost)
	}
	api.GET("/feed", optional, post.Feed)

	pollGroup := api.Group("/polls")
	{
		pollGroup.GET("", optional, poll.List)
		pollGroup.GET("/:id", optional, poll.Get)
		pollGroup.POST("", authn, poll.Create)
		pollGroup.POST("/:id/vote", authn, poll.Vote)
	}

	notificationGroup := api.Group("/notifications")
	{
		notificationGroup.GET("", optional, notification.List)
		notificationGroup.POST("", authn, notification.Add)
		notificationGroup.POST("/:source/:id/read", authn, notification.MarkRead)
	}

	profileGroup := api.Group("/profile")
	profileGroup.Use(authn)
	{
		profileGroup.GET("", profile.Get)
		profileGroup.PATCH("", profile.Update)
		profileGroup.PUT("/bio", profile.UpdateBio)
	}
	api.GET("/users/:uid/achievements", optional, profile.Achievements)
	api.GET("/leaderboard", optional, profile.Leaderboard)

	return r
}

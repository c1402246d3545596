package handlers

import (
	"assessment-backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Routes struct {
	Auth        *AuthHandler
	Assessments *AssessmentHandler
	Instances   *InstanceHandler
	Session     *SessionHandler
	WS          *WSHandler
}

// Register mounts the REST API under /api/v1 and the realtime channels under /ws.
func (rt Routes) Register(r *gin.Engine, tokens middleware.TokenValidator) {
	authed := middleware.JWTAuth(tokens)
	moderator := middleware.RequireModerator()

	r.GET("/ws/assessment-instances/:id", authed, rt.WS.Moderator)
	r.GET("/ws/play", authed, rt.WS.Play)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", rt.Auth.Login)
			auth.POST("/participant-login", rt.Auth.ParticipantLogin)
			auth.POST("/register", authed, moderator, rt.Auth.Register)
			auth.POST("/logout", authed, rt.Auth.Logout)
			auth.GET("/session", authed, rt.Auth.Session)
		}

		assessments := api.Group("/assessments")
		assessments.Use(authed, moderator)
		{
			assessments.GET("", rt.Assessments.ListAssessments)
			assessments.POST("", rt.Assessments.CreateAssessment)
			assessments.GET("/:id", rt.Assessments.GetAssessment)
			assessments.DELETE("/:id", rt.Assessments.DeleteAssessment)
			assessments.POST("/:id/archive", rt.Assessments.ToggleArchive)
			assessments.GET("/:id/instances", rt.Instances.ListInstances)
			assessments.POST("/:id/instances", rt.Instances.CreateInstance)
		}

		instances := api.Group("/assessment-instances")
		instances.Use(authed)
		{
			instances.GET("/active", rt.Session.Active)
			instances.POST("/active/answers", middleware.RequireParticipant(), rt.Session.SubmitAnswers)
			instances.POST("/active/grading", moderator, rt.Session.BeginGrading)
			instances.POST("/active/next", moderator, rt.Session.Next)
			instances.POST("/active/close", moderator, rt.Session.Close)

			instances.GET("/:id", moderator, rt.Instances.GetInstance)
			instances.DELETE("/:id", moderator, rt.Instances.DeleteInstance)
			instances.POST("/:id/start", moderator, rt.Session.Start)
			instances.POST("/:id/participants", moderator, rt.Instances.AddParticipants)
			instances.GET("/:id/answers/export", moderator, rt.Instances.ExportAnswers)
		}
	}
}

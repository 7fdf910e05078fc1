package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	plandomain "github.com/smallbiznis/fanvault/internal/plan/domain"
)

func (s *Server) CreatePlan(c *gin.Context) {
	var req plandomain.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	plan, err := s.planSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) GetPlan(c *gin.Context) {
	plan, err := s.planSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) ActivatePlan(c *gin.Context) {
	s.setPlanActive(c, true)
}

func (s *Server) DeactivatePlan(c *gin.Context) {
	s.setPlanActive(c, false)
}

func (s *Server) setPlanActive(c *gin.Context, active bool) {
	plan, err := s.planSvc.SetActive(c.Request.Context(), c.Param("id"), active)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) ListCreatorPlans(c *gin.Context) {
	var query struct {
		ActiveOnly bool `form:"active_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	plans, err := s.planSvc.ListByCreator(c.Request.Context(), plandomain.ListPlanRequest{
		CreatorID:  c.Param("id"),
		ActiveOnly: query.ActiveOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

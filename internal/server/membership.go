package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	membershipdomain "github.com/smallbiznis/fanvault/internal/membership/domain"
)

func (s *Server) Subscribe(c *gin.Context) {
	var req membershipdomain.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	membership, err := s.membershipSvc.Subscribe(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": membership})
}

func (s *Server) GetSubscription(c *gin.Context) {
	membership, err := s.membershipSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": membership})
}

func (s *Server) RenewSubscription(c *gin.Context) {
	var req struct {
		SourceToken string `json:"source_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	membership, err := s.membershipSvc.Renew(c.Request.Context(), membershipdomain.RenewRequest{
		MembershipID: c.Param("id"),
		SourceToken:  req.SourceToken,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": membership})
}

func (s *Server) PauseSubscription(c *gin.Context) {
	s.simpleTransition(c, s.membershipSvc.Pause)
}

func (s *Server) ResumeSubscription(c *gin.Context) {
	s.simpleTransition(c, s.membershipSvc.Resume)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	s.simpleTransition(c, s.membershipSvc.Cancel)
}

func (s *Server) simpleTransition(c *gin.Context, op func(ctx context.Context, id string) (membershipdomain.Membership, error)) {
	membership, err := op(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": membership})
}

func (s *Server) UpgradeSubscription(c *gin.Context) {
	var req membershipdomain.UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.MembershipID = c.Param("id")

	membership, err := s.membershipSvc.Upgrade(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": membership})
}

func (s *Server) ReactivateSubscription(c *gin.Context) {
	var req membershipdomain.ReactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.MembershipID = c.Param("id")

	membership, err := s.membershipSvc.Reactivate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": membership})
}

func (s *Server) ListAccountSubscriptions(c *gin.Context) {
	memberships, err := s.membershipSvc.ListByAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": memberships})
}

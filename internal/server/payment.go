package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
)

func (s *Server) ListPaymentAttempts(c *gin.Context) {
	attempts, err := s.paymentSvc.ListByAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": attempts})
}

func (s *Server) ListSubscriptionPaymentAttempts(c *gin.Context) {
	attempts, err := s.paymentSvc.ListByTarget(c.Request.Context(), paymentdomain.TargetTypeMembership, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": attempts})
}

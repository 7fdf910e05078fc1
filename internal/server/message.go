package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	messagedomain "github.com/smallbiznis/fanvault/internal/message/domain"
)

func (s *Server) SendMessage(c *gin.Context) {
	var req messagedomain.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	view, err := s.messageSvc.Send(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) UnlockMessage(c *gin.Context) {
	var req messagedomain.UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.MessageID = c.Param("id")

	view, err := s.messageSvc.Unlock(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) MarkMessageRead(c *gin.Context) {
	msg, err := s.messageSvc.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": msg})
}

func (s *Server) GetThread(c *gin.Context) {
	var query struct {
		AccountA string `form:"account_a"`
		AccountB string `form:"account_b"`
		ViewerID string `form:"viewer_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	views, err := s.messageSvc.Thread(c.Request.Context(), messagedomain.ThreadRequest{
		AccountA: query.AccountA,
		AccountB: query.AccountB,
		ViewerID: query.ViewerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

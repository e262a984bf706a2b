package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haukened/geoblock/internal/geoblock/services/blocking"
)

// pageQuery binds the pagination query string. Bounds are checked by the service.
type pageQuery struct {
	Page     int `form:"page,default=1"`
	PageSize int `form:"pageSize,default=10"`
}

type blockedQuery struct {
	pageQuery
	Search string `form:"search"`
}

type lookupQuery struct {
	IPAddress string `form:"ipAddress"`
}

func caller(c *gin.Context) blocking.Caller {
	return blocking.Caller{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (s *Server) blockCountry(c *gin.Context) {
	var req blocking.BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ack, err := s.service.Block(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, ack.Status, ack.Message)
}

func (s *Server) unblockCountry(c *gin.Context) {
	ack, err := s.service.Unblock(c.Request.Context(), c.Param("countryCode"))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, ack.Status, ack.Message)
}

func (s *Server) listBlocked(c *gin.Context) {
	var q blockedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}
	page, err := s.service.ListBlocked(c.Request.Context(), q.Search, q.Page, q.PageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

func (s *Server) temporalBlock(c *gin.Context) {
	var req blocking.TemporalBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ack, err := s.service.TemporalBlock(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, ack.Status, ack.Message)
}

func (s *Server) checkBlock(c *gin.Context) {
	blocked, err := s.service.CheckIP(c.Request.Context(), caller(c))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, blocked)
}

func (s *Server) lookupIP(c *gin.Context) {
	var q lookupQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}
	rec, err := s.service.LookupIP(c.Request.Context(), q.IPAddress, caller(c))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, rec)
}

func (s *Server) blockedAttempts(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}
	page, err := s.service.ListAttempts(c.Request.Context(), q.Page, q.PageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.stats != nil {
		st := s.stats.Stats()
		body["permanent"] = st.Permanent
		body["temporal"] = st.Temporal
		body["attempts"] = st.Attempts
	}
	c.JSON(http.StatusOK, body)
}

package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/haukened/geoblock/internal/geoblock/domain"
)

// Envelope wraps every API response.
type Envelope struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"statusCode"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data, StatusCode: status})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: msg, StatusCode: status})
}

// failErr responds with the status of err's kind.
func failErr(c *gin.Context, err error) {
	fail(c, domain.StatusOf(err), err.Error())
}

package middleware

import (
	"net/http"

	"github.com/dfryer1193/cms/api"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func HandlePanics() gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("Recovered from panic")

		msg := http.StatusText(http.StatusInternalServerError)
		if err, ok := recovered.(error); ok {
			msg = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.Error{Error: msg})
	}
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sheriapal/sheriapal-api/internal/authz"
	"github.com/sheriapal/sheriapal-api/internal/middleware"
	"github.com/sheriapal/sheriapal-api/internal/models"
)

// currentClaims extracts the JWT claims set by the auth middleware.
func currentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}

// currentActor projects the JWT claims into a policy actor.
func currentActor(c *gin.Context) (authz.Actor, bool) {
	claims, ok := currentClaims(c)
	if !ok {
		return authz.Actor{}, false
	}
	return authz.ActorFromClaims(claims), true
}

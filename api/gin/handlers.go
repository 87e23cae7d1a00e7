package cleogin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jcodog/Cleo-Dashboard-sub001/api"
	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
)

// LinksAPI serves the signed-in user's provider links.
type LinksAPI struct {
	creds        api.CredentialService
	links        api.LinkService
	userIDHeader string
}

// NewLinksAPI creates the handlers. userIDHeader may be empty to use DefaultUserIDHeader.
func NewLinksAPI(creds api.CredentialService, links api.LinkService, userIDHeader string) *LinksAPI {
	return &LinksAPI{
		creds:        creds,
		links:        links,
		userIDHeader: userIDHeader,
	}
}

// RegisterRoutes registers the /api/v1/me routes.
func (a *LinksAPI) RegisterRoutes(r gin.IRouter) {
	me := r.Group("/api/v1/me", SecurityHeadersMiddleware(), UserIDMiddleware(a.userIDHeader))
	{
		me.GET("/links", a.ListLinksHandler)
		me.DELETE("/links/:provider", a.UnlinkHandler)
		me.POST("/links/:provider/refresh", a.RefreshHandler)
	}
}

// ListLinksHandler returns one entry per known provider.
func (a *LinksAPI) ListLinksHandler(c *gin.Context) {
	summary, err := a.links.ListLinked(c.Request.Context(), c.GetString(AuthUserIDKey))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// UnlinkHandler removes one provider link. The last remaining provider cannot
// be removed.
func (a *LinksAPI) UnlinkHandler(c *gin.Context) {
	provider, err := domain.ParseProviderID(c.Param("provider"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := a.links.Unlink(c.Request.Context(), c.GetString(AuthUserIDKey), provider); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RefreshHandler makes sure the stored access token is usable and reports
// its expiry.
func (a *LinksAPI) RefreshHandler(c *gin.Context) {
	provider, err := domain.ParseProviderID(c.Param("provider"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	cred, err := a.creds.EnsureFresh(c.Request.Context(), c.GetString(AuthUserIDKey), provider)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.NewRefreshResponse(cred))
}

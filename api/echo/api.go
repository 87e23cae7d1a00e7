//nolint:varnamelen
package cleoecho

import (
	"net/http"
	"strings"

	"github.com/jcodog/Cleo-Dashboard-sub001/api"
	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/labstack/echo/v4"
)

const (
	DefaultUserIDHeader = "X-Cleo-User-ID"

	authUserIDKey = "auth-user-id"
)

// LinksAPI serves the same /api/v1/me routes as the gin handlers on an echo router.
type LinksAPI struct {
	creds        api.CredentialService
	links        api.LinkService
	userIDHeader string
}

// NewLinksAPI creates the handlers. userIDHeader may be empty to use DefaultUserIDHeader.
func NewLinksAPI(creds api.CredentialService, links api.LinkService, userIDHeader string) *LinksAPI {
	if userIDHeader == "" {
		userIDHeader = DefaultUserIDHeader
	}
	return &LinksAPI{
		creds:        creds,
		links:        links,
		userIDHeader: userIDHeader,
	}
}

// RegisterRoutes registers the links routes.
func (la *LinksAPI) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/me", la.requireUser)
	g.GET("/links", la.ListLinksHandler)
	g.DELETE("/links/:provider", la.UnlinkHandler)
	g.POST("/links/:provider/refresh", la.RefreshHandler)
}

func (la *LinksAPI) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		userID := strings.TrimSpace(req.Header.Get(la.userIDHeader))
		if userID == "" {
			userID, _ = domain.UserIDFromContext(req.Context())
		}
		if userID == "" {
			return writeError(c, api.ErrUnauthenticated)
		}

		c.Set(authUserIDKey, userID)
		c.SetRequest(req.WithContext(domain.WithUserID(req.Context(), userID)))
		return next(c)
	}
}

func currentUser(c echo.Context) string {
	id, _ := c.Get(authUserIDKey).(string)
	return id
}

func writeError(c echo.Context, err error) error {
	status, body := api.NewErrorResponse(err)
	if status >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return c.JSON(status, body)
}

// ListLinksHandler returns one entry per known provider.
func (la *LinksAPI) ListLinksHandler(c echo.Context) error {
	summary, err := la.links.ListLinked(c.Request().Context(), currentUser(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// UnlinkHandler removes one provider link.
func (la *LinksAPI) UnlinkHandler(c echo.Context) error {
	provider, err := domain.ParseProviderID(c.Param("provider"))
	if err != nil {
		return writeError(c, err)
	}
	if err := la.links.Unlink(c.Request().Context(), currentUser(c), provider); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RefreshHandler reports the expiry of a usable access token, refreshing it first when needed.
func (la *LinksAPI) RefreshHandler(c echo.Context) error {
	provider, err := domain.ParseProviderID(c.Param("provider"))
	if err != nil {
		return writeError(c, err)
	}
	cred, err := la.creds.EnsureFresh(c.Request().Context(), currentUser(c), provider)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, api.NewRefreshResponse(cred))
}

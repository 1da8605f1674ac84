// Package router mounts API areas under /api/<version> and applies the
// access guard each endpoint declares.
package router

import (
	"net/http"
	"path"
	"slices"

	"github.com/gin-gonic/gin"
)

// Access is who may call an endpoint.
type Access int

const (
	Public Access = iota
	// Agent needs a valid, unrevoked token.
	Agent
	// Admin also needs the admin flag in the token.
	Admin
)

func (a Access) String() string {
	switch a {
	case Agent:
		return "agent"
	case Admin:
		return "admin"
	default:
		return "public"
	}
}

// Guards enforce Access. A nil guard is skipped.
type Guards struct {
	Agent gin.HandlerFunc
	Admin gin.HandlerFunc
}

func (g Guards) chain(access Access) []gin.HandlerFunc {
	var hs []gin.HandlerFunc
	if access >= Agent && g.Agent != nil {
		hs = append(hs, g.Agent)
	}
	if access >= Admin && g.Admin != nil {
		hs = append(hs, g.Admin)
	}
	return hs
}

// Endpoint is one route. Path is relative to its area until mounted.
type Endpoint struct {
	Method string
	Path   string
	Access Access

	handlers []gin.HandlerFunc
}

// Area groups the endpoints under one prefix, such as /sales.
type Area struct {
	prefix    string
	access    Access
	endpoints []Endpoint
}

// NewArea starts an area whose endpoints default to access.
func NewArea(prefix string, access Access) *Area {
	return &Area{prefix: prefix, access: access}
}

func (a *Area) add(method, p string, access Access, handlers []gin.HandlerFunc) *Area {
	a.endpoints = append(a.endpoints, Endpoint{
		Method:   method,
		Path:     p,
		Access:   max(access, a.access),
		handlers: slices.DeleteFunc(handlers, func(h gin.HandlerFunc) bool { return h == nil }),
	})
	return a
}

func (a *Area) GET(p string, handlers ...gin.HandlerFunc) *Area {
	return a.add(http.MethodGet, p, a.access, handlers)
}

func (a *Area) POST(p string, handlers ...gin.HandlerFunc) *Area {
	return a.add(http.MethodPost, p, a.access, handlers)
}

func (a *Area) PUT(p string, handlers ...gin.HandlerFunc) *Area {
	return a.add(http.MethodPut, p, a.access, handlers)
}

func (a *Area) DELETE(p string, handlers ...gin.HandlerFunc) *Area {
	return a.add(http.MethodDelete, p, a.access, handlers)
}

// Admin adds an endpoint that needs the admin flag whatever the area's access.
// Nil handlers, such as optional middleware, are dropped.
func (a *Area) Admin(method, p string, handlers ...gin.HandlerFunc) *Area {
	return a.add(method, p, Admin, handlers)
}

// Router owns the versioned API group.
type Router struct {
	api     *gin.RouterGroup
	guards  Guards
	mounted []Endpoint
}

func New(engine *gin.Engine, version string, guards Guards) *Router {
	return &Router{api: engine.Group("/api/" + version), guards: guards}
}

// Mount registers the areas' endpoints, each behind its access guards.
func (r *Router) Mount(areas ...*Area) {
	for _, area := range areas {
		for _, ep := range area.endpoints {
			full := joinPath(area.prefix, ep.Path)
			r.api.Handle(ep.Method, full, append(r.guards.chain(ep.Access), ep.handlers...)...)
			r.mounted = append(r.mounted, Endpoint{
				Method: ep.Method,
				Path:   joinPath(r.api.BasePath(), full),
				Access: ep.Access,
			})
		}
	}
}

// Endpoints lists everything mounted so far with absolute paths.
func (r *Router) Endpoints() []Endpoint {
	return slices.Clone(r.mounted)
}

func joinPath(prefix, p string) string {
	if p == "" {
		return prefix
	}
	return path.Join("/", prefix, p)
}

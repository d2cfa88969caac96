package resolve

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
)

// maxBatch bounds the number of URLs accepted by one batch request.
const maxBatch = 50

// Handler exposes the resolver over HTTP.
type Handler struct {
	resolver *Resolver
}

// NewHandler creates a new resolve handler
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// Resolve answers ?url=<u> with one Metadata, or ?urls=a,b with a list of
// Results in request order.
func (h *Handler) Resolve(c *gin.Context) {
	if batch := splitList(c.QueryArray("urls")); len(batch) > 0 {
		if len(batch) > maxBatch {
			httpx.Error(c, httpx.FieldError("resolve", "urls", "must contain at most 50 entries"))
			return
		}
		c.JSON(http.StatusOK, h.resolver.ResolveAll(c.Request.Context(), batch))
		return
	}

	raw := c.Query("url")
	if raw == "" {
		httpx.Error(c, httpx.FieldError("resolve", "url", "is required"))
		return
	}
	if _, err := ParseURL(raw); err != nil {
		httpx.Error(c, httpx.FieldError("resolve", "url", "must be a valid URL"))
		return
	}

	md, err := h.resolver.Resolve(c.Request.Context(), raw)
	if err != nil {
		if errx.Is(err, errx.Transport) || errx.Is(err, errx.Timeout) {
			httpx.Fail(c, httpx.StatusFor(errx.KindOf(err)), errx.Message(err))
			return
		}
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// RegisterRoutes registers the resolve route
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/resolveUrl", h.Resolve)
}

package offline

import (
	"net/http"
	"path"
	"strings"
)

// Class is the resource class a request is routed by.
type Class string

const (
	ClassPassThrough Class = "passthrough"
	ClassAPI         Class = "api"
	ClassNavigation  Class = "navigation"
	ClassImage       Class = "image"
	ClassStatic      Class = "static"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".avif": true,
	".svg":  true,
	".ico":  true,
}

// Classify picks the policy for r. Only GET requests are intercepted and
// event streams are never buffered.
func Classify(r *http.Request, apiPrefix string) Class {
	if r.Method != http.MethodGet {
		return ClassPassThrough
	}
	accept := strings.ToLower(r.Header.Get("Accept"))
	if strings.Contains(accept, "text/event-stream") {
		return ClassPassThrough
	}
	if apiPrefix != "" && strings.HasPrefix(r.URL.Path, apiPrefix) {
		return ClassAPI
	}
	if strings.EqualFold(r.Header.Get("Sec-Fetch-Mode"), "navigate") || strings.Contains(accept, "text/html") {
		return ClassNavigation
	}
	if strings.EqualFold(r.Header.Get("Sec-Fetch-Dest"), "image") ||
		strings.HasPrefix(accept, "image/") ||
		imageExtensions[strings.ToLower(path.Ext(r.URL.Path))] {
		return ClassImage
	}
	return ClassStatic
}

package offline

import (
	"net/http"
	"strconv"
)

// SourceHeader tells clients where a response came from: network, cache or
// fallback.
const SourceHeader = "X-Offline-Source"

const (
	sourceNetwork  = "network"
	sourceCache    = "cache"
	sourceFallback = "fallback"
)

var (
	offlineJSON = []byte(`{"error":"You are offline. Please check your connection."}`)
	timeoutJSON = []byte(`{"error":"Request timed out. Please try again."}`)

	placeholderSVG = []byte(`<svg width="400" height="300" xmlns="http://www.w3.org/2000/svg"><rect width="400" height="300" fill="#eee"/><text x="50%" y="50%" font-family="Arial" font-size="20" text-anchor="middle" fill="#888">Image Unavailable</text></svg>`)

	offlineText = []byte("You are offline and this page has not been cached.\n")
)

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func stripHopHeaders(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}

func writeEntry(w http.ResponseWriter, e Entry, source string) {
	h := w.Header()
	for k, v := range e.Header {
		h[k] = append([]string(nil), v...)
	}
	h.Set(SourceHeader, source)
	h.Set("Content-Length", strconv.Itoa(len(e.Body)))
	w.WriteHeader(e.Status)
	_, _ = w.Write(e.Body)
}

func writeSynthetic(w http.ResponseWriter, status int, contentType string, body []byte) {
	writeEntry(w, Entry{
		Status: status,
		Header: http.Header{"Content-Type": {contentType}},
		Body:   body,
	}, sourceFallback)
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}

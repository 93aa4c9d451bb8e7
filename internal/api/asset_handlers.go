package api

import (
	"io"
	"log"
	"net/http"
	"strings"
)

// @Summary      Serve a stored image
// @Description  Streams a stored object. The request is authorized by the HMAC signature and expiry in the query string, not by a bearer token.
// @Tags         assets
// @Produce      image/jpeg
// @Param        path   query   string  true  "Storage path"
// @Param        exp    query   string  true  "Unix expiry timestamp"
// @Param        sig    query   string  true  "HMAC signature"
// @Success      200  {file}    file
// @Failure      403  {string}  string "Invalid or expired signature"
// @Failure      404  {string}  string "Object not found"
// @Router       /assets/image [get]
func (s *Server) ServeAssetHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	path := query.Get("path")
	exp := query.Get("exp")
	sig := query.Get("sig")

	if !s.objects.VerifySignedQuery(path, exp, sig) {
		http.Error(w, "Invalid or expired signature", http.StatusForbidden)
		return
	}

	object, err := s.objects.Get(path)
	if err != nil {
		http.Error(w, "Object not found", http.StatusNotFound)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", contentTypeForPath(path))
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(w, object); err != nil {
		log.Printf("WARN: Failed to stream object %s: %v", path, err)
	}
}

func contentTypeForPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

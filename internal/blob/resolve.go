package blob

import (
	"strings"

	"github.com/text2tracks/backend/internal/constants"
)

// Resolution is the parse result for a stored blob reference. Key is set
// when the reference matched this store's layout and can be presigned;
// otherwise callers fall back to fetching Raw as-is.
type Resolution struct {
	Key string
	Raw string
}

// Parsed reports whether an object key was recovered from the reference.
func (r Resolution) Parsed() bool {
	return r.Key != ""
}

// BuildRef builds the durable reference recorded in the catalog:
// endpoint '/' bucket '/' key.
func (s *Store) BuildRef(key string) string {
	return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
}

// Resolve parses a catalog reference back into an object key. The primary
// parse splits on the bucket segment; references written against an older
// endpoint still resolve through the tracks/ prefix fallback. Anything
// else is handed back raw so the caller can fetch it directly.
func (s *Store) Resolve(ref string) Resolution {
	marker := "/" + s.cfg.Bucket + "/"
	if i := strings.Index(ref, marker); i >= 0 {
		if key := ref[i+len(marker):]; key != "" {
			return Resolution{Key: key, Raw: ref}
		}
	}

	if i := strings.Index(ref, constants.TracksKeyPrefix); i >= 0 {
		return Resolution{Key: ref[i:], Raw: ref}
	}

	return Resolution{Raw: ref}
}

package redis

const (
	// KeyPrefix namespaces every key written by folio.
	KeyPrefix = "folio:"
	// KeyGallery holds the serialized GET /gallery response.
	KeyGallery = KeyPrefix + "gallery"
)

// GalleryKey returns the Redis key of the cached gallery response.
func GalleryKey() string {
	return KeyGallery
}

// ScopedKey prefixes a caller-defined key with the store namespace.
func (s *Store) ScopedKey(key string) string {
	return s.prefix + key
}

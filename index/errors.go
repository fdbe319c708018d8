package index

import "errors"

var (
	ErrEmbedderRequired = errors.New("embedder is required")
	ErrStoreRequired    = errors.New("store is required")
)

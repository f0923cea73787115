// Package media transfers staged files to the image host and exposes the
// resulting public URLs.
package media

import "context"

// Uploader sends one local file to the media host and returns its public
// URL. Implementations must be safe for concurrent use; callers decide the
// upload order.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

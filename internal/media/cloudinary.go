package media

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Compile-time check that CloudinaryUploader satisfies Uploader.
var _ Uploader = (*CloudinaryUploader)(nil)

// CloudinaryUploader pushes listing photos to Cloudinary and returns their
// HTTPS delivery URLs.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryUploader validates the credentials eagerly so a
// misconfigured deployment fails at startup rather than on the first
// listing with photos.
func NewCloudinaryUploader(cloudName, apiKey, apiSecret, folder string) (*CloudinaryUploader, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("media: cloudinary credentials are incomplete")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("media: configuring cloudinary: %w", err)
	}
	return &CloudinaryUploader{cld: cld, folder: folder}, nil
}

// Upload sends the file at path and returns its secure delivery URL.
//
// The Cloudinary SDK reports API-level failures through the response body
// rather than the returned error, so both channels are checked.
func (u *CloudinaryUploader) Upload(ctx context.Context, path string) (string, error) {
	resp, err := u.cld.Upload.Upload(ctx, path, uploader.UploadParams{Folder: u.folder})
	if err != nil {
		return "", fmt.Errorf("media: uploading %s: %w", path, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("media: uploading %s: %s", path, resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", fmt.Errorf("media: uploading %s: empty delivery URL in response", path)
	}
	return resp.SecureURL, nil
}

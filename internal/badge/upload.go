package badge

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/hoopcentral/achievements-worker/internal/models"
)

const (
	contentType  = "image/svg+xml"
	cacheControl = "public, max-age=31536000"
	generatedBy  = "achievements-worker"
	keyTemplate  = "badges/%s/%s.svg"
)

// ObjectPutter abstracts the one S3 call we make, so tests can capture
// uploads without a live endpoint.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader renders badges and writes them to the object store. The bucket is
// assumed to exist; we never create or list.
type Uploader struct {
	client        ObjectPutter
	bucket        string
	publicBaseURL string
	logger        *zap.SugaredLogger
	now           func() time.Time
}

func NewUploader(client ObjectPutter, bucket, publicBaseURL string, logger *zap.SugaredLogger) *Uploader {
	return &Uploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
		logger:        logger,
		now:           time.Now,
	}
}

// GenerateAndUpload renders the award's badge and uploads it under
// badges/{player_id}/{award_id}.svg, returning the public URL. The
// generated-at metadata is upload provenance only and is not part of the
// blob body, so determinism of the SVG itself is preserved.
func (u *Uploader) GenerateAndUpload(ctx context.Context, a *models.Award) (string, error) {
	body, err := Render(a)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf(keyTemplate, a.PlayerID, a.AwardID)

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
		Metadata: map[string]string{
			"generated-by": generatedBy,
			"generated-at": u.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload badge %s: %w", key, err)
	}

	url := u.publicBaseURL + "/" + key
	u.logger.Infow("badge uploaded",
		"award_id", a.AwardID,
		"player_id", a.PlayerID,
		"url", url,
	)
	return url, nil
}

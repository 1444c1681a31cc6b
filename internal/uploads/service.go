package uploads

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/errors"
	"github.com/soundpost/soundpost-backend/pkg/logger"
	"github.com/soundpost/soundpost-backend/pkg/redis"
)

const (
	objectKeyPrefix = "post/audio"
	collisionStamp  = "20060102_150405"
	cacheKeyPrefix  = "presign:get:"

	// Cached URLs drop out well before the signature expires so a client
	// never receives a URL with only seconds of life left.
	cacheExpiryMargin = 5 * time.Minute
)

type signer interface {
	DefaultBucket() string
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

type keyChecker interface {
	ObjectKeyExists(ctx context.Context, key string) (bool, error)
}

type urlCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Service issues presigned object-store URLs. The cache is optional; a nil
// cache signs every request fresh.
type Service struct {
	signer signer
	keys   keyChecker
	cache  urlCache
	cfg    config.GCSConfig
	logg   *logger.Logger

	now func() time.Time
}

func NewService(s signer, keys keyChecker, cache urlCache, cfg config.GCSConfig, logg *logger.Logger) *Service {
	return &Service{
		signer: s,
		keys:   keys,
		cache:  cache,
		cfg:    cfg,
		logg:   logg,
		now:    time.Now,
	}
}

// PresignedUpload carries the signed PUT URL and the object key the client
// must upload under.
type PresignedUpload struct {
	ObjectKey string
	URL       string
	ExpiresIn time.Duration
}

// PresignUpload allocates an object key under the user's prefix and signs
// a PUT URL for it. A key already claimed by another record gets a
// timestamp suffix instead of colliding.
func (s *Service) PresignUpload(ctx context.Context, userID uint, fileName, contentType string) (*PresignedUpload, error) {
	name := path.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == "/" {
		return nil, errors.New(errors.CodeValidation, "file name is required")
	}
	if contentType == "" {
		return nil, errors.New(errors.CodeValidation, "content type is required")
	}

	key := fmt.Sprintf("%s/%d/%s", objectKeyPrefix, userID, name)
	exists, err := s.keys.ObjectKeyExists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		ext := path.Ext(name)
		base := strings.TrimSuffix(name, ext)
		key = fmt.Sprintf("%s/%d/%s-%s%s", objectKeyPrefix, userID, base, s.now().UTC().Format(collisionStamp), ext)
	}

	url, err := s.signer.SignedURL(s.signer.DefaultBucket(), key, contentType, s.cfg.UploadURLExpiry)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "signing upload url")
	}
	return &PresignedUpload{ObjectKey: key, URL: url, ExpiresIn: s.cfg.UploadURLExpiry}, nil
}

// PresignDownload returns a signed GET URL for the object key, serving
// from the cache when possible. Cache failures degrade to fresh signing.
func (s *Service) PresignDownload(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", errors.New(errors.CodeValidation, "object key is required")
	}

	cacheKey := cacheKeyPrefix + objectKey
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey)
		if err == nil && cached != "" {
			return cached, nil
		}
		if err != nil && err != redis.Nil {
			s.logg.Warn(s.logg.WithField(ctx, "object_key", objectKey), "presign cache read failed")
		}
	}

	url, err := s.signer.SignedReadURL(s.signer.DefaultBucket(), objectKey, s.cfg.DownloadURLExpiry)
	if err != nil {
		return "", errors.Wrap(errors.CodeDependency, err, "signing download url")
	}

	if s.cache != nil {
		ttl := s.cfg.DownloadURLExpiry - cacheExpiryMargin
		if ttl > 0 {
			if err := s.cache.Set(ctx, cacheKey, url, ttl); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "object_key", objectKey), "presign cache write failed")
			}
		}
	}
	return url, nil
}

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
)

// maxConcurrentPresigns bounds the fan-out of batch signing.
const maxConcurrentPresigns = 8

var now = time.Now

// Issuer validates file descriptors and mints presigned URLs for freshly
// generated keys. It never signs anything for a rejected descriptor.
type Issuer struct {
	presigner Presigner
	bucket    string
	uploadTTL time.Duration
	viewTTL   time.Duration
	observer  Observer
	log       logging.Logger
}

// NewIssuer returns an Issuer signing against bucket. Zero TTLs fall back to
// media.UploadURLTTL and media.ViewURLTTL; a nil observer or logger is
// replaced by a no-op.
func NewIssuer(p Presigner, bucket string, uploadTTL, viewTTL time.Duration, obs Observer, log logging.Logger) *Issuer {
	if uploadTTL <= 0 {
		uploadTTL = media.UploadURLTTL
	}
	if viewTTL <= 0 {
		viewTTL = media.ViewURLTTL
	}
	if obs == nil {
		obs = nopObserver{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Issuer{
		presigner: p,
		bucket:    bucket,
		uploadTTL: uploadTTL,
		viewTTL:   viewTTL,
		observer:  obs,
		log:       log.With("module", "issuer"),
	}
}

// ViewTTL is the lifetime of every view URL this Issuer signs.
func (s *Issuer) ViewTTL() time.Duration { return s.viewTTL }

// IssueUploadCredential validates fd, builds a new key under
// (role, ownerID) and signs a PUT and a GET for it.
func (s *Issuer) IssueUploadCredential(ctx context.Context, role media.Role, ownerID string, fd media.FileDescriptor) (media.UploadCredential, error) {
	key, err := prepareKey(role, ownerID, fd)
	if err != nil {
		return media.UploadCredential{}, err
	}
	return s.sign(ctx, key, fd.ContentType)
}

// IssueUploadCredentials is the batch form of IssueUploadCredential. Every
// descriptor is validated before any signing; one rejected file fails the
// batch with an aggregated media.ValidationErrors.
func (s *Issuer) IssueUploadCredentials(ctx context.Context, role media.Role, ownerID string, fds []media.FileDescriptor) ([]media.UploadCredential, error) {
	if err := media.ValidateAll(fds); err != nil {
		return nil, err
	}

	keys := make([]string, len(fds))
	for i, fd := range fds {
		key, err := prepareKey(role, ownerID, fd)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}

	out := make([]media.UploadCredential, len(fds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPresigns)
	for i := range fds {
		g.Go(func() error {
			cred, err := s.sign(gctx, keys[i], fds[i].ContentType)
			if err != nil {
				return err
			}
			out[i] = cred
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// IssueViewCredentials signs a GET for every non-empty key. Keys that cannot
// be signed are logged and left out of the result; the call never fails as
// a whole.
func (s *Issuer) IssueViewCredentials(ctx context.Context, keys []string) map[string]string {
	keys = media.CompactKeys(keys...)
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(maxConcurrentPresigns)
	for _, key := range keys {
		g.Go(func() error {
			url, err := s.presignGet(ctx, key)
			if err != nil {
				s.log.Warn(ctx, "view url not signed", "key", key, "error", err)
				return nil
			}
			mu.Lock()
			out[key] = url
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func prepareKey(role media.Role, ownerID string, fd media.FileDescriptor) (string, error) {
	if err := fd.Validate(); err != nil {
		return "", err
	}
	key, err := media.BuildKey(role, ownerID, fd.Filename)
	if err != nil {
		return "", err
	}
	if len(key) > media.MaxKeyLength {
		return "", &media.ValidationError{
			File:       fd.Filename,
			Constraint: media.ConstraintFilename,
			Message:    "file name is too long",
		}
	}
	return key, nil
}

func (s *Issuer) sign(ctx context.Context, key, contentType string) (media.UploadCredential, error) {
	issuedAt := now()

	var uploadURL, viewURL string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		uploadURL, err = s.presignPut(gctx, key, contentType)
		return err
	})
	g.Go(func() (err error) {
		viewURL, err = s.presignGet(gctx, key)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error(ctx, "presign failed", "key", key, "error", err)
		return media.UploadCredential{}, err
	}

	s.log.Debug(ctx, "upload credential issued", "key", key, "content_type", contentType)
	return media.UploadCredential{
		Key:             key,
		UploadURL:       uploadURL,
		ViewURL:         viewURL,
		UploadExpiresAt: issuedAt.Add(s.uploadTTL),
		ViewExpiresAt:   issuedAt.Add(s.viewTTL),
		ContentType:     contentType,
	}, nil
}

func (s *Issuer) presignPut(ctx context.Context, key, contentType string) (string, error) {
	start := time.Now()
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.uploadTTL))
	s.observer.RecordPresign("put", time.Since(start), err)
	if err != nil {
		return "", infraError("presign put", err)
	}
	return req.URL, nil
}

func (s *Issuer) presignGet(ctx context.Context, key string) (string, error) {
	start := time.Now()
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.viewTTL))
	s.observer.RecordPresign("get", time.Since(start), err)
	if err != nil {
		return "", infraError("presign get", err)
	}
	return req.URL, nil
}

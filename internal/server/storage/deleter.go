package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
)

// maxDeleteBatch is the S3 DeleteObjects per-request limit.
const maxDeleteBatch = 1000

// Deleter removes objects in batches using DeleteObjects in quiet mode.
type Deleter struct {
	client   ObjectDeleter
	bucket   string
	observer Observer
	log      logging.Logger
}

func NewDeleter(client ObjectDeleter, bucket string, obs Observer, log logging.Logger) *Deleter {
	if obs == nil {
		obs = nopObserver{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Deleter{client: client, bucket: bucket, observer: obs, log: log.With("module", "deleter")}
}

// DeleteKeys deletes keys with one request per 1000 keys. Empty and
// duplicate keys are dropped; an empty set makes no request. Per-key
// failures reported by the store are joined into one
// media.InfrastructureError.
func (d *Deleter) DeleteKeys(ctx context.Context, keys []string) error {
	keys = media.CompactKeys(keys...)
	if len(keys) == 0 {
		return nil
	}

	var errs []error
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))
		if err := d.deleteBatch(ctx, keys[start:end]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Deleter) deleteBatch(ctx context.Context, keys []string) error {
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
	}

	start := time.Now()
	out, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(d.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err == nil && out != nil && len(out.Errors) > 0 {
		err = objectErrors(out.Errors)
	}
	d.observer.RecordDelete(time.Since(start), len(keys), err)

	if err != nil {
		d.log.Error(ctx, "delete objects failed", "keys", len(keys), "retryable", isRetryable(err), "error", err)
		return infraError("delete objects", err)
	}
	d.log.Info(ctx, "objects deleted", "keys", len(keys))
	return nil
}

func objectErrors(list []types.Error) error {
	errs := make([]error, 0, len(list))
	for _, e := range list {
		errs = append(errs, fmt.Errorf("%s: %s %s",
			aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message)))
	}
	return errors.Join(errs...)
}

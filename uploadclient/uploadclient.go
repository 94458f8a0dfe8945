// Package uploadclient wraps the cloud-bucket upload contract behind the
// pncurl --drive flag (spec §6: "treats --opcode as the upload-destination
// filename and uploads --link as a local file to a cloud bucket"). It is
// grounded on the teacher's OS-URL storage driver wiring
// (clients/object_store_client.go), generalized from the teacher's HLS/MP4
// publishing concern to a single local-file-to-bucket upload.
package uploadclient

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/cenkalti/backoff/v4"
	"github.com/livepeer/go-tools/drivers"
	pnerrors "github.com/relayforge/mediaforge/errors"
)

const maxUploadDuration = 2 * time.Hour

// Client uploads a single local file to an opaque cloud-bucket destination
// named as an OS URL (e.g. "s3://bucket/prefix") and returns a shareable
// link for the uploaded object.
type Client struct{}

func New() *Client { return &Client{} }

// Upload reads localPath and writes it to destination/filename through the
// matching go-tools/drivers backend, retrying with the teacher's
// exponential backoff policy (UploadRetryBackoff's shape).
func (c *Client) Upload(ctx context.Context, localPath, destination, filename string) (string, error) {
	driver, err := drivers.ParseOSURL(destination, true)
	if err != nil {
		return "", pnerrors.Unretriable(fmt.Errorf("uploadclient: parsing destination %q: %w", destination, err))
	}
	sess := driver.NewSession("")

	var uploadErr error
	op := func() error {
		f, err := os.Open(localPath)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("uploadclient: opening %s: %w", localPath, err))
		}
		defer f.Close()

		_, uploadErr = sess.SaveData(ctx, filename, f, nil, maxUploadDuration)
		return uploadErr
	}

	boff := retryBackoff()
	if err := backoff.Retry(op, boff); err != nil {
		return "", fmt.Errorf("uploadclient: uploading %s to %s: %w", localPath, destination, err)
	}

	link, err := c.presign(destination, filename)
	if err != nil {
		return "", err
	}
	return link, nil
}

// presign falls back to the aws-sdk-go S3 client for a presigned GET when
// the destination driver offers no public link of its own (teacher's
// clients/s3.go pattern), since not every OS-URL backend exposes a direct
// HTTPS URL for the uploaded object.
func (c *Client) presign(destination, filename string) (string, error) {
	driver, err := drivers.ParseOSURL(destination, true)
	if err != nil {
		return "", err
	}
	sess := driver.NewSession("")
	if link, err := sess.Presign(filename, 24*time.Hour); err == nil && link != "" {
		return link, nil
	}

	info := sess.GetInfo()
	if info == nil || info.S3Info == nil {
		return destination + "/" + filename, nil
	}

	awsSess, err := session.NewSession(&aws.Config{Region: aws.String(info.S3Info.Region)})
	if err != nil {
		return "", fmt.Errorf("uploadclient: creating aws session: %w", err)
	}
	req, _ := s3.New(awsSess).GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(info.S3Info.Bucket),
		Key:    aws.String(filename),
	})
	return req.Presign(60 * time.Minute)
}

func retryBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, 5)
}

// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package keystore

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/logger"
)

// S3 is the implementation of the Driver for AWS S3
type S3 struct {
	config aws.Config
	bucket string
}

// NewS3 returns a new S3 driver for bucket
func NewS3(ctx context.Context, bucket string, s3Config S3Configuration) (*S3, error) {
	if bucket == "" {
		return nil, failure.Validation("bucket must not be empty")
	}
	options := []func(*config.LoadOptions) error{config.WithRegion(s3Config.AWSRegion)}
	if s3Config.AccessID != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3Config.AccessID, s3Config.AccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, failure.Wrap(err, failure.TypeInternal, "cannot load AWS configuration")
	}
	logger.FromContext(ctx).Debugln("S3 key store enabled for bucket", bucket)
	return &S3{config: cfg, bucket: bucket}, nil
}

// Read downloads the object key
func (s *S3) Read(ctx context.Context, key string) ([]byte, error) {
	downloader := manager.NewDownloader(s3.NewFromConfig(s.config))
	buffer := manager.NewWriteAtBuffer([]byte{})
	_, err := downloader.Download(ctx, buffer, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, failure.Wrapf(err, failure.TypeNotFound, "no key s3://%s/%s", s.bucket, key)
		}
		return nil, failure.Wrapf(err, failure.TypeStorage, "cannot download s3://%s/%s", s.bucket, key)
	}
	return buffer.Bytes(), nil
}

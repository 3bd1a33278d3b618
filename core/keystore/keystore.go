// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package keystore reads small secrets, like the token signing secret, from
// the local filesystem or from AWS S3.
package keystore

import (
	"context"
	"strings"
)

// Driver defines the interface for a key store
type Driver interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// S3Configuration contains the configuration for the S3 key store. If AccessID
// is empty, the default AWS credential chain is used.
type S3Configuration struct {
	AWSRegion string
	AccessID  string
	AccessKey string
}

// Read reads the secret at location. Locations of the form s3://bucket/key
// are read from S3, everything else is a local file path.
func Read(ctx context.Context, location string, s3Config S3Configuration) ([]byte, error) {
	if rest := strings.TrimPrefix(location, "s3://"); rest != location {
		i := strings.IndexRune(rest, '/')
		if i <= 0 || i == len(rest)-1 {
			return nil, errInvalidLocation(location)
		}
		driver, err := NewS3(ctx, rest[:i], s3Config)
		if err != nil {
			return nil, err
		}
		return driver.Read(ctx, rest[i+1:])
	}
	return LocalFilesystem{}.Read(ctx, location)
}

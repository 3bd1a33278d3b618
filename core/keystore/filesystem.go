// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package keystore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/logger"
)

// LocalFilesystem reads keys from files below BasePath. An empty BasePath
// means keys are plain file paths.
type LocalFilesystem struct {
	BasePath string
}

// Read returns the content of the file key
func (f LocalFilesystem) Read(ctx context.Context, key string) ([]byte, error) {
	path := key
	if f.BasePath != "" {
		path = filepath.Join(f.BasePath, filepath.Clean("/"+key))
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, failure.Wrapf(err, failure.TypeNotFound, "no key file %s", path)
	}
	if err != nil {
		return nil, failure.Wrapf(err, failure.TypeStorage, "cannot read key file %s", path)
	}
	logger.FromContext(ctx).Debugln("read key from", path)
	return data, nil
}

func errInvalidLocation(location string) error {
	return failure.Validation("invalid key location '%s', expected s3://bucket/key", location)
}

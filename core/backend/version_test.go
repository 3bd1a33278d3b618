// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	f := newFixture(t)
	Version = "1.2.3"

	status, err := f.client.RawGet("/version", nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, err = f.as(t, "u1", "user").RawGet("/version", nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	var result map[string]string
	status, err = f.as(t, "a1", "admin").RawGet("/version", &result)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1.2.3", result["version"])
}

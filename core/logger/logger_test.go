// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithLogger(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.NotNil(t, FromContext(nil))

	ctx, rlog := ContextWithLogger(context.Background())
	id := RequestIDFromContext(ctx)
	require.NotEmpty(t, id)
	assert.Equal(t, rlog, FromContext(ctx))

	// an existing logger is kept
	same, _ := ContextWithLogger(ctx)
	assert.Equal(t, id, RequestIDFromContext(same))

	ctx, rlog = ContextWithLoggerIdentity(ctx, "42")
	assert.Equal(t, id, RequestIDFromContext(ctx))
	assert.Equal(t, "42", rlog.Data[identityLoggerKey])
}

func TestAddRequestID(t *testing.T) {
	router := mux.NewRouter()
	AddRequestID(router)
	var id string
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		id = RequestIDFromContext(r.Context())
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, id)
}

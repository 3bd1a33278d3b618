// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast in-process access to a REST api

Instead of marshalling HTTP, the client talks directly to the mux router. The client
is the tool of choice if one request handler needs to call other handlers to fulfill
its task. It is also perfectly suited for unit tests.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/gourd/core/access"
)

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	token      string
	identity   *access.Identity
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
//
// WithIdentity() adds an identity to the request context.
// WithContext() specifies a different base context all together.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            url,
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		if k != key {
			headers[k] = v
		}
	}
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client sending token as bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithIdentity returns a new client with a specific identity in the request
// context. This works only directly against the mux router, for a normal
// client use WithToken().
func (c Client) WithIdentity(identity *access.Identity) Client {
	c.identity = identity
	return c
}

// WithRole returns a new client with an identity carrying role
// (this works only directly against the mux router, for a normal client
// use WithToken())
func (c Client) WithRole(role string) Client {
	return c.WithIdentity(&access.Identity{Subject: "client-" + role, Roles: []string{role}})
}

// WithAdminAuthorization returns a new client with admin role
// (this works only directly against the mux router, for a normal client
// use WithToken())
func (c Client) WithAdminAuthorization() Client {
	return c.WithRole(access.AdminRole)
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context of the client
func (c Client) Context() context.Context {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if c.identity != nil {
		ctx = access.ContextWithIdentity(ctx, c.identity)
	}
	return ctx
}

// Collection represents the routes of one entity
type Collection struct {
	client     Client
	table      string
	parent     string
	parentID   string
	parameters []string
}

// Collection returns a new collection client
func (c Client) Collection(table string) Collection {
	return Collection{client: c, table: table}
}

// WithParent returns a new collection client for the nested route below the
// parent item
func (r Collection) WithParent(parentTable, parentID string) Collection {
	r.parent = parentTable
	r.parentID = parentID
	return r
}

// WithParameter returns a new collection client with a URL parameter added.
func (r Collection) WithParameter(key string, value string) Collection {
	parameter := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	// we want a true copy to avoid side effects
	r.parameters = append(append([]string{}, r.parameters...), parameter)
	return r
}

// CollectionPath returns the path of the collection including parameters
func (r Collection) CollectionPath() string {
	path := "/" + r.table
	if r.parent != "" {
		path = "/" + r.parent + "/" + r.parentID + path
	}
	if len(r.parameters) > 0 {
		path += "?" + strings.Join(r.parameters, "&")
	}
	return path
}

// Create creates a new item. Expects http.StatusCreated as response.
func (r Collection) Create(body interface{}, result interface{}) (int, error) {
	status, _, err := r.client.do(http.MethodPost, "/"+r.table, nil, body, result, http.StatusCreated)
	return status, err
}

// List lists the collection. Expects http.StatusOK as response.
func (r Collection) List(result interface{}) (int, error) {
	return r.client.RawGet(r.CollectionPath(), result)
}

// Item represents a single item of a collection
type Item struct {
	client Client
	path   string
}

// Item returns an item client
func (r Collection) Item(id string) Item {
	return Item{client: r.client, path: "/" + r.table + "/" + id}
}

// Path returns the path of the item
func (r Item) Path() string {
	return r.path
}

// Read reads the item. Expects http.StatusOK as response.
func (r Item) Read(result interface{}) (int, error) {
	return r.client.RawGet(r.path, result)
}

// Update replaces the item. Expects http.StatusOK as response.
func (r Item) Update(body interface{}, result interface{}) (int, error) {
	return r.client.RawPut(r.path, body, result)
}

// Delete deletes the item. Expects http.StatusOK as response.
func (r Item) Delete() (int, error) {
	return r.client.RawDelete(r.path)
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, _, err := c.do(http.MethodGet, path, nil, nil, result, http.StatusOK)
	return status, err
}

// RawGetWithHeader is like RawGet with additional request headers. It also
// returns the response header.
func (c Client) RawGetWithHeader(path string, header map[string]string, result interface{}) (int, http.Header, error) {
	return c.do(http.MethodGet, path, header, nil, result, http.StatusOK)
}

// RawPost posts body to path. Expects http.StatusCreated or http.StatusOK as
// response.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.do(http.MethodPost, path, nil, body, result, http.StatusCreated, http.StatusOK)
	return status, err
}

// RawPut puts body to path. Expects http.StatusOK as response.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.do(http.MethodPut, path, nil, body, result, http.StatusOK)
	return status, err
}

// RawDelete deletes the resource at path. Expects http.StatusOK as response.
func (c Client) RawDelete(path string) (int, error) {
	status, _, err := c.do(http.MethodDelete, path, nil, nil, nil, http.StatusOK)
	return status, err
}

func (c Client) do(method, path string, header map[string]string, body interface{}, result interface{}, expected ...int) (int, http.Header, error) {
	var reader io.Reader
	if body != nil {
		if raw, ok := body.([]byte); ok {
			reader = bytes.NewReader(raw)
		} else {
			data, err := json.Marshal(body)
			if err != nil {
				return http.StatusBadRequest, nil, err
			}
			reader = bytes.NewReader(data)
		}
	}

	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return http.StatusBadRequest, nil, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	for key, value := range header {
		r.Header.Add(key, value)
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}

	var res *http.Response
	var resBody []byte
	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res = rec.Result()
		resBody = rec.Body.Bytes()
	} else {
		res, err = c.httpClient.Do(r)
		if err != nil {
			return http.StatusInternalServerError, nil, err
		}
		defer res.Body.Close()
		resBody, _ = io.ReadAll(res.Body)
	}

	status := res.StatusCode
	ok := false
	for _, e := range expected {
		ok = ok || status == e
	}
	if !ok {
		return status, res.Header, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, expected, strings.TrimSpace(string(resBody)))
	}

	if len(resBody) > 0 && result != nil {
		if raw, ok := result.(*[]byte); ok {
			*raw = resBody
		} else {
			err = json.Unmarshal(resBody, result)
		}
	}
	return status, res.Header, err
}

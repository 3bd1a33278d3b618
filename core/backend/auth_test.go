// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gourd/core/access"
)

const userID = "9d3c2d0b-2f0e-4c4e-9a53-54f8b7c1a1d2"

func TestRegister(t *testing.T) {
	f := newFixture(t)
	queries := newUserQueries(testSchema)
	f.mock.ExpectQuery(queries.insert).
		WithArgs("jane@example.com", sqlmock.AnyArg(), pq.Array([]string{UserRole})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(userID))

	var result map[string]interface{}
	status, err := f.client.RawPost("/auth/register", map[string]string{
		"email":    " jane@example.com ",
		"password": "correct horse",
	}, &result)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, userID, result["id"])
	assert.Equal(t, "jane@example.com", result["email"])
	assert.Equal(t, []interface{}{"user"}, result["roles"])
	assert.NotContains(t, result, "password")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegisterInvalid(t *testing.T) {
	f := newFixture(t)

	status, err := f.client.RawPost("/auth/register", map[string]string{"email": "jane@example.com"}, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	status, err = f.client.RawPost("/auth/register", []byte(`not json`), nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(newUserQueries(testSchema).insert).
		WithArgs("jane@example.com", sqlmock.AnyArg(), pq.Array([]string{UserRole})).
		WillReturnError(&pq.Error{Code: "23505"})

	status, err := f.client.RawPost("/auth/register", map[string]string{
		"email":    "jane@example.com",
		"password": "again",
	}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, err.Error(), "constraint violation on user")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	hash, err := access.HashPassword("correct horse")
	require.NoError(t, err)
	queries := newUserQueries(testSchema)

	f.mock.ExpectQuery(queries.login).WithArgs("jane@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash", "roles"}).AddRow(userID, hash, "{user}"))

	var result map[string]string
	status, err := f.client.RawPost("/auth/login", map[string]string{
		"email":    "jane@example.com",
		"password": "correct horse",
	}, &result)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, result["token"])

	identity, err := f.backend.Tokens().Verify(result["token"])
	require.NoError(t, err)
	assert.Equal(t, userID, identity.Subject)
	assert.Equal(t, []string{"user"}, identity.Roles)

	// the token identifies the caller on /auth/me
	var me map[string]interface{}
	status, err = f.client.WithToken(result["token"]).RawGet("/auth/me", &me)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, userID, me["id"])
	assert.Equal(t, []interface{}{"user"}, me["roles"])

	// wrong password
	f.mock.ExpectQuery(queries.login).WithArgs("jane@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash", "roles"}).AddRow(userID, hash, "{user}"))
	status, err = f.client.RawPost("/auth/login", map[string]string{
		"email":    "jane@example.com",
		"password": "wrong",
	}, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)

	// unknown user
	f.mock.ExpectQuery(queries.login).WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash", "roles"}))
	status, err = f.client.RawPost("/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "wrong",
	}, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMeAnonymous(t *testing.T) {
	f := newFixture(t)
	status, err := f.client.RawGet("/auth/me", nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminBootstrap(t *testing.T) {
	f := newFixture(t, func(bb *Builder, mock sqlmock.Sqlmock) {
		bb.AdminEmail = "admin@example.com"
		bb.AdminPassword = "admin-password"
		mock.ExpectExec(newUserQueries(testSchema).ensure).
			WithArgs("admin@example.com", sqlmock.AnyArg(), pq.Array([]string{access.AdminRole, UserRole})).
			WillReturnResult(sqlmock.NewResult(0, 1))
	})
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoginUnknownUserChecksPassword(t *testing.T) {
	f := newFixture(t)
	var hashes []string
	checkPassword = func(hash, password string) bool {
		hashes = append(hashes, hash)
		return access.CheckPassword(hash, password)
	}
	defer func() { checkPassword = access.CheckPassword }()

	f.mock.ExpectQuery(newUserQueries(testSchema).login).WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash", "roles"}))
	status, err := f.client.RawPost("/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "guess",
	}, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.Len(t, hashes, 1)
	assert.Equal(t, dummyHash(), hashes[0])
	assert.NotEmpty(t, hashes[0])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

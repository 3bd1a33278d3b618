// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gourd/core/csql"
	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/model"
)

func TestBuildValidation(t *testing.T) {
	post := `{"table": "post", "fields": [{"name": "id"}, {"name": "title", "type": "text"}]}`

	tests := []struct {
		name   string
		config string
	}{
		{"reserved table", `{"entities": [{"table": "user", "fields": [{"name": "id"}]}]}`},
		{"reserved route", `{"entities": [{"table": "auth", "fields": [{"name": "id"}]}]}`},
		{"duplicate table", `{"entities": [` + post + `,` + post + `]}`},
		{"invalid json", `{"entities": [`},
		{"unknown parent field", `{"entities": [` + post + `, {"table": "comment", "fields": [{"name": "id"},
			{"name": "post_id", "type": "text", "relation": {"foreign_key": "post_id", "references": "post.slug"}}]}]}`},
		{"malformed reference", `{"entities": [{"table": "comment", "fields": [{"name": "id"},
			{"name": "post_id", "type": "text", "relation": {"foreign_key": "post_id", "references": "post"}}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			_, err = Build(&Builder{
				Config: tt.config,
				DB:     &csql.DB{DB: db, Schema: testSchema},
				Router: mux.NewRouter(),
			})
			require.Error(t, err)
			assert.True(t, failure.IsType(err, failure.TypeValidation), "got %v", err)
			// nothing was provisioned
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBuildMissingDependencies(t *testing.T) {
	_, err := Build(&Builder{Router: mux.NewRouter()})
	assert.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, err = Build(&Builder{DB: &csql.DB{DB: db}})
	assert.Error(t, err)
}

func TestNewPanicsOnInvalidConfig(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	assert.Panics(t, func() {
		New(&Builder{
			Config: `{"entities": [{"table": "version", "fields": [{"name": "id"}]}]}`,
			DB:     &csql.DB{DB: db, Schema: testSchema},
			Router: mux.NewRouter(),
		})
	})
}

type tag struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

func TestBuildFromStructs(t *testing.T) {
	d, err := model.FromStruct(tag{})
	require.NoError(t, err)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(newUserQueries(testSchema).create).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE table IF NOT EXISTS blog."tag" ("id" BIGSERIAL PRIMARY KEY, "label" text);`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	router := mux.NewRouter()
	b, err := Build(&Builder{
		Entities:     []*model.Description{d},
		DB:           &csql.DB{DB: db, Schema: testSchema},
		Router:       router,
		UpdateSchema: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, b.Tokens())
	assert.Contains(t, b.collections, "tag")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildWithoutSchemaUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = Build(&Builder{
		Config: configurationJSON,
		DB:     &csql.DB{DB: db, Schema: testSchema},
		Router: mux.NewRouter(),
	})
	require.NoError(t, err)
	// no table was touched
	assert.NoError(t, mock.ExpectationsWereMet())
}

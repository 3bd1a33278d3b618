// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"database/sql/driver"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gourd/core"
	"github.com/relabs-tech/gourd/core/access"
	"github.com/relabs-tech/gourd/core/client"
	"github.com/relabs-tech/gourd/core/csql"
	"github.com/relabs-tech/gourd/core/model"
	"github.com/relabs-tech/gourd/core/statement"
	"github.com/relabs-tech/gourd/core/token"
)

const testSchema = "blog"

const testSecret = "test-secret"

var configurationJSON = `{
  "entities": [
    {
      "table": "post",
      "require_role": {"update": "user", "delete": "admin"},
      "fields": [
        {"name": "id"},
        {"name": "title", "type": "text"},
        {"name": "views", "type": "integer"},
        {"name": "secret", "type": "text", "sensitive": true},
        {"name": "created_at"},
        {"name": "updated_at"}
      ]
    },
    {
      "table": "comment",
      "id_type": "serial",
      "require_role": {"read": "user"},
      "fields": [
        {"name": "id"},
        {"name": "body", "type": "text"},
        {"name": "rating", "type": "real"},
        {"name": "post_id", "type": "text", "relation": {"foreign_key": "post_id", "references": "post.id"}}
      ]
    }
  ]
}`

type event struct {
	resource  string
	operation core.Operation
	payload   string
}

type recordingNotifier struct {
	mutex  sync.Mutex
	events []event
}

func (n *recordingNotifier) Notify(resource string, operation core.Operation, payload []byte) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.events = append(n.events, event{resource, operation, string(payload)})
}

type fixture struct {
	backend  *Backend
	mock     sqlmock.Sqlmock
	sets     map[string]*statement.Set
	notifier *recordingNotifier
	client   client.Client
}

// newFixture builds a backend on a mocked database. The table provisioning
// expectations are consumed already.
func newFixture(t *testing.T, configure ...func(*Builder, sqlmock.Sqlmock)) *fixture {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := token.New(context.Background(), token.Config{Secret: testSecret})
	require.NoError(t, err)

	f := &fixture{
		mock:     mock,
		sets:     map[string]*statement.Set{},
		notifier: &recordingNotifier{},
	}
	router := mux.NewRouter()
	bb := &Builder{
		Config:       configurationJSON,
		DB:           &csql.DB{DB: db, Schema: testSchema},
		Router:       router,
		Tokens:       tokens,
		Notifier:     f.notifier,
		UpdateSchema: true,
	}

	mock.ExpectExec(newUserQueries(testSchema).create).WillReturnResult(sqlmock.NewResult(0, 0))
	for _, c := range configure {
		c(bb, mock)
	}
	descriptions, err := model.ParseConfiguration([]byte(configurationJSON))
	require.NoError(t, err)
	for _, d := range descriptions {
		set, err := statement.Compile(d, testSchema)
		require.NoError(t, err)
		for _, ddl := range set.DDL {
			mock.ExpectExec(ddl).WillReturnResult(sqlmock.NewResult(0, 0))
		}
		f.sets[d.Table] = set
	}

	f.backend, err = Build(bb)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	f.client = client.NewWithRouter(router)
	return f
}

// as returns a client with a real bearer token for subject and roles
func (f *fixture) as(t *testing.T, subject string, roles ...string) client.Client {
	tok, err := f.backend.Tokens().Issue(access.Identity{Subject: subject, Roles: roles})
	require.NoError(t, err)
	return f.client.WithToken(tok)
}

func driverValues(args []interface{}) []driver.Value {
	values := make([]driver.Value, len(args))
	for i, a := range args {
		values[i] = a
	}
	return values
}

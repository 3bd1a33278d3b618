// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"errors"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/gourd/core"
	"github.com/relabs-tech/gourd/core/access"
	"github.com/relabs-tech/gourd/core/csql"
	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/logger"
	"github.com/relabs-tech/gourd/core/model"
	"github.com/relabs-tech/gourd/core/schema"
	"github.com/relabs-tech/gourd/core/statement"
	"github.com/relabs-tech/gourd/core/token"
)

// Backend is the generated rest backend
type Backend struct {
	db            *csql.DB
	router        *mux.Router
	tokens        *token.Service
	notifier      core.Notifier
	jsonValidator *schema.Validator
	collections   map[string]*collection
	updateSchema  bool
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Config is the JSON description of all entities. Either Config or Entities
	// must be set, the entities of both are combined.
	Config string
	// Entities are descriptions built with model.FromStruct or model.Classify
	Entities []*model.Description
	// DB is a postgres database. This is mandatory.
	DB *csql.DB
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Tokens issues and verifies bearer tokens. If nil, a token service with
	// the default secret resolution is created.
	Tokens *token.Service
	// UpdateSchema runs the idempotent table provisioning at startup. Leave it
	// false for read-only replicas.
	UpdateSchema bool
	// Notifier receives change events. This is optional.
	Notifier core.Notifier
	// AdminEmail and AdminPassword bootstrap an admin user. This is optional.
	AdminEmail    string
	AdminPassword string
}

// names which are taken by built-in routes and tables
var reservedTables = map[string]bool{
	"auth":    true,
	"version": true,
	userTable: true,
}

// New realizes the actual backend. It creates the sql tables (if they
// do not exist) and adds actual routes to router. It panics if the
// configuration is invalid.
func New(bb *Builder) *Backend {
	b, err := Build(bb)
	if err != nil {
		panic(err)
	}
	return b
}

// Build is like New but returns an error instead of panicking. Invalid
// entity descriptions are reported as validation failures.
func Build(bb *Builder) (*Backend, error) {
	if bb.DB == nil {
		return nil, errors.New("DB is missing")
	}
	if bb.Router == nil {
		return nil, errors.New("Router is missing")
	}

	descriptions := append([]*model.Description{}, bb.Entities...)
	if bb.Config != "" {
		parsed, err := model.ParseConfiguration([]byte(bb.Config))
		if err != nil {
			return nil, err
		}
		descriptions = append(descriptions, parsed...)
	}

	tokens := bb.Tokens
	if tokens == nil {
		var err error
		tokens, err = token.New(context.Background(), token.Config{})
		if err != nil {
			return nil, err
		}
	}

	b := &Backend{
		db:           bb.DB,
		router:       bb.Router,
		tokens:       tokens,
		notifier:     bb.Notifier,
		collections:  make(map[string]*collection),
		updateSchema: bb.UpdateSchema,
	}

	// compile everything before touching the database
	var err error
	b.jsonValidator, err = schema.NewValidator(nil, nil)
	if err != nil {
		return nil, err
	}
	var compiled []*statement.Set
	for _, d := range descriptions {
		if reservedTables[d.Table] {
			return nil, failure.Validation("table name '%s' is reserved", d.Table)
		}
		if _, ok := b.collections[d.Table]; ok {
			return nil, failure.Validation("entity '%s' is declared twice", d.Table)
		}
		set, err := statement.Compile(d, b.db.Schema)
		if err != nil {
			return nil, err
		}
		if err := b.jsonValidator.Add(d.BodySchema()); err != nil {
			return nil, failure.Wrapf(err, failure.TypeValidation, "cannot compile body schema of %s", d.Table)
		}
		b.collections[d.Table] = &collection{backend: b, statements: set}
		compiled = append(compiled, set)
	}
	for _, set := range compiled {
		rel := set.Description().Relation
		if rel == nil {
			continue
		}
		parent, ok := b.collections[rel.ParentTable]
		if !ok {
			logger.Default().Warnf("%s references unknown entity %s, the nested route is created anyway",
				set.Description().Table, rel.ParentTable)
			continue
		}
		if _, ok := parent.statements.Description().Field(rel.ParentKey); !ok {
			return nil, failure.Validation("%s references unknown field %s.%s",
				set.Description().Table, rel.ParentTable, rel.ParentKey)
		}
	}

	logger.AddRequestID(b.router)
	b.handleCORS()
	b.router.Use(access.NewBearerMiddleware(b.tokens))
	b.handleCompression()

	if err := b.handleAuthentication(bb.AdminEmail, bb.AdminPassword); err != nil {
		return nil, err
	}
	b.handleVersion()
	for _, set := range compiled {
		if err := b.collections[set.Description().Table].register(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Tokens returns the token service of the backend
func (b *Backend) Tokens() *token.Service {
	return b.tokens
}

// Router returns the router of the backend
func (b *Backend) Router() *mux.Router {
	return b.router
}

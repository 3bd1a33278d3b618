// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/relabs-tech/gourd/core/access"
	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/logger"
)

const userTable = "user"

// UserRole is the role of every registered user
const UserRole = "user"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var checkPassword = access.CheckPassword

var (
	dummyHashOnce  sync.Once
	dummyHashValue string
)

// dummyHash is compared against on logins with an unknown email
func dummyHash() string {
	dummyHashOnce.Do(func() {
		hash, err := access.HashPassword(uuid.New().String())
		if err != nil {
			logger.Default().WithError(err).Errorln("cannot create dummy password hash")
		}
		dummyHashValue = hash
	})
	return dummyHashValue
}

type userQueries struct {
	create string
	insert string
	ensure string
	login  string
}

func newUserQueries(schema string) userQueries {
	table := fmt.Sprintf("%s.\"%s\"", schema, userTable)
	return userQueries{
		create: "CREATE table IF NOT EXISTS " + table + " (" +
			"id uuid NOT NULL DEFAULT uuid_generate_v4() PRIMARY KEY, " +
			"email text NOT NULL UNIQUE, " +
			"password_hash text NOT NULL, " +
			"roles varchar[] NOT NULL DEFAULT '{user}', " +
			"created_at timestamp NOT NULL DEFAULT now());",
		insert: "INSERT INTO " + table + " (email, password_hash, roles) VALUES($1,$2,$3) RETURNING id;",
		ensure: "INSERT INTO " + table + " (email, password_hash, roles) VALUES($1,$2,$3) ON CONFLICT (email) DO NOTHING;",
		login:  "SELECT id, password_hash, roles FROM " + table + " WHERE email = $1;",
	}
}

// handleAuthentication creates the user table if the schema is updated, bootstraps the admin user and
// adds the routes /auth/register, /auth/login and /auth/me
func (b *Backend) handleAuthentication(adminEmail, adminPassword string) error {
	rlog := logger.Default()
	queries := newUserQueries(b.db.Schema)

	if b.updateSchema {
		if _, err := b.db.Exec(queries.create); err != nil {
			rlog.WithError(err).Errorf("Error while updating schema when running: %s", queries.create)
			return failure.FromStorage(err, userTable)
		}
	}

	if adminEmail != "" && adminPassword != "" {
		hash, err := access.HashPassword(adminPassword)
		if err != nil {
			return err
		}
		res, err := b.db.Exec(queries.ensure, adminEmail, hash, pq.Array([]string{access.AdminRole, UserRole}))
		if err != nil {
			return failure.FromStorage(err, userTable)
		}
		if count, _ := res.RowsAffected(); count > 0 {
			rlog.Infoln("created admin user", adminEmail)
		}
	}

	rlog.Debugln("authentication")
	rlog.Debugln("  handle route: /auth/register POST")
	b.router.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		rlog := logger.FromContext(r.Context())
		rlog.Infoln("called route for", r.URL, r.Method)

		c, ok := readCredentials(w, r)
		if !ok {
			return
		}
		hash, err := access.HashPassword(c.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		roles := []string{UserRole}
		var id string
		err = b.db.QueryRowContext(r.Context(), queries.insert, c.Email, hash, pq.Array(roles)).Scan(&id)
		if err != nil {
			rlog.WithError(err).Errorf("Error 4740: cannot register user")
			writeError(w, r, failure.FromStorage(err, userTable))
			return
		}
		jsonData, _ := json.Marshal(map[string]interface{}{"id": id, "email": c.Email, "roles": roles})
		writeJSON(w, r, http.StatusCreated, jsonData)
	}).Methods(http.MethodOptions, http.MethodPost)

	rlog.Debugln("  handle route: /auth/login POST")
	b.router.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		rlog := logger.FromContext(r.Context())
		rlog.Infoln("called route for", r.URL, r.Method)

		c, ok := readCredentials(w, r)
		if !ok {
			return
		}
		var id, hash string
		var roles []string
		err := b.db.QueryRowContext(r.Context(), queries.login, c.Email).Scan(&id, &hash, pq.Array(&roles))
		if err != nil && err != sql.ErrNoRows {
			rlog.WithError(err).Errorf("Error 4741: cannot look up user")
			writeError(w, r, failure.FromStorage(err, userTable))
			return
		}
		if err == sql.ErrNoRows {
			// unknown users cost as much as wrong passwords
			hash = dummyHash()
		}
		if !checkPassword(hash, c.Password) || err == sql.ErrNoRows {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		token, err := b.tokens.Issue(access.Identity{Subject: id, Roles: roles})
		if err != nil {
			writeError(w, r, err)
			return
		}
		jsonData, _ := json.Marshal(map[string]string{"token": token})
		writeJSON(w, r, http.StatusOK, jsonData)
	}).Methods(http.MethodOptions, http.MethodPost)

	rlog.Debugln("  handle route: /auth/me GET")
	b.router.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		identity := access.IdentityFromContext(r.Context())
		if identity == nil {
			http.Error(w, "not authenticated", http.StatusUnauthorized)
			return
		}
		roles := identity.Roles
		if roles == nil {
			roles = []string{}
		}
		jsonData, _ := json.Marshal(map[string]interface{}{"id": identity.Subject, "roles": roles})
		writeJSON(w, r, http.StatusOK, jsonData)
	}).Methods(http.MethodOptions, http.MethodGet)
	return nil
}

func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return c, false
	}
	c.Email = strings.TrimSpace(c.Email)
	if c.Email == "" || c.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return c, false
	}
	return c, true
}

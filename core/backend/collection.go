// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"bytes"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/gourd/core"
	"github.com/relabs-tech/gourd/core/access"
	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/logger"
	"github.com/relabs-tech/gourd/core/model"
	"github.com/relabs-tech/gourd/core/statement"
)

// collection serves the routes of one entity
type collection struct {
	backend    *Backend
	statements *statement.Set
}

func (c *collection) description() *model.Description {
	return c.statements.Description()
}

// register creates the table and adds the routes
func (c *collection) register() error {
	b := c.backend
	this := c.description().Table
	rlog := logger.Default()
	rlog.Debugln("create collection:", this)

	if b.updateSchema {
		for _, ddl := range c.statements.DDL {
			if _, err := b.db.Exec(ddl); err != nil {
				rlog.WithError(err).Errorf("Error while updating schema when running: %s", ddl)
				return failure.FromStorage(err, this)
			}
		}
	}

	collectionRoute := "/" + this
	itemRoute := collectionRoute + "/{id}"

	rlog.Debugln("  handle collection routes:", collectionRoute, "GET,POST")
	b.router.HandleFunc(collectionRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		if !c.authorize(w, r, core.OperationList) {
			return
		}
		c.list(w, r, nil)
	}).Methods(http.MethodOptions, http.MethodGet)

	b.router.HandleFunc(collectionRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		c.create(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)

	rlog.Debugln("  handle item routes:", itemRoute, "GET,PUT,DELETE")
	b.router.HandleFunc(itemRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		c.read(w, r)
	}).Methods(http.MethodOptions, http.MethodGet)

	b.router.HandleFunc(itemRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		c.update(w, r)
	}).Methods(http.MethodOptions, http.MethodPut)

	b.router.HandleFunc(itemRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		c.delete(w, r)
	}).Methods(http.MethodOptions, http.MethodDelete)

	if c.description().Relation != nil {
		c.registerRelation()
	}
	return nil
}

// authorize writes 401 for a caller without a verified token, even if the
// operation has no role requirement, and 403 for a missing role
func (c *collection) authorize(w http.ResponseWriter, r *http.Request, operation core.Operation) bool {
	identity := access.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, r, failure.Newf(failure.TypeAuthentication, "%s requires a bearer token", operation))
		return false
	}
	err := access.Authorize(c.description().Roles, operation, identity)
	if err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

// list serves the collection or, with parentID, the nested route. The caller
// authorizes.
func (c *collection) list(w http.ResponseWriter, r *http.Request, parentID *string) {
	params := statement.ParseListParams(r.URL.Query())

	var query string
	var args []interface{}
	if parentID != nil {
		var err error
		query, args, err = c.statements.ListChildren(*parentID, params)
		if err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		query, args = c.statements.List(params)
	}

	rows, err := c.backend.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4721: cannot execute query `%s` %+v", query, args)
		writeError(w, r, failure.FromStorage(err, c.description().Table))
		return
	}
	defer rows.Close()

	response := []map[string]interface{}{}
	for rows.Next() {
		values := c.scanValues()
		if err := rows.Scan(values...); err != nil {
			logger.FromContext(r.Context()).WithError(err).Errorf("Error 4725: cannot scan values")
			writeError(w, r, failure.FromStorage(err, c.description().Table))
			return
		}
		response = append(response, c.object(values))
	}
	if err := rows.Err(); err != nil {
		writeError(w, r, failure.FromStorage(err, c.description().Table))
		return
	}

	jsonData, _ := json.MarshalWithOption(response, json.DisableHTMLEscape())
	w.Header().Set("Pagination-Limit", strconv.Itoa(params.Limit))
	w.Header().Set("Pagination-Current-Page", strconv.Itoa(params.Page))
	writeJSON(w, r, http.StatusOK, jsonData)
}

func (c *collection) read(w http.ResponseWriter, r *http.Request) {
	if !c.authorize(w, r, core.OperationRead) {
		return
	}
	id, ok := c.validID(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	object, err := c.readOne(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonData, _ := json.MarshalWithOption(object, json.DisableHTMLEscape())
	writeJSON(w, r, http.StatusOK, jsonData)
}

func (c *collection) create(w http.ResponseWriter, r *http.Request) {
	if !c.authorize(w, r, core.OperationCreate) {
		return
	}
	args, err := c.bodyArguments(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var id string
	err = c.backend.db.QueryRowContext(r.Context(), c.statements.Insert, args...).Scan(&id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4730: cannot insert %s", c.description().Table)
		writeError(w, r, failure.FromStorage(err, c.description().Table))
		return
	}

	object, err := c.readOne(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonData, _ := json.MarshalWithOption(object, json.DisableHTMLEscape())
	c.notify(core.OperationCreate, jsonData)
	writeJSON(w, r, http.StatusCreated, jsonData)
}

func (c *collection) update(w http.ResponseWriter, r *http.Request) {
	if !c.authorize(w, r, core.OperationUpdate) {
		return
	}
	id, ok := c.validID(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	args, err := c.bodyArguments(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	args = append(args, id)

	res, err := c.backend.db.ExecContext(r.Context(), c.statements.Update, args...)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4731: cannot update %s", c.description().Table)
		writeError(w, r, failure.FromStorage(err, c.description().Table))
		return
	}
	if count, err := res.RowsAffected(); err == nil && count == 0 {
		writeError(w, r, failure.Newf(failure.TypeNotFound, "no such %s", c.description().Table))
		return
	}

	object, err := c.readOne(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonData, _ := json.MarshalWithOption(object, json.DisableHTMLEscape())
	c.notify(core.OperationUpdate, jsonData)
	writeJSON(w, r, http.StatusOK, jsonData)
}

func (c *collection) delete(w http.ResponseWriter, r *http.Request) {
	if !c.authorize(w, r, core.OperationDelete) {
		return
	}
	id, ok := c.validID(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}

	res, err := c.backend.db.ExecContext(r.Context(), c.statements.Delete, id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4732: cannot delete %s", c.description().Table)
		writeError(w, r, failure.FromStorage(err, c.description().Table))
		return
	}
	if count, err := res.RowsAffected(); err == nil && count == 0 {
		writeError(w, r, failure.Newf(failure.TypeNotFound, "no such %s", c.description().Table))
		return
	}
	pk, _ := c.description().PrimaryKey()
	jsonData, _ := json.Marshal(map[string]string{pk.Name: id})
	c.notify(core.OperationDelete, jsonData)
	writeJSON(w, r, http.StatusOK, jsonData)
}

func (c *collection) readOne(r *http.Request, id string) (map[string]interface{}, error) {
	values := c.scanValues()
	err := c.backend.db.QueryRowContext(r.Context(), c.statements.Select, id).Scan(values...)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.FromContext(r.Context()).WithError(err).Errorf("Error 4727: cannot QueryRow")
		}
		return nil, failure.FromStorage(err, c.description().Table)
	}
	return c.object(values), nil
}

func (c *collection) notify(operation core.Operation, payload []byte) {
	if c.backend.notifier != nil {
		c.backend.notifier.Notify(c.description().Table, operation, payload)
	}
}

// validID checks the path identifier against the primary key type. It writes
// a 400 response and returns false if the identifier cannot be valid.
func (c *collection) validID(w http.ResponseWriter, r *http.Request, id string) (string, bool) {
	if c.description().IDType == model.IDTypeSerial {
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return "", false
		}
		return id, true
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		http.Error(w, "invalid uuid", http.StatusBadRequest)
		return "", false
	}
	return parsed.String(), true
}

// bodyArguments validates the request body and returns the values of the
// writable fields in declaration order. Missing fields are bound as NULL,
// unknown and server-assigned fields are ignored.
func (c *collection) bodyArguments(r *http.Request) ([]interface{}, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, failure.Wrap(err, failure.TypeValidation, "cannot read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if err := c.backend.jsonValidator.ValidateBytes(body, c.description().SchemaID()); err != nil {
		return nil, err
	}

	var object map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&object); err != nil {
		return nil, failure.Wrap(err, failure.TypeValidation, "invalid json body")
	}

	var args []interface{}
	for _, f := range c.description().Writable() {
		value := object[f.Name]
		if number, ok := value.(json.Number); ok {
			if f.Storage == model.StorageInteger {
				i, err := number.Int64()
				if err != nil {
					return nil, failure.Validation("%s: %s is not an integer", f.Name, number)
				}
				value = i
			} else {
				fl, err := number.Float64()
				if err != nil {
					return nil, failure.Validation("%s: %s is not a number", f.Name, number)
				}
				value = fl
			}
		}
		args = append(args, value)
	}
	return args, nil
}

// scanValues returns one nullable scan target per selected column
func (c *collection) scanValues() []interface{} {
	values := make([]interface{}, len(c.statements.Columns))
	for i, f := range c.statements.Columns {
		switch {
		case f.IsTimestamp():
			values[i] = new(sql.NullTime)
		case f.Storage == model.StorageInteger:
			values[i] = new(sql.NullInt64)
		case f.Storage == model.StorageReal:
			values[i] = new(sql.NullFloat64)
		default:
			values[i] = new(sql.NullString)
		}
	}
	return values
}

// object renders scanned values, NULL becomes nil
func (c *collection) object(values []interface{}) map[string]interface{} {
	object := make(map[string]interface{}, len(values))
	for i, f := range c.statements.Columns {
		var value interface{}
		switch v := values[i].(type) {
		case *sql.NullTime:
			if v.Valid {
				value = v.Time.UTC()
			}
		case *sql.NullInt64:
			if v.Valid {
				value = v.Int64
			}
		case *sql.NullFloat64:
			if v.Valid {
				value = v.Float64
			}
		case *sql.NullString:
			if v.Valid {
				value = v.String
			}
		}
		object[f.Name] = value
	}
	return object
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, jsonData []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if r.Method == http.MethodGet {
		etag := bytesToEtag(jsonData)
		w.Header().Set("Etag", etag)
		if ifNoneMatchFound(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.WriteHeader(status)
	w.Write(jsonData)
}

// writeError writes the status code of err. Messages of foreign errors are
// not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := failure.HTTPStatus(err)
	message := http.StatusText(status)
	var e *failure.Error
	if errors.As(err, &e) {
		message = e.Message
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).WithError(err).Errorln("request failed")
	}
	http.Error(w, message, status)
}

func bytesToEtag(b []byte) string {
	hash := md5.Sum(b)
	return "\"" + hex.EncodeToString(hash[:]) + "\""
}

func ifNoneMatchFound(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.Trim(ifNoneMatch, " ")
	if len(ifNoneMatch) == 0 {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	for _, s := range strings.Split(ifNoneMatch, ",") {
		s = strings.Trim(s, " \"")
		t := strings.Trim(etag, " \"")
		if s == t {
			return true
		}
	}
	return false
}

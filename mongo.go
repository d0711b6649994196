package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
)

const mongoIDField = "_id"

type MongoConfig struct {
	URI      string
	Database string
}

// MongoConn is a Backend over a MongoDB database. Tables are collections and
// the record id is the document _id.
type MongoConn struct {
	config MongoConfig
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

func NewMongoConn(config MongoConfig, options ...Option) *MongoConn {
	opt := createOption(options)
	return &MongoConn{
		config: config,
		logger: opt.logger,
	}
}

func (m *MongoConn) Open(ctx context.Context) error {
	if m.client != nil {
		return nil
	}

	client, err := mongo.Connect(ctx, mongoOptions.Client().ApplyURI(m.config.URI))
	if err != nil {
		m.log().Error("connection failed", "driver", "mongodb", "err", err)
		return fmt.Errorf("failed to connect to mongodb. %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		m.log().Error("connection failed", "driver", "mongodb", "err", err)
		return fmt.Errorf("failed to connect to mongodb. %w", err)
	}

	m.client = client
	m.db = client.Database(m.config.Database)
	return nil
}

// Close disconnects the client. It is safe to call more than once.
func (m *MongoConn) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}

	client := m.client
	m.client = nil
	m.db = nil
	return client.Disconnect(ctx)
}

func (m *MongoConn) log() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}

	return m.logger
}

func (m *MongoConn) collection(table string) (*mongo.Collection, error) {
	if m.db == nil {
		return nil, ErrNotOpen
	}

	return m.db.Collection(table), nil
}

func (m *MongoConn) InsertRow(ctx context.Context, table string, fields []Field) (string, error) {
	coll, err := m.collection(table)
	if err != nil {
		return "", err
	}

	id := ""
	doc := bson.D{}
	for _, f := range fields {
		if f.Name == idField {
			id = f.Value
			continue
		}
		doc = append(doc, bson.E{Key: f.Name, Value: f.Value})
	}

	if id == "" {
		id = primitive.NewObjectID().Hex()
	}
	doc = append(bson.D{{Key: mongoIDField, Value: id}}, doc...)

	m.log().Debug("insert", "collection", table, "doc", doc)
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		m.log().Error("insert failed", "collection", table, "err", err)
		return "", wrapMongoError(err)
	}

	return id, nil
}

func (m *MongoConn) UpdateRow(ctx context.Context, table string, id string, fields []Field) error {
	if len(fields) == 0 {
		return nil
	}

	coll, err := m.collection(table)
	if err != nil {
		return err
	}

	set := bson.D{}
	for _, f := range fields {
		set = append(set, bson.E{Key: f.Name, Value: f.Value})
	}

	if _, err := coll.UpdateOne(ctx, mongoIDFilter(id), bson.D{{Key: "$set", Value: set}}); err != nil {
		m.log().Error("update failed", "collection", table, "err", err)
		return wrapMongoError(err)
	}

	return nil
}

func (m *MongoConn) DeleteRow(ctx context.Context, table string, id string) error {
	coll, err := m.collection(table)
	if err != nil {
		return err
	}

	if _, err := coll.DeleteOne(ctx, mongoIDFilter(id)); err != nil {
		m.log().Error("delete failed", "collection", table, "err", err)
		return wrapMongoError(err)
	}

	return nil
}

func (m *MongoConn) SelectRows(ctx context.Context, sel Selection) (*ResultSet, error) {
	coll, err := m.collection(sel.Table)
	if err != nil {
		return nil, err
	}

	filter, err := parseConditionsIntoFilter(sel.Conditions)
	if err != nil {
		m.log().Error("query failed", "collection", sel.Table, "err", err)
		return nil, err
	}

	opts := mongoOptions.Find()
	if sort := makeMongoSort(sel.Sorter); len(sort) > 0 {
		opts.SetSort(sort)
	}
	if sel.Limit > 0 {
		opts.SetLimit(int64(sel.Limit))
	}
	if sel.Offset > 0 {
		opts.SetSkip(sel.Offset)
	}

	m.log().Debug("find", "collection", sel.Table, "filter", filter)
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		m.log().Error("query failed", "collection", sel.Table, "err", err)
		return nil, wrapMongoError(err)
	}
	defer cur.Close(ctx)

	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		m.log().Error("query failed", "collection", sel.Table, "err", err)
		return nil, wrapMongoError(err)
	}

	return documentsToResultSet(docs), nil
}

func (m *MongoConn) RawRows(ctx context.Context, query string, args []any) (*ResultSet, error) {
	return nil, fmt.Errorf("the database does not support SQL Query. %w", ErrUnsupported)
}

func mongoKey(field string) string {
	if field == idField {
		return mongoIDField
	}

	return field
}

// mongoIDFilter matches id stored as a string or, when id is a valid hex
// string, as an ObjectID.
func mongoIDFilter(id string) bson.D {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.D{{Key: mongoIDField, Value: bson.M{"$in": bson.A{id, oid}}}}
	}

	return bson.D{{Key: mongoIDField, Value: id}}
}

func parseConditionsIntoFilter(conditions []Condition) (bson.D, error) {
	var parts []bson.D
	for _, cond := range conditions {
		k := mongoKey(cond.Field)
		val := cond.Value

		if fnull, ok := val.(FilterNull); ok {
			if fnull.IsNull() {
				parts = append(parts, bson.D{{Key: k, Value: nil}})
			} else {
				parts = append(parts, bson.D{{Key: k, Value: bson.M{"$ne": nil}}})
			}
			continue
		}

		if fcontain, ok := val.(FilterStringContains); ok {
			str := strings.TrimSuffix(strings.TrimPrefix(fcontain.Contains(), "%"), "%")
			if fs, ok := fcontain.(filterStringContains); ok {
				str = string(fs)
			}
			parts = append(parts, bson.D{{Key: k, Value: primitive.Regex{Pattern: regexp.QuoteMeta(str)}}})
			continue
		}

		vval := reflect.ValueOf(val)
		if vval.Kind() != reflect.Slice || vval.Type().Elem().Kind() == reflect.Uint8 {
			if k == mongoIDField {
				parts = append(parts, mongoIDFilter(fmt.Sprint(val)))
				continue
			}
			parts = append(parts, bson.D{{Key: k, Value: val}})
			continue
		}

		f, err := parameterizedFilterCriteriaSliceMongo(k, val)
		if err != nil {
			return nil, fmt.Errorf("invalid filter on %s. %w", cond.Field, err)
		}
		parts = append(parts, bson.D{f})
	}

	switch len(parts) {
	case 0:
		return bson.D{}, nil
	case 1:
		return parts[0], nil
	default:
		return bson.D{{Key: "$and", Value: parts}}, nil
	}
}

func parameterizedFilterCriteriaSliceMongo(fieldname string, values any) (bson.E, error) {
	s := reflect.ValueOf(values)
	if s.Kind() != reflect.Slice {
		return bson.E{}, fmt.Errorf("expecting slice as values, got %s", s.Kind().String())
	}

	if s.Len() == 0 {
		return bson.E{}, fmt.Errorf("cannot use empty slice to parameterized")
	}

	var filter bson.E
	if s.Len() > 1 {
		filter = bson.E{Key: fieldname, Value: bson.M{"$in": values}}
	} else {
		filter = bson.E{Key: fieldname, Value: s.Index(0).Interface()}
	}

	return filter, nil
}

func makeMongoSort(sorter []string) bson.D {
	var sort bson.D
	for _, s := range sorter {
		if s == "" {
			continue
		}

		dir := 1
		field := s
		if s[:1] == "-" || s[:1] == "+" {
			if s[:1] == "-" {
				dir = -1
			}
			field = s[1:]
		}

		sort = append(sort, bson.E{Key: mongoKey(field), Value: dir})
	}

	return sort
}

func documentsToResultSet(docs []bson.D) *ResultSet {
	rs := &ResultSet{}
	index := make(map[string]int)
	for _, doc := range docs {
		for _, e := range doc {
			if _, ok := index[e.Key]; !ok {
				index[e.Key] = len(rs.Columns)
				rs.Columns = append(rs.Columns, e.Key)
			}
		}
	}

	for _, doc := range docs {
		row := make([]string, len(rs.Columns))
		for _, e := range doc {
			row[index[e.Key]] = mongoValueToText(e.Value)
		}
		rs.Rows = append(rs.Rows, row)
	}

	if i, ok := index[mongoIDField]; ok {
		rs.Columns[i] = idField
	}

	return rs
}

func mongoValueToText(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339)
	case bson.D:
		if b, err := bson.MarshalExtJSON(v, false, false); err == nil {
			return string(b)
		}
	}

	return fmt.Sprint(val)
}

func wrapMongoError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w. %s", ErrKeyAlreadyExists, err.Error())
	}

	errMap := map[error]error{
		mongo.ErrNoDocuments: ErrKeynotFound,
	}

	for g, e := range errMap {
		if errors.Is(err, g) {
			err = fmt.Errorf("%w. %s", e, err.Error())
		}
	}

	return err
}

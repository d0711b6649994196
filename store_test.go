package store

import (
	"context"
	"testing"
)

const boletosDDL = `
CREATE TABLE boletos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	nombre TEXT NOT NULL DEFAULT '',
	fecha_salida TEXT,
	fecha_llegada TEXT,
	asiento TEXT,
	numero_vuelo TEXT
);`

func setupTestConn(t *testing.T) *Conn {
	t.Helper()

	conn, err := Connect(context.Background(), Config{Driver: DriverSqlite, Database: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})

	if _, err := conn.Exec(context.Background(), boletosDDL); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	return conn
}

func insertBoleto(t *testing.T, conn *Conn, nombre, asiento, vuelo string) string {
	t.Helper()

	m := NewModel(conn, "boletos", "nombre", "asiento", "numero_vuelo")
	m.Set("nombre", nombre)
	m.Set("asiento", asiento)
	m.Set("numero_vuelo", vuelo)
	if err := m.Save(context.Background()); err != nil {
		t.Fatalf("Failed to insert boleto: %v", err)
	}

	return m.Get("id")
}

type updateCall struct {
	table  string
	id     string
	fields []Field
}

// recordingBackend records every call and answers selects with result.
type recordingBackend struct {
	inserts [][]Field
	updates []updateCall
	deletes []string
	selects []Selection
	raws    []string

	nextID string
	result *ResultSet
	err    error
}

func (b *recordingBackend) calls() int {
	return len(b.inserts) + len(b.updates) + len(b.deletes) + len(b.selects) + len(b.raws)
}

func (b *recordingBackend) InsertRow(_ context.Context, _ string, fields []Field) (string, error) {
	b.inserts = append(b.inserts, fields)
	return b.nextID, b.err
}

func (b *recordingBackend) UpdateRow(_ context.Context, table string, id string, fields []Field) error {
	b.updates = append(b.updates, updateCall{table: table, id: id, fields: fields})
	return b.err
}

func (b *recordingBackend) DeleteRow(_ context.Context, _ string, id string) error {
	b.deletes = append(b.deletes, id)
	return b.err
}

func (b *recordingBackend) SelectRows(_ context.Context, sel Selection) (*ResultSet, error) {
	b.selects = append(b.selects, sel)
	if b.err != nil {
		return nil, b.err
	}
	if b.result == nil {
		return &ResultSet{}, nil
	}
	return b.result, nil
}

func (b *recordingBackend) RawRows(_ context.Context, query string, _ []any) (*ResultSet, error) {
	b.raws = append(b.raws, query)
	if b.err != nil {
		return nil, b.err
	}
	if b.result == nil {
		return &ResultSet{}, nil
	}
	return b.result, nil
}

func fieldNames(fields []Field) []string {
	return Map(fields, func(f Field) string {
		return f.Name
	})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestModelSaveRoutesByID(t *testing.T) {
	backend := &recordingBackend{nextID: "7"}
	m := NewModel(backend, "boletos", "nombre", "asiento")
	m.Set("nombre", "A")
	m.Set("asiento", "12A")

	if err := m.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if len(backend.inserts) != 1 || len(backend.updates) != 0 {
		t.Fatalf("Expected 1 insert and 0 updates, got %d and %d", len(backend.inserts), len(backend.updates))
	}

	if got := fieldNames(backend.inserts[0]); !equalStrings(got, []string{"nombre", "asiento"}) {
		t.Errorf("Expected insert fields [nombre asiento], got %v", got)
	}

	if m.Get("id") != "7" || !m.IsAttached() {
		t.Fatalf("Expected record attached with id 7, got %q", m.Get("id"))
	}

	m.Set("asiento", "14C")
	if err := m.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if len(backend.inserts) != 1 || len(backend.updates) != 1 {
		t.Fatalf("Expected second save to update, got %d inserts and %d updates", len(backend.inserts), len(backend.updates))
	}

	upd := backend.updates[0]
	if upd.id != "7" || upd.table != "boletos" {
		t.Errorf("Expected update of boletos id 7, got %s id %s", upd.table, upd.id)
	}

	for _, f := range upd.fields {
		if f.Name == "id" {
			t.Errorf("Update must not write the id column")
		}
	}
}

func TestModelUpdateAndRemoveRequireID(t *testing.T) {
	backend := &recordingBackend{}
	m := NewModel(backend, "boletos", "id", "nombre")
	m.Set("nombre", "A")

	if err := m.Update(context.Background()); !errors.Is(err, ErrMissingID) {
		t.Errorf("Expected ErrMissingID from Update, got %v", err)
	}

	if err := m.Remove(context.Background()); !errors.Is(err, ErrMissingID) {
		t.Errorf("Expected ErrMissingID from Remove, got %v", err)
	}

	if backend.calls() != 0 {
		t.Errorf("Expected no backend calls, got %d", backend.calls())
	}
}

func TestModelIgnoreMarker(t *testing.T) {
	backend := &recordingBackend{nextID: "1"}
	m := NewModel(backend, "boletos", "nombre", "asiento", "numero_vuelo")
	m.Set("nombre", "A")
	m.Set("asiento", IgnoreMarker)
	m.Ignore("numero_vuelo")

	if err := m.Create(context.Background()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if got := fieldNames(backend.inserts[0]); !equalStrings(got, []string{"nombre"}) {
		t.Errorf("Expected insert fields [nombre], got %v", got)
	}

	if m.Get("asiento") != IgnoreMarker {
		t.Errorf("Expected ignored field to stay readable, got %q", m.Get("asiento"))
	}

	if err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if got := fieldNames(backend.updates[0].fields); !equalStrings(got, []string{"nombre"}) {
		t.Errorf("Expected update fields [nombre], got %v", got)
	}
}

func TestDynamicModelWritesEveryColumn(t *testing.T) {
	backend := &recordingBackend{nextID: "3"}
	m := NewDynamicModel()
	m.SetConnection(backend, "boletos")
	m.SetAttributes("nombre", "asiento")
	m.Set("nombre", "A")
	m.Set("asiento", IgnoreMarker)

	if err := m.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	fields := backend.inserts[0]
	if got := fieldNames(fields); !equalStrings(got, []string{"nombre", "asiento"}) {
		t.Fatalf("Expected insert fields [nombre asiento], got %v", got)
	}

	if fields[1].Value != IgnoreMarker {
		t.Errorf("Expected the marker to be written literally, got %q", fields[1].Value)
	}
}

func TestDynamicModelSetAttributesResetsValues(t *testing.T) {
	var m DynamicModel
	m.SetAttributes("nombre", "asiento", "nombre")
	m.Set("nombre", "A")
	m.SetAttributes("nombre", "asiento")

	if got := m.Columns(); !equalStrings(got, []string{"nombre", "asiento"}) {
		t.Errorf("Expected columns [nombre asiento], got %v", got)
	}

	if m.Get("nombre") != "" {
		t.Errorf("Expected value reset to empty, got %q", m.Get("nombre"))
	}

	err := m.Save(context.Background())
	if !errors.Is(err, ErrNotOpen) {
		t.Errorf("Expected ErrNotOpen without a connection, got %v", err)
	}
}

func TestSetAppendsNewField(t *testing.T) {
	m := NewModel(&recordingBackend{}, "boletos", "nombre")
	m.Set("asiento", "12A")

	if got := m.Columns(); !equalStrings(got, []string{"nombre", "asiento"}) {
		t.Errorf("Expected columns [nombre asiento], got %v", got)
	}

	if m.Get("missing") != "" || m.Has("missing") {
		t.Errorf("Expected unknown field to read as empty")
	}

	m.Reset()
	if m.Get("asiento") != "" || !m.Has("asiento") {
		t.Errorf("Expected Reset to clear values and keep columns")
	}
}

func TestModelScenario(t *testing.T) {
	ctx := context.Background()
	conn := setupTestConn(t)

	m := NewModel(conn, "boletos", "nombre", "asiento")
	m.Set("nombre", "A")
	m.Set("asiento", "12A")
	if err := m.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	id := m.Get("id")
	if id != "1" {
		t.Fatalf("Expected generated id 1, got %q", id)
	}

	other := NewModel(conn, "boletos", "asiento", "id", "nombre")
	found, err := other.Find(ctx, id)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	if !found {
		t.Fatalf("Expected row %s to be found", id)
	}

	if other.Get("nombre") != "A" || other.Get("asiento") != "12A" || other.Get("id") != id {
		t.Errorf("Unexpected attributes after Find: %v", other.Attributes())
	}

	other.Set("asiento", "14C")
	if err := other.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rows, err := m.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if len(rows) != 1 || rows[0]["asiento"] != "14C" {
		t.Fatalf("Expected updated seat 14C, got %v", rows)
	}

	if err := other.Remove(ctx); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	found, err = m.Find(ctx, id)
	if err != nil || found {
		t.Errorf("Expected removed row to be missing, found=%v err=%v", found, err)
	}
}

func TestFindMissLeavesRecordUntouched(t *testing.T) {
	ctx := context.Background()
	conn := setupTestConn(t)

	m := NewModel(conn, "boletos", "nombre", "asiento")
	m.Set("nombre", "keep")

	found, err := m.Find(ctx, 42)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	if found {
		t.Fatalf("Expected no row")
	}

	if m.Get("nombre") != "keep" || m.IsAttached() {
		t.Errorf("Expected record unchanged, got %v", m.Attributes())
	}
}

func TestGetAll(t *testing.T) {
	ctx := context.Background()
	conn := setupTestConn(t)

	m := NewModel(conn, "boletos", "nombre", "asiento")
	rows, err := m.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if rows == nil || len(rows) != 0 {
		t.Fatalf("Expected empty non-nil slice, got %#v", rows)
	}

	insertBoleto(t, conn, "Ana", "1A", "IB100")
	insertBoleto(t, conn, "Luis", "2B", "IB100")
	insertBoleto(t, conn, "Marta", "3C", "UX200")

	rows, err = m.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}

	for _, row := range rows {
		if len(row) != 2 {
			t.Errorf("Expected only model columns to be bound, got %v", row)
		}
	}

	rows, err = m.GetAll(ctx, WithSorter("-nombre"), WithLimit(2))
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if len(rows) != 2 || rows[0]["nombre"] != "Marta" || rows[1]["nombre"] != "Luis" {
		t.Errorf("Expected [Marta Luis], got %v", rows)
	}

	rows, err = m.GetAll(ctx, WithSorter("nombre"), WithOffset(1))
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if len(rows) != 2 || rows[0]["nombre"] != "Luis" {
		t.Errorf("Expected offset to skip Ana, got %v", rows)
	}
}

func TestDynamicModelFindAdoptsColumns(t *testing.T) {
	ctx := context.Background()
	conn := setupTestConn(t)
	id := insertBoleto(t, conn, "Ana", "1A", "IB100")

	m := NewDynamicModel()
	m.SetConnection(conn, "boletos")

	found, err := m.Find(ctx, id)
	if err != nil || !found {
		t.Fatalf("Expected row to be found, found=%v err=%v", found, err)
	}

	want := []string{"id", "nombre", "fecha_salida", "fecha_llegada", "asiento", "numero_vuelo"}
	if got := m.Columns(); !equalStrings(got, want) {
		t.Errorf("Expected columns %v, got %v", want, got)
	}

	if m.Get("numero_vuelo") != "IB100" || m.Get("fecha_salida") != "" {
		t.Errorf("Unexpected attributes: %v", m.Attributes())
	}
}

func TestDynamicModelLoadColumns(t *testing.T) {
	ctx := context.Background()
	conn := setupTestConn(t)

	m := NewDynamicModel()
	m.SetConnection(conn, "boletos")
	if err := m.LoadColumns(ctx); err != nil {
		t.Fatalf("LoadColumns failed: %v", err)
	}

	want := []string{"id", "nombre", "fecha_salida", "fecha_llegada", "asiento", "numero_vuelo"}
	if got := m.Columns(); !equalStrings(got, want) {
		t.Fatalf("Expected columns %v, got %v", want, got)
	}

	m.Set("nombre", "Ana")
	m.Set("asiento", "1A")
	m.Set("fecha_salida", "2024-05-01 10:00:00")
	if err := m.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if m.Get("id") == "" {
		t.Fatalf("Expected generated id")
	}

	other := NewDynamicModel()
	other.SetConnection(&recordingBackend{}, "boletos")
	if err := other.LoadColumns(ctx); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for a non SQL backend, got %v", err)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	ctx := context.Background()
	conn := setupTestConn(t)
	id := insertBoleto(t, conn, "Ana", "1A", "IB100")

	m := NewModel(conn, "boletos", "id", "nombre")
	m.Set("id", id)
	m.Set("nombre", "Copy")

	if err := m.Create(ctx); !errors.Is(err, ErrKeyAlreadyExists) {
		t.Errorf("Expected ErrKeyAlreadyExists, got %v", err)
	}
}

func TestFill(t *testing.T) {
	type ticket struct {
		ID           int    `db:"id,auto"`
		Nombre       string `db:"nombre"`
		Asiento      string
		NumeroVuelo  string
		FechaSalida  time.Time
		FechaLlegada *time.Time
		Notes        string `db:"-"`
	}

	m := NewModel(&recordingBackend{}, "boletos", "nombre")
	err := m.Fill(ticket{
		ID:          9,
		Nombre:      "Ana",
		Asiento:     "1A",
		NumeroVuelo: "IB100",
		FechaSalida: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		Notes:       "skip",
	})
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}

	want := []string{"nombre", "asiento", "numero_vuelo", "fecha_salida"}
	if got := m.Columns(); !equalStrings(got, want) {
		t.Errorf("Expected columns %v, got %v", want, got)
	}

	if m.Get("fecha_salida") != "2024-05-01 10:30:00" {
		t.Errorf("Unexpected time text %q", m.Get("fecha_salida"))
	}

	if m.IsAttached() {
		t.Errorf("Auto id must not be filled")
	}

	if err := m.Fill(map[string]any{"seat": 3, "gate": nil}); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}

	if m.Get("seat") != "3" || m.Has("gate") {
		t.Errorf("Unexpected map fill result: %v", m.Attributes())
	}

	if err := m.Fill(42); err == nil {
		t.Errorf("Expected error filling from an int")
	}
}

func TestWriteFields(t *testing.T) {
	m := NewModel(&recordingBackend{}, "boletos", "id", "nombre", "asiento", "numero_vuelo")
	m.Set("nombre", "Ana")
	m.Ignore("asiento")

	if got := fieldNames(m.insertFields()); !equalStrings(got, []string{"nombre", "numero_vuelo"}) {
		t.Errorf("Expected empty id and ignored field skipped, got %v", got)
	}

	m.Set("id", "3")
	if got := fieldNames(m.insertFields()); !equalStrings(got, []string{"id", "nombre", "numero_vuelo"}) {
		t.Errorf("Expected given id to be written, got %v", got)
	}

	fields := m.updateFields()
	if got := fieldNames(fields); !equalStrings(got, []string{"nombre", "numero_vuelo"}) {
		t.Errorf("Expected id and ignored field skipped on update, got %v", got)
	}

	if fields[0].Value != "Ana" || fields[1].Value != "" {
		t.Errorf("Unexpected update values %v", fields)
	}
}

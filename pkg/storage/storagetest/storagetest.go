// Package storagetest traz dublês de pgx para testar repositórios sem banco.
package storagetest

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// MockDB implementa storage.DB com testify/mock. Os argumentos da query chegam
// ao mock como um único []any.
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ret := m.Called(ctx, sql, args)
	return ret.Get(0).(pgconn.CommandTag), ret.Error(1)
}

func (m *MockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ret := m.Called(ctx, sql, args)
	rows, _ := ret.Get(0).(pgx.Rows)
	return rows, ret.Error(1)
}

func (m *MockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ret := m.Called(ctx, sql, args)
	return ret.Get(0).(pgx.Row)
}

// MockTx é uma storage.Tx que também responde como storage.DB
type MockTx struct {
	MockDB
}

func (m *MockTx) Commit() error {
	return m.Called().Error(0)
}

func (m *MockTx) Rollback() error {
	return m.Called().Error(0)
}

// Row devolve Values no Scan, ou Err quando preenchido
type Row struct {
	Values []any
	Err    error
}

func (r Row) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	return scanInto(r.Values, dest)
}

// Rows percorre Data linha a linha; Failure aparece em Err ao fim da iteração
type Rows struct {
	Data    [][]any
	Failure error

	pos    int
	closed bool
}

func (r *Rows) Close() { r.closed = true }

func (r *Rows) Err() error { return r.Failure }

func (r *Rows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(r.Data)))
}

func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *Rows) Next() bool {
	if r.closed || r.pos >= len(r.Data) {
		r.closed = true
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.pos == 0 || r.pos > len(r.Data) {
		return fmt.Errorf("storagetest: scan without current row")
	}
	return scanInto(r.Data[r.pos-1], dest)
}

func (r *Rows) Values() ([]any, error) {
	if r.pos == 0 || r.pos > len(r.Data) {
		return nil, fmt.Errorf("storagetest: no current row")
	}
	return r.Data[r.pos-1], nil
}

func (r *Rows) RawValues() [][]byte { return nil }

func (r *Rows) Conn() *pgx.Conn { return nil }

// Closed informa se o repositório fechou as linhas
func (r *Rows) Closed() bool { return r.closed }

// SQL casa qualquer query que contenha fragment, ignorando espaços e quebras
func SQL(fragment string) any {
	want := squash(fragment)
	return mock.MatchedBy(func(sql string) bool {
		return strings.Contains(squash(sql), want)
	})
}

// Tag monta um command tag como o Postgres devolve, ex.: "UPDATE 1"
func Tag(s string) pgconn.CommandTag {
	return pgconn.NewCommandTag(s)
}

// UniqueViolation imita o erro 23505 do Postgres
func UniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func scanInto(values, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("storagetest: %d values for %d destinations", len(values), len(dest))
	}
	for i := range dest {
		if err := assign(dest[i], values[i]); err != nil {
			return fmt.Errorf("storagetest: column %d: %w", i, err)
		}
	}
	return nil
}

// assign copia value para o ponteiro dest. nil zera o destino; um destino *T
// recebe T como coluna nula-ável preenchida.
func assign(dest, value any) error {
	d := reflect.ValueOf(dest)
	if d.Kind() != reflect.Pointer || d.IsNil() {
		return fmt.Errorf("destination %T is not a pointer", dest)
	}
	target := d.Elem()
	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	v := reflect.ValueOf(value)
	if target.Kind() == reflect.Pointer && !v.Type().AssignableTo(target.Type()) {
		ptr := reflect.New(target.Type().Elem())
		if err := convert(ptr.Elem(), v); err != nil {
			return err
		}
		target.Set(ptr)
		return nil
	}
	return convert(target, v)
}

func convert(target, v reflect.Value) error {
	switch {
	case v.Type().AssignableTo(target.Type()):
		target.Set(v)
	case target.Kind() == reflect.String && v.Kind() != reflect.String:
		return fmt.Errorf("cannot scan %s into %s", v.Type(), target.Type())
	case v.Type().ConvertibleTo(target.Type()):
		target.Set(v.Convert(target.Type()))
	default:
		return fmt.Errorf("cannot scan %s into %s", v.Type(), target.Type())
	}
	return nil
}

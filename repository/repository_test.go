package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"triaright-platform/errors"

	"github.com/lib/pq"
)

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errors.Kind
	}{
		{"no rows", sql.ErrNoRows, errors.NotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), errors.NotFound},
		{"unique violation", &pq.Error{Code: "23505"}, errors.Conflict},
		{"other pq error", &pq.Error{Code: "42P01"}, errors.Internal},
		{"driver failure", fmt.Errorf("connection reset"), errors.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.KindOf(mapErr(tt.err, "course")); got != tt.kind {
				t.Errorf("Expected %v, got %v", tt.kind, got)
			}
		})
	}
	if mapErr(nil, "course") != nil {
		t.Error("Expected nil for nil error")
	}
	if msg := errors.Message(mapErr(sql.ErrNoRows, "coupon")); msg != "coupon not found" {
		t.Errorf("Expected entity name in message, got %q", msg)
	}
}

func TestAnswersRoundTrip(t *testing.T) {
	b, err := encodeAnswers(map[int]string{1: "Paris", 12: "4"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := decodeAnswers(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != "Paris" || got[12] != "4" {
		t.Errorf("Unexpected answers %v", got)
	}

	empty, err := decodeAnswers(nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil map, got %v %v", empty, err)
	}
	if _, err := decodeAnswers([]byte(`{"x":"y"}`)); err == nil {
		t.Error("Expected error for non-numeric question id")
	}
}

func TestNullString(t *testing.T) {
	if nullString("").Valid {
		t.Error("Expected empty string to be NULL")
	}
	if v := nullString("pay_1"); !v.Valid || v.String != "pay_1" {
		t.Errorf("Unexpected %+v", v)
	}
}

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

type fakeExecer struct {
	query string
	args  []interface{}
	rows  int64
	err   error
}

func (f *fakeExecer) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	f.query, f.args = query, args
	if f.err != nil {
		return nil, f.err
	}
	return fakeResult{rows: f.rows}, nil
}

func TestRedeemCoupon(t *testing.T) {
	tests := []struct {
		name string
		rows int64
		err  error
		kind errors.Kind
	}{
		{"counted", 1, nil, errors.Other},
		{"limit already reached", 0, nil, errors.Other},
		{"driver failure", 0, fmt.Errorf("connection reset"), errors.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &fakeExecer{rows: tt.rows, err: tt.err}
			err := redeemCoupon(context.Background(), ex, "SAVE10", "order_1")
			if tt.err == nil && err != nil {
				t.Errorf("Expected nil error, got %v", err)
			}
			if tt.err != nil && errors.KindOf(err) != tt.kind {
				t.Errorf("Expected %v, got %v", tt.kind, errors.KindOf(err))
			}
			if !strings.Contains(ex.query, "used_count < usage_limit") {
				t.Errorf("Expected update guarded by usage_limit, got %q", ex.query)
			}
			if len(ex.args) != 1 || ex.args[0] != "SAVE10" {
				t.Errorf("Expected coupon code argument, got %v", ex.args)
			}
		})
	}
}

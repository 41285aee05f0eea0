package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/evdnx/gotrade/risk"
	"github.com/evdnx/gotrade/testutils"
	"github.com/evdnx/gotrade/types"
)

func TestPositionStoreMemoryOnly(t *testing.T) {
	s := NewPositionStore(nil, nil)
	ctx := context.Background()
	if _, ok, _ := s.Load(ctx, "BTCUSDT"); ok {
		t.Fatalf("expected empty store")
	}
	want := risk.PositionState{IsLong: true, LastBuyPrice: 101.5, PartialQuantityDiscount: 0.002}
	if err := s.Save(ctx, "BTCUSDT", want); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, ok, err := s.Load(ctx, "BTCUSDT")
	if err != nil || !ok || got != want {
		t.Fatalf("load = %+v %v %v", got, ok, err)
	}
}

func TestPositionStoreFallsBackWhenRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	log := testutils.NewMockLogger()
	s := NewPositionStore(client, log)
	defer s.Close()

	ctx := context.Background()
	want := risk.PositionState{LastSellPrice: 99}
	if err := s.Save(ctx, "ETHUSDT", want); err != nil {
		t.Fatalf("save should degrade silently, got %v", err)
	}
	got, ok, err := s.Load(ctx, "ETHUSDT")
	if err != nil || !ok || got != want {
		t.Fatalf("load = %+v %v %v", got, ok, err)
	}
	if !log.Has("redis_save_failed") || !log.Has("redis_load_failed") {
		t.Fatalf("expected redis failures to be logged")
	}
}

// fakeDB records statements and serves canned rows.
type fakeDB struct {
	execs []string
	args  [][]any
	rows  [][]any
	err   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return &fakeRows{rows: f.rows, idx: -1}, nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { r.idx++; return r.idx < len(r.rows) }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d targets for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = row[i].(int64)
		case *string:
			*p = row[i].(string)
		case *float64:
			*p = row[i].(float64)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

func TestJournalMigrateAndRecord(t *testing.T) {
	db := &fakeDB{}
	j := NewJournal(db)
	ctx := context.Background()
	if err := j.Migrate(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if len(db.execs) != 2 || !strings.Contains(db.execs[0], "CREATE TABLE IF NOT EXISTS cycles") {
		t.Fatalf("unexpected migrations %v", db.execs)
	}
	now := time.Now()
	err := j.RecordCycle(ctx, CycleRecord{Symbol: "BTCUSDT", Signal: "BUY", Traded: true, StartedAt: now, FinishedAt: now})
	if err != nil {
		t.Fatalf("record cycle failed: %v", err)
	}
	if args := db.args[2]; args[0] != "BTCUSDT" || args[1] != "BUY" || args[3] != true {
		t.Fatalf("unexpected cycle args %v", args)
	}
	err = j.RecordOrder(ctx, types.OrderAck{OrderID: 9, Symbol: "BTCUSDT", Side: types.Sell, Type: types.Market, Status: types.StatusFilled})
	if err != nil {
		t.Fatalf("record order failed: %v", err)
	}
	if args := db.args[3]; args[0] != int64(9) || args[3] != "SELL" || args[5] != "FILLED" {
		t.Fatalf("unexpected order args %v", args)
	}
}

func TestJournalRecentOrders(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	db := &fakeDB{rows: [][]any{
		{int64(2), "BTCUSDT", "gt2", "SELL", "LIMIT", "FILLED", 110.0, 1.0, 1.0, 110.0, ts},
		{int64(1), "BTCUSDT", "gt1", "BUY", "LIMIT", "FILLED", 100.0, 1.0, 1.0, 100.0, ts.Add(-time.Hour)},
	}}
	orders, err := NewJournal(db).RecentOrders(context.Background(), "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("recent orders failed: %v", err)
	}
	if len(orders) != 2 || orders[0].Side != types.Sell || orders[0].Status != types.StatusFilled || !orders[0].Time.Equal(ts) {
		t.Fatalf("unexpected orders %+v", orders)
	}
	if db.args[0][0] != "BTCUSDT" || db.args[0][1] != 10 {
		t.Fatalf("unexpected query args %v", db.args[0])
	}
}

func TestJournalWrapsErrors(t *testing.T) {
	j := NewJournal(&fakeDB{err: fmt.Errorf("connection reset")})
	if err := j.RecordCycle(context.Background(), CycleRecord{}); err == nil || !strings.Contains(err.Error(), "failed to record cycle") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	dbLatency           metric.Float64Histogram
	dbActiveConnections metric.Int64UpDownCounter
)

// Postgres is the durable, queryable listing store: a "remote indexed
// collection" driver backed by a single JSONB table so arbitrary
// filter fields round-trip without per-room-type schema migrations.
// Instrumentation: BeforeAcquire/AfterRelease connection hooks, a
// traced ping, and a query latency histogram.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and ensures the room_listings table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	var err error
	meter := otel.Meter("driver-postgres")
	dbLatency, err = meter.Float64Histogram("db.query.latency", metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create db.query.latency instrument: %w", err)
	}
	dbActiveConnections, err = meter.Int64UpDownCounter("db.active.connections", metric.WithUnit("connections"))
	if err != nil {
		return nil, fmt.Errorf("failed to create db.active.connections instrument: %w", err)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	config.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
		dbActiveConnections.Add(ctx, 1)
		return true
	}
	config.AfterRelease = func(conn *pgx.Conn) bool {
		dbActiveConnections.Add(context.Background(), -1)
		return true
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	_, span := otel.Tracer("driver-postgres").Start(ctx, "driver.ping")
	defer span.End()
	if err := pool.Ping(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to ping postgres")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	span.SetStatus(codes.Ok, "postgres connected")

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS room_listings (
			room_id     TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			process_id  TEXT NOT NULL,
			locked      BOOLEAN NOT NULL DEFAULT false,
			private     BOOLEAN NOT NULL DEFAULT false,
			unlisted    BOOLEAN NOT NULL DEFAULT false,
			clients     INTEGER NOT NULL DEFAULT 0,
			max_clients INTEGER NOT NULL DEFAULT 0,
			metadata    JSONB NOT NULL DEFAULT '{}'::jsonb
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate room_listings: %w", err)
	}
	return nil
}

// Close releases the pool's connections.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) trace(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := otel.Tracer("driver-postgres").Start(ctx, "driver."+op)
	err := fn(ctx)
	dbLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("db.op", op)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "postgres operation failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	return err
}

func (p *Postgres) CreateInstance(ctx context.Context, initial RoomListing) (*RoomListing, error) {
	listing := initial
	listing.driver = p
	if listing.Metadata == nil {
		listing.Metadata = map[string]any{}
	}

	err := p.trace(ctx, "create_instance", func(ctx context.Context) error {
		metadata, merr := json.Marshal(listing.Metadata)
		if merr != nil {
			return merr
		}
		_, err := p.pool.Exec(ctx, `
			INSERT INTO room_listings (room_id, name, process_id, locked, private, unlisted, clients, max_clients, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (room_id) DO UPDATE SET
				name = EXCLUDED.name, process_id = EXCLUDED.process_id, locked = EXCLUDED.locked,
				private = EXCLUDED.private, unlisted = EXCLUDED.unlisted, clients = EXCLUDED.clients,
				max_clients = EXCLUDED.max_clients, metadata = EXCLUDED.metadata
		`, listing.RoomID, listing.Name, listing.ProcessID, listing.Locked, listing.Private,
			listing.Unlisted, listing.Clients, listing.MaxClients, metadata)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (p *Postgres) save(ctx context.Context, listing *RoomListing) error {
	return p.trace(ctx, "save", func(ctx context.Context) error {
		metadata, err := json.Marshal(listing.Metadata)
		if err != nil {
			return err
		}
		_, err = p.pool.Exec(ctx, `
			INSERT INTO room_listings (room_id, name, process_id, locked, private, unlisted, clients, max_clients, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (room_id) DO UPDATE SET
				name = EXCLUDED.name, process_id = EXCLUDED.process_id, locked = EXCLUDED.locked,
				private = EXCLUDED.private, unlisted = EXCLUDED.unlisted, clients = EXCLUDED.clients,
				max_clients = EXCLUDED.max_clients, metadata = EXCLUDED.metadata
		`, listing.RoomID, listing.Name, listing.ProcessID, listing.Locked, listing.Private,
			listing.Unlisted, listing.Clients, listing.MaxClients, metadata)
		return err
	})
}

func (p *Postgres) remove(ctx context.Context, listing *RoomListing) error {
	return p.trace(ctx, "remove", func(ctx context.Context) error {
		_, err := p.pool.Exec(ctx, `DELETE FROM room_listings WHERE room_id = $1`, listing.RoomID)
		return err
	})
}

func (p *Postgres) Find(ctx context.Context, q Query, sort SortFunc) ([]*RoomListing, error) {
	var listings []*RoomListing
	err := p.trace(ctx, "find", func(ctx context.Context) error {
		where, args := buildWhere(q)
		rows, err := p.pool.Query(ctx, `
			SELECT room_id, name, process_id, locked, private, unlisted, clients, max_clients, metadata
			FROM room_listings `+where, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			l := &RoomListing{driver: p}
			var metadata []byte
			if err := rows.Scan(&l.RoomID, &l.Name, &l.ProcessID, &l.Locked, &l.Private, &l.Unlisted, &l.Clients, &l.MaxClients, &metadata); err != nil {
				return err
			}
			if len(metadata) > 0 {
				if err := json.Unmarshal(metadata, &l.Metadata); err != nil {
					return err
				}
			}
			listings = append(listings, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if sort != nil {
		sort(listings)
	}
	return listings, nil
}

func (p *Postgres) FindOne(ctx context.Context, q Query, sort SortFunc) (*RoomListing, error) {
	listings, err := p.Find(ctx, q, sort)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, nil
	}
	return listings[0], nil
}

func buildWhere(q Query) (string, []any) {
	var clauses []string
	var args []any

	if q.RoomID != "" {
		args = append(args, q.RoomID)
		clauses = append(clauses, fmt.Sprintf("room_id = $%d", len(args)))
	}
	if q.Name != "" {
		args = append(args, q.Name)
		clauses = append(clauses, fmt.Sprintf("name = $%d", len(args)))
	}
	if q.Locked != nil {
		args = append(args, *q.Locked)
		clauses = append(clauses, fmt.Sprintf("locked = $%d", len(args)))
	}
	if q.Private != nil {
		args = append(args, *q.Private)
		clauses = append(clauses, fmt.Sprintf("private = $%d", len(args)))
	}
	if q.Unlisted != nil {
		args = append(args, *q.Unlisted)
		clauses = append(clauses, fmt.Sprintf("unlisted = $%d", len(args)))
	}
	for k, v := range q.Metadata {
		args = append(args, k)
		keyParam := len(args)
		args = append(args, fmt.Sprintf("%v", v))
		clauses = append(clauses, fmt.Sprintf("metadata ->> $%d = $%d", keyParam, len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

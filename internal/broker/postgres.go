package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// channelName is the fixed Postgres NOTIFY channel torque listens and
// publishes on. A single channel is enough: instructions are opaque
// "<id>:<retry>" strings and every worker pool subscribes to all of them.
const channelName = "torque_tasks"

// Postgres is a Broker built on LISTEN/NOTIFY. It holds one dedicated
// connection checked out from the pool for its entire lifetime, since
// LISTEN state is per-connection and would be silently lost if the pool
// handed the listening connection to another caller in between.
type Postgres struct {
	pool *pgxpool.Pool
	conn *pgxpool.Conn
}

// NewPostgres acquires a dedicated connection from pool and issues LISTEN.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+channelName); err != nil {
		conn.Release()
		return nil, fmt.Errorf("issuing LISTEN: %w", err)
	}

	return &Postgres{pool: pool, conn: conn}, nil
}

// Close releases the dedicated listen connection back to the pool.
func (p *Postgres) Close() {
	p.conn.Release()
}

func (p *Postgres) Push(ctx context.Context, instruction string) error {
	// pg_notify takes the payload as a plain parameter, so instructions
	// containing quotes or special characters don't need escaping the way
	// a literal `NOTIFY chan, 'payload'` statement would.
	_, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channelName, instruction)
	if err != nil {
		return fmt.Errorf("notifying %s: %w", channelName, err)
	}
	return nil
}

func (p *Postgres) PopBlocking(ctx context.Context, timeout time.Duration) (string, bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	notification, err := p.conn.Conn().WaitForNotification(waitCtx)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		// The deadline we imposed, not the caller's, expired: report it as
		// an ordinary empty poll rather than an error.
		return "", false, nil
	}
	return notification.Payload, true, nil
}

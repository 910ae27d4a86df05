package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/social-scheduler/internal/proxy"
)

// ProxyRepo implements proxy.Store against PostgreSQL.
type ProxyRepo struct{ db *sql.DB }

// NewProxyRepo creates a Postgres-backed proxy assignment store.
func NewProxyRepo(db *sql.DB) *ProxyRepo { return &ProxyRepo{db: db} }

// ProxyForChannel returns the active proxy assigned to the channel, or nil.
func (r *ProxyRepo) ProxyForChannel(ctx context.Context, channelID string) (*proxy.Proxy, error) {
	p := &proxy.Proxy{}
	err := r.db.QueryRowContext(ctx, `
		SELECT p.id, p.user_id, p.scheme, p.host, p.port,
		       COALESCE(p.username, ''), COALESCE(p.password, '')
		FROM channel_proxies cp
		JOIN proxies p ON p.id = cp.proxy_id
		WHERE cp.channel_id = $1 AND p.active
	`, channelID).Scan(&p.ID, &p.UserID, &p.Scheme, &p.Host, &p.Port, &p.Username, &p.Password)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel proxy: %w", err)
	}
	return p, nil
}

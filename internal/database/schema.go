package database

// initSchema creates all tables if they do not exist.
func (db *DB) initSchema() error {
	_, err := db.conn.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS coins (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL,
	name TEXT NOT NULL,
	contract_address TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS price_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	coin_id INTEGER NOT NULL REFERENCES coins(id),
	price REAL NOT NULL,
	volume_24h REAL NOT NULL DEFAULT 0,
	market_cap REAL NOT NULL DEFAULT 0,
	timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_price_history_coin_ts ON price_history(coin_id, timestamp);

CREATE TABLE IF NOT EXISTS holdings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	coin_id INTEGER NOT NULL REFERENCES coins(id),
	amount REAL NOT NULL,
	avg_buy_price REAL NOT NULL,
	current_value REAL NOT NULL DEFAULT 0,
	profit_loss REAL NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_holdings_coin ON holdings(coin_id);

CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	coin_id INTEGER NOT NULL REFERENCES coins(id),
	type TEXT NOT NULL,
	target_value REAL NOT NULL DEFAULT 0,
	avg_volume REAL NOT NULL DEFAULT 0,
	threshold_pct REAL NOT NULL DEFAULT 0,
	channels TEXT NOT NULL DEFAULT '[]',
	is_active INTEGER NOT NULL DEFAULT 1,
	last_triggered TIMESTAMP
);

CREATE TABLE IF NOT EXISTS social_metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	coin_id INTEGER NOT NULL REFERENCES coins(id),
	platform TEXT NOT NULL,
	followers INTEGER NOT NULL DEFAULT 0,
	mentions_24h INTEGER NOT NULL DEFAULT 0,
	engagement REAL NOT NULL DEFAULT 0,
	sentiment REAL NOT NULL DEFAULT 0,
	collected_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_social_metrics_coin_ts ON social_metrics(coin_id, collected_at);

CREATE TABLE IF NOT EXISTS whale_transfers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	coin_id INTEGER NOT NULL REFERENCES coins(id),
	tx_hash TEXT NOT NULL,
	amount_usd REAL NOT NULL,
	direction TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(coin_id, tx_hash)
);

CREATE TABLE IF NOT EXISTS whale_activity (
	coin_id INTEGER PRIMARY KEY REFERENCES coins(id),
	active INTEGER NOT NULL DEFAULT 0,
	impact_note TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS social_activity (
	coin_id INTEGER PRIMARY KEY REFERENCES coins(id),
	spiking INTEGER NOT NULL DEFAULT 0,
	trending INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS risk_assessments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	coin_id INTEGER NOT NULL REFERENCES coins(id),
	overall_score REAL NOT NULL,
	liquidity_score REAL NOT NULL,
	holder_score REAL NOT NULL,
	contract_score REAL NOT NULL,
	social_score REAL NOT NULL,
	confidence REAL NOT NULL,
	warnings TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_risk_assessments_coin_ts ON risk_assessments(coin_id, created_at);
`

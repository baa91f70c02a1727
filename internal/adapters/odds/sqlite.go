package odds

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// SQLiteProvider lee probabilidades de modelo desde una base SQLite que
// escribe un proceso externo (el modelo estadístico corre fuera de este
// servicio). Solo lectura: este provider nunca escribe.
type SQLiteProvider struct {
	db *sql.DB
}

const modelProbsSchema = `
CREATE TABLE IF NOT EXISTS model_probs (
	event_key  TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	probability REAL NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (event_key, outcome)
);
`

// NewSQLiteProvider abre la base en el DSN dado y asegura el schema.
// El caller debe llamar Close al terminar.
func NewSQLiteProvider(dsn string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("odds.NewSQLiteProvider: open %q: %w", dsn, err)
	}

	// El driver es in-process; un ping valida que el archivo sea una base
	// SQLite legible antes de aceptar el provider.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("odds.NewSQLiteProvider: ping: %w", err)
	}

	if _, err := db.Exec(modelProbsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("odds.NewSQLiteProvider: ensure schema: %w", err)
	}

	return &SQLiteProvider{db: db}, nil
}

// Name implementa ports.SignalProvider.
func (p *SQLiteProvider) Name() domain.SignalSource {
	return domain.SignalModel
}

// Probabilities devuelve outcome → probabilidad de modelo para el evento.
func (p *SQLiteProvider) Probabilities(ctx context.Context, eventKey string) (map[string]float64, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT outcome, probability FROM model_probs WHERE event_key = ?`, eventKey)
	if err != nil {
		return nil, fmt.Errorf("odds.SQLiteProvider: query %q: %w", eventKey, err)
	}
	defer rows.Close()

	probs := make(map[string]float64, 2)
	for rows.Next() {
		var outcome string
		var prob float64
		if err := rows.Scan(&outcome, &prob); err != nil {
			return nil, fmt.Errorf("odds.SQLiteProvider: scan: %w", err)
		}
		probs[outcome] = clampProb(prob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("odds.SQLiteProvider: rows: %w", err)
	}

	if len(probs) == 0 {
		return nil, fmt.Errorf("odds.SQLiteProvider: no model probs for event %q", eventKey)
	}
	return probs, nil
}

// Close cierra la conexión a la base.
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/ballbattle/internal/game/ability"
	"github.com/cory-johannsen/ballbattle/internal/game/ball"
)

// ErrInstanceNotFound is returned when an instance lookup yields no results.
// It is the same value as ball.ErrInstanceNotFound so callers can match either.
var ErrInstanceNotFound = ball.ErrInstanceNotFound

// ErrCountryTaken is returned when a second ball claims an existing country name.
var ErrCountryTaken = errors.New("country already has a ball")

// BallRepository provides ball and instance persistence operations.
type BallRepository struct {
	db *pgxpool.Pool
}

// NewBallRepository creates a BallRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewBallRepository(db *pgxpool.Pool) *BallRepository {
	return &BallRepository{db: db}
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UpsertBall inserts b or replaces the stored ball with the same id.
//
// Precondition: b must pass b.Validate().
// Postcondition: The row for b.ID matches b, or an error wrapping ErrCountryTaken is returned.
func (r *BallRepository) UpsertBall(ctx context.Context, b *ball.Ball) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return upsertBall(ctx, r.db, b)
}

// UpsertInstance inserts inst or reassigns the stored instance with the same id.
//
// Precondition: inst.Ball must already be stored.
func (r *BallRepository) UpsertInstance(ctx context.Context, inst *ball.Instance) error {
	return upsertInstance(ctx, r.db, inst)
}

// Instance loads an instance together with its ball.
//
// Postcondition: Returns the Instance, or an error wrapping ErrInstanceNotFound.
// A stored ability document that fails validation is reported as an error.
func (r *BallRepository) Instance(ctx context.Context, id int64) (*ball.Instance, error) {
	var (
		inst ball.Instance
		b    ball.Ball
		doc  []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT bi.id, bi.owner_id, b.id, b.country, b.health, b.attack, b.ability_logic
		FROM ball_instances bi
		JOIN balls b ON b.id = bi.ball_id
		WHERE bi.id = $1`,
		id,
	).Scan(&inst.ID, &inst.OwnerID, &b.ID, &b.Country, &b.Health, &b.Attack, &doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("instance %d: %w", id, ErrInstanceNotFound)
		}
		return nil, fmt.Errorf("querying instance %d: %w", id, err)
	}
	logic, err := ability.ParseJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("ball %d (%s): %w", b.ID, b.Country, err)
	}
	b.Abilities = logic
	inst.Ball = &b
	return &inst, nil
}

// ListByOwner returns the ids of every instance owned by ownerID, ascending.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *BallRepository) ListByOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM ball_instances WHERE owner_id = $1 ORDER BY id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scanning instance ids: %w", err)
	}
	return ids, nil
}

// ImportCatalog upserts every ball and instance of c in one transaction.
//
// Postcondition: Returns the number of balls and instances written, or an
// error after which nothing was written.
func (r *BallRepository) ImportCatalog(ctx context.Context, c *ball.Catalog) (balls, instances int, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, b := range c.Balls() {
		if err := upsertBall(ctx, tx, b); err != nil {
			return 0, 0, err
		}
		balls++
	}
	for _, inst := range c.Instances() {
		if err := upsertInstance(ctx, tx, inst); err != nil {
			return 0, 0, err
		}
		instances++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("committing import: %w", err)
	}
	return balls, instances, nil
}

func upsertBall(ctx context.Context, db execer, b *ball.Ball) error {
	logic := b.Abilities
	if logic == nil {
		logic = ability.Logic{}
	}
	doc, err := json.Marshal(logic)
	if err != nil {
		return fmt.Errorf("encoding ability logic: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO balls (id, country, health, attack, ability_logic)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET country = EXCLUDED.country, health = EXCLUDED.health,
		    attack = EXCLUDED.attack, ability_logic = EXCLUDED.ability_logic`,
		b.ID, b.Country, b.Health, b.Attack, doc,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("ball %d (%s): %w", b.ID, b.Country, ErrCountryTaken)
		}
		return fmt.Errorf("upserting ball %d: %w", b.ID, err)
	}
	return nil
}

func upsertInstance(ctx context.Context, db execer, inst *ball.Instance) error {
	_, err := db.Exec(ctx, `
		INSERT INTO ball_instances (id, ball_id, owner_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET ball_id = EXCLUDED.ball_id, owner_id = EXCLUDED.owner_id`,
		inst.ID, inst.Ball.ID, inst.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("upserting instance %d: %w", inst.ID, err)
	}
	return nil
}

package postgres_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/ballbattle/internal/game/ability"
	"github.com/cory-johannsen/ballbattle/internal/game/ball"
	"github.com/cory-johannsen/ballbattle/internal/game/battle"
	"github.com/cory-johannsen/ballbattle/internal/storage/postgres"
	"github.com/cory-johannsen/ballbattle/internal/testutil"
)

func spartaBall() *ball.Ball {
	return &ball.Ball{
		ID:      1,
		Country: "Sparta",
		Health:  20,
		Attack:  5,
		Abilities: ability.Logic{
			ability.OnDefend: {ability.NewEntry(ability.KindShield, 0.5)},
		},
	}
}

func TestBallRepository_UpsertAndLoad(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewBallRepository(pool)
	ctx := context.Background()

	b := spartaBall()
	require.NoError(t, repo.UpsertBall(ctx, b))
	require.NoError(t, repo.UpsertInstance(ctx, &ball.Instance{ID: 11, OwnerID: 7, Ball: b}))

	inst, err := repo.Instance(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(7), inst.OwnerID)
	assert.Equal(t, "#11 Sparta", inst.ShortDescription())
	assert.Equal(t, 20, inst.Health())
	require.Len(t, inst.AbilityLogic().For(ability.OnDefend), 1)
	assert.Equal(t, 0.5, inst.AbilityLogic().For(ability.OnDefend)[0].EffectiveValue())

	b.Attack = 9
	require.NoError(t, repo.UpsertBall(ctx, b))
	inst, err = repo.Instance(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, 9, inst.Attack())

	ids, err := repo.ListByOwner(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, ids)
}

func TestBallRepository_InstanceNotFound(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewBallRepository(pool)

	_, err := repo.Instance(context.Background(), 404)
	assert.ErrorIs(t, err, postgres.ErrInstanceNotFound)
	assert.ErrorIs(t, err, ball.ErrInstanceNotFound)
}

func TestBallRepository_CountryTaken(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewBallRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.UpsertBall(ctx, spartaBall()))
	dup := spartaBall()
	dup.ID = 2
	assert.ErrorIs(t, repo.UpsertBall(ctx, dup), postgres.ErrCountryTaken)
}

func TestBallRepository_RejectsInvalidBall(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewBallRepository(pool)

	b := spartaBall()
	b.Health = 0
	assert.Error(t, repo.UpsertBall(context.Background(), b))
}

func TestBallRepository_StoredLogicIsValidated(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewBallRepository(pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO balls (id, country, health, attack, ability_logic)
		VALUES (5, 'Atlantis', 10, 1, '{"on_sleep": []}')`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO ball_instances (id, ball_id, owner_id) VALUES (50, 5, 1)`)
	require.NoError(t, err)

	_, err = repo.Instance(ctx, 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown hook")
}

func TestBallRepository_ImportCatalog(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewBallRepository(pool)
	ctx := context.Background()

	cat, err := ball.LoadCatalog(testutil.ContentDir())
	require.NoError(t, err)
	nBalls, nInst, err := repo.ImportCatalog(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, cat.BallCount(), nBalls)
	assert.Equal(t, cat.InstanceCount(), nInst)

	// importing twice is idempotent
	_, _, err = repo.ImportCatalog(ctx, cat)
	require.NoError(t, err)

	for _, want := range cat.Instances() {
		got, err := repo.Instance(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.ShortDescription(), got.ShortDescription())
	}
}

func TestBallRepository_InstancesFight(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewBallRepository(pool)
	ctx := context.Background()

	sparta := spartaBall()
	athens := &ball.Ball{ID: 2, Country: "Athens", Health: 10, Attack: 3}
	require.NoError(t, repo.UpsertBall(ctx, sparta))
	require.NoError(t, repo.UpsertBall(ctx, athens))
	require.NoError(t, repo.UpsertInstance(ctx, &ball.Instance{ID: 1, OwnerID: 1, Ball: sparta}))
	require.NoError(t, repo.UpsertInstance(ctx, &ball.Instance{ID: 2, OwnerID: 2, Ball: athens}))

	a, err := repo.Instance(ctx, 1)
	require.NoError(t, err)
	b, err := repo.Instance(ctx, 2)
	require.NoError(t, err)

	tb, err := battle.NewTeamBattle([]battle.Entity{a}, []battle.Entity{b})
	require.NoError(t, err)
	res := tb.Run()
	assert.Equal(t, battle.VerdictTeamA, res.Verdict)
	assert.Equal(t, "-- Turn 1: #1 Sparta vs #2 Athens --", res.Transcript[0])
}

// Property: any validated ability document survives the JSONB round trip.
func TestPropertyAbilityLogicSurvivesStorage(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewBallRepository(pool)
	ctx := context.Background()

	kinds := []ability.Kind{ability.KindDamageMultiplier, ability.KindExtraDamage, ability.KindHeal, ability.KindShield}
	var next int64
	rapid.Check(t, func(rt *rapid.T) {
		next++
		logic := ability.Logic{}
		for _, h := range ability.Hooks {
			n := rapid.IntRange(0, 2).Draw(rt, string(h))
			for i := 0; i < n; i++ {
				k := rapid.SampledFrom(kinds).Draw(rt, "kind")
				v := float64(rapid.IntRange(0, 300).Draw(rt, "value")) / 100
				logic[h] = append(logic[h], ability.NewEntry(k, v))
			}
		}
		b := &ball.Ball{ID: next, Country: fmt.Sprintf("Prop%d", next), Health: 10, Attack: 1, Abilities: logic}
		require.NoError(rt, repo.UpsertBall(ctx, b))
		require.NoError(rt, repo.UpsertInstance(ctx, &ball.Instance{ID: next, OwnerID: 1, Ball: b}))

		inst, err := repo.Instance(ctx, next)
		require.NoError(rt, err)
		for _, h := range ability.Hooks {
			assert.Equal(rt, len(logic.For(h)), len(inst.AbilityLogic().For(h)))
		}
	})
}

package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPlayerNotFound is returned by GetPlayer for unknown names.
var ErrPlayerNotFound = errors.New("player not found")

// Player is one account row mapping a name to a hero id.
type Player struct {
	Name    string
	HeroID  uint16
	Faction uint8
}

// EnsureWorld records the world row on first boot.
func EnsureWorld(ctx context.Context, pool *pgxpool.Pool, name string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO worlds (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET started_at = now()`, name)
	if err != nil {
		return fmt.Errorf("ensure world %s: %w", name, err)
	}
	return nil
}

// GetPlayer looks a player up by name.
func GetPlayer(ctx context.Context, pool *pgxpool.Pool, name string) (Player, error) {
	var p Player
	var heroID int32
	var faction int16
	err := pool.QueryRow(ctx,
		`SELECT name, hero_id, faction FROM players WHERE name = $1`, name).
		Scan(&p.Name, &heroID, &faction)
	if errors.Is(err, pgx.ErrNoRows) {
		return Player{}, ErrPlayerNotFound
	}
	if err != nil {
		return Player{}, fmt.Errorf("get player %s: %w", name, err)
	}
	p.HeroID = uint16(heroID)
	p.Faction = uint8(faction)
	return p, nil
}

// CreatePlayer registers a new account and allocates the next hero id.
// Duplicate names fail on the unique constraint.
func CreatePlayer(ctx context.Context, pool *pgxpool.Pool, name string, faction uint8) (Player, error) {
	var heroID int32
	err := pool.QueryRow(ctx, `
		INSERT INTO players (name, hero_id, faction)
		VALUES ($1, (SELECT COALESCE(MAX(hero_id), 0) + 1 FROM players), $2)
		RETURNING hero_id`, name, int16(faction)).Scan(&heroID)
	if err != nil {
		return Player{}, fmt.Errorf("create player %s: %w", name, err)
	}
	return Player{Name: name, HeroID: uint16(heroID), Faction: faction}, nil
}

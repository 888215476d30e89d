package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rationline/internal/config"
	"rationline/internal/domain"
	"rationline/internal/repo"
)

// ResolveMissionAndConfig picks the active mission and ensures a mission +
// config exist in DB, seeding defaults if missing. It prefers overrides, then
// single-mission DB. If the mission does not exist, it is created on the fly.
func ResolveMissionAndConfig(ctx context.Context, workspace, missionOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	missionID := missionOverride
	if missionID == "" {
		if m, err := r.SingleMission(ctx); err == nil {
			missionID = m.ID
		} else {
			return "", nil, fmt.Errorf("mission not specified; use --mission or set RATIONLINE_DEFAULT_MISSION (rl mission use <id>)")
		}
	}
	seedCfg := config.Default(missionID)

	if _, err := r.GetMission(ctx, missionID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createMission(ctx, r, missionID, seedCfg); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetMissionConfig(ctx, missionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertMissionConfig(ctx, missionID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed mission config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Mission.ID = missionID
	return missionID, cfg, nil
}

// createMission inserts a minimal mission footprint using the seed config.
func createMission(ctx context.Context, r repo.Repo, missionID string, seedCfg *config.Config) error {
	if seedCfg == nil {
		seedCfg = config.Default(missionID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	m := domain.Mission{
		ID:        missionID,
		Status:    "active",
		CreatedAt: now,
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO missions(id,status,description,created_at) VALUES (?,?,?,?)`,
		m.ID, m.Status, m.Description, m.CreatedAt); err != nil {
		return fmt.Errorf("insert mission: %w", err)
	}
	if err := r.UpsertMissionConfigTx(ctx, tx, missionID, seedCfg); err != nil {
		return fmt.Errorf("insert mission config: %w", err)
	}
	return tx.Commit()
}

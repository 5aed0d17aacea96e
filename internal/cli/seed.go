package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/FlomaWen/party-game/internal/config"
	"github.com/FlomaWen/party-game/internal/domain"
	pgstore "github.com/FlomaWen/party-game/internal/infra/postgres"
)

// NewSeedCmd imports questions from the local JSON file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Import questions from the local JSON file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg)
		},
	}
}

func runSeed(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	file := cfg.Questions.File
	if file == "" {
		file = "questions.json"
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := pgstore.NewQuestionStore(pool)

	inserted := 0
	for _, q := range questions {
		if q.ImageURL == "" || q.Prompt == "" || q.Answer == "" {
			log.Warn().Int("id", q.ID).Msg("skipping question with missing fields")
			continue
		}
		created, err := store.CreateQuestion(ctx, q.ImageURL, q.Prompt, q.Answer)
		if err != nil {
			return err
		}
		inserted++
		log.Info().Int("id", created.ID).Msg("question inserted")
	}

	log.Info().Int("count", inserted).Msg("seed complete")
	return nil
}

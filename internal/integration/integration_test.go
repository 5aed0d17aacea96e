package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/FlomaWen/party-game/internal/game"
	pgstore "github.com/FlomaWen/party-game/internal/infra/postgres"
	"github.com/FlomaWen/party-game/internal/infra/postgres/migrations"
	infraredis "github.com/FlomaWen/party-game/internal/infra/redis"
)

func TestGameRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateAndSeed(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	store := infraredis.NewQuestionCache(redisClient, pgstore.NewQuestionStore(pool), 5*time.Minute)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	clock := clockwork.NewFakeClock()
	coordinator := game.NewCoordinator(sessionCtx, store, game.DefaultConfig(), clock)

	alice := make(chan game.Event, 64)
	bob := make(chan game.Event, 64)
	coordinator.Connect("alice", alice)
	coordinator.Connect("bob", bob)
	coordinator.SetDisplayName("alice", "Alice")
	coordinator.SetDisplayName("bob", "Bob")

	coordinator.MarkReady(ctx, "alice")
	coordinator.MarkReady(ctx, "bob")
	start := recvType(t, alice, game.EventGameStart).Payload.(game.GameStartPayload)
	if start.TotalQuestions != 2 {
		t.Fatalf("expected 2 seeded questions, got %d", start.TotalQuestions)
	}

	clock.BlockUntil(1)
	clock.Advance(game.DefaultConfig().LeadIn)
	recvType(t, alice, game.EventQuestion)
	recvType(t, bob, game.EventQuestion)

	q, ok := coordinator.CurrentQuestion()
	if !ok {
		t.Fatalf("expected an active question")
	}
	res := coordinator.SubmitAnswer("bob", q.Answer, 8)
	if !res.Correct || res.Points != 10 {
		t.Fatalf("expected correct answer for 10 points, got %+v", res)
	}

	lb := recvType(t, alice, game.EventLeaderboard).Payload.(game.LeaderboardPayload)
	if lb.Leaderboard[0].Name != "Bob" || lb.Leaderboard[0].Score != 10 {
		t.Fatalf("expected Bob leading with 10, got %+v", lb.Leaderboard)
	}
}

func TestAdminEditVisibleAtNextGameStart(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateAndSeed(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	store := infraredis.NewQuestionCache(redisClient, pgstore.NewQuestionStore(pool), 5*time.Minute)

	// Warm the cache, then mutate through the same store: the write must
	// invalidate the Redis key so the next game start sees three questions.
	if _, err := store.ListQuestions(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, err := store.CreateQuestion(ctx, "https://img.example/extra.jpg", "Name this city", "Lisbon"); err != nil {
		t.Fatalf("create question: %v", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	coordinator := game.NewCoordinator(sessionCtx, store, game.DefaultConfig(), clockwork.NewFakeClock())

	out := make(chan game.Event, 64)
	coordinator.Connect("p1", out)
	coordinator.MarkReady(ctx, "p1")
	start := recvType(t, out, game.EventGameStart).Payload.(game.GameStartPayload)
	if start.TotalQuestions != 3 {
		t.Fatalf("expected admin edit visible at game start, got %d questions", start.TotalQuestions)
	}
}

func recvType(t *testing.T, ch <-chan game.Event, wanted string) game.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", wanted)
			}
			if ev.Type == wanted {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", wanted)
			return game.Event{}
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateAndSeed(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	seed := [][3]string{
		{"https://img.example/cartoon.jpg", "Which cartoon is this image from?", "SpongeBob"},
		{"https://img.example/movie.jpg", "Name this movie", "Alien"},
	}
	for _, row := range seed {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO questions (image_url, prompt, answer) VALUES (?, ?, ?)`,
			row[0], row[1], row[2],
		); err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

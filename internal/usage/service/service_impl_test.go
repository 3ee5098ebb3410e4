package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/janmager/myfreelance-backend/internal/entitlement/repository"
	usagedomain "github.com/janmager/myfreelance-backend/internal/usage/domain"
	userrepository "github.com/janmager/myfreelance-backend/internal/user/repository"
)

func setupUsageDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	assert.NoError(t, err)

	db.Exec(`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'user',
		state TEXT NOT NULL DEFAULT 'active',
		premium_level INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS limits (
		name TEXT PRIMARY KEY,
		premium_level_0 INTEGER NOT NULL,
		premium_level_1 INTEGER NOT NULL,
		premium_level_2 INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	for _, table := range []string{"clients", "projects", "notes", "contracts", "links", "tasks", "valuations"} {
		db.Exec(`CREATE TABLE IF NOT EXISTS ` + table + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMP
		)`)
	}
	db.Exec(`CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		file_size BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP
	)`)

	return db
}

func newUsageService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	return &Service{
		db:        db,
		log:       zaptest.NewLogger(t),
		counter:   ProvideCounter(),
		userRepo:  userrepository.Provide(),
		limitRepo: repository.Provide(),
	}
}

func TestOverview(t *testing.T) {
	db := setupUsageDB(t)
	svc := newUsageService(t, db)
	now := time.Now().UTC()

	db.Exec(`INSERT INTO users (user_id, email, premium_level, created_at, updated_at)
		VALUES ('user_o', 'o@example.com', 1, ?, ?)`, now, now)

	seed := func(name string, l0, l1, l2 int64) {
		db.Exec(`INSERT INTO limits (name, premium_level_0, premium_level_1, premium_level_2, updated_at)
			VALUES (?, ?, ?, ?, ?)`, name, l0, l1, l2, now)
	}
	seed("clients", 3, 50, 1000)
	seed("projects", 3, 50, 1000)
	seed("notes", 10, 100, 1000)
	seed("contracts", 3, 50, 1000)
	seed("links", 5, 50, 1000)
	seed("tasks", 20, 200, 2000)
	seed("valuations", 3, 50, 1000)
	seed("files_mb", 20, 512, 4096)

	db.Exec(`INSERT INTO clients (user_id, status) VALUES ('user_o', 'active')`)
	db.Exec(`INSERT INTO clients (user_id, status) VALUES ('user_o', 'archived')`)
	db.Exec(`INSERT INTO projects (user_id, status) VALUES ('user_o', 'active')`)
	db.Exec(`INSERT INTO projects (user_id, status) VALUES ('user_o', 'completed')`)
	db.Exec(`INSERT INTO tasks (user_id, status) VALUES ('user_o', 'todo')`)
	db.Exec(`INSERT INTO tasks (user_id, status) VALUES ('user_o', 'in_progress')`)
	db.Exec(`INSERT INTO tasks (user_id, status) VALUES ('user_o', 'done')`)
	db.Exec(`INSERT INTO files (user_id, file_size) VALUES ('user_o', ?)`, int64(3*1024*1024))
	db.Exec(`INSERT INTO files (user_id, file_size) VALUES ('user_o', ?)`, int64(512*1024))

	// Another user's rows must not leak into the overview.
	db.Exec(`INSERT INTO clients (user_id, status) VALUES ('other', 'active')`)

	overview, err := svc.Overview(context.Background(), "user_o")
	assert.NoError(t, err)

	assert.Equal(t, 1, overview.PremiumLevel)

	assert.Equal(t, int64(2), overview.Stats.Clients.Total)
	assert.Equal(t, int64(50), overview.Stats.Clients.Limit)
	if assert.NotNil(t, overview.Stats.Clients.Active) {
		assert.Equal(t, int64(1), *overview.Stats.Clients.Active)
	}

	assert.Equal(t, int64(2), overview.Stats.Projects.Total)
	if assert.NotNil(t, overview.Stats.Projects.Completed) {
		assert.Equal(t, int64(1), *overview.Stats.Projects.Completed)
	}

	assert.Equal(t, int64(3), overview.Stats.Tasks.Total)
	if assert.NotNil(t, overview.Stats.Tasks.Pending) {
		assert.Equal(t, int64(2), *overview.Stats.Tasks.Pending)
	}
	if assert.NotNil(t, overview.Stats.Tasks.Completed) {
		assert.Equal(t, int64(1), *overview.Stats.Tasks.Completed)
	}

	assert.Equal(t, int64(2), overview.Stats.Files.Total)
	assert.Equal(t, 3.5, overview.Stats.Files.TotalSizeMB)
	assert.Equal(t, int64(512), overview.Stats.Files.Limit)
}

func TestAdminStats(t *testing.T) {
	db := setupUsageDB(t)
	svc := newUsageService(t, db)
	now := time.Now().UTC()

	addUser := func(id string, level int, state string) {
		db.Exec(`INSERT INTO users (user_id, email, state, premium_level, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`, id, id+"@example.com", state, level, now, now)
	}
	addUser("u1", 0, "active")
	addUser("u2", 1, "active")
	addUser("u3", 1, "active")
	addUser("u4", 2, "deleted")

	db.Exec(`INSERT INTO clients (user_id, status) VALUES ('u1', 'active')`)
	db.Exec(`INSERT INTO clients (user_id, status) VALUES ('u2', 'active')`)
	db.Exec(`INSERT INTO tasks (user_id, status) VALUES ('u2', 'todo')`)
	db.Exec(`INSERT INTO files (user_id, file_size) VALUES ('u1', ?)`, int64(1024*1024))
	db.Exec(`INSERT INTO files (user_id, file_size) VALUES ('u2', ?)`, int64(512*1024))

	stats, err := svc.AdminStats(context.Background())
	assert.NoError(t, err)

	// Deleted accounts stay out of the tier breakdown.
	assert.Equal(t, []usagedomain.LevelCount{
		{PremiumLevel: 0, UserCount: 1},
		{PremiumLevel: 1, UserCount: 2},
	}, stats.UsersByLevel)

	assert.Equal(t, int64(2), stats.TotalUsage.Clients)
	assert.Equal(t, int64(1), stats.TotalUsage.Tasks)
	assert.Equal(t, int64(0), stats.TotalUsage.Valuations)
	assert.Equal(t, int64(2), stats.TotalUsage.Files.Count)
	assert.Equal(t, 1.5, stats.TotalUsage.Files.TotalSizeMB)
}

func TestOverviewUnknownUser(t *testing.T) {
	db := setupUsageDB(t)
	svc := newUsageService(t, db)

	overview, err := svc.Overview(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Equal(t, 0, overview.PremiumLevel)
	assert.Equal(t, int64(0), overview.Stats.Clients.Total)
}

func TestBytesToMB(t *testing.T) {
	assert.Equal(t, 0.0, usagedomain.BytesToMB(0))
	assert.Equal(t, 1.0, usagedomain.BytesToMB(1024*1024))
	assert.Equal(t, 1.5, usagedomain.BytesToMB(1572864))
	assert.Equal(t, 0.1, usagedomain.BytesToMB(104858))
}

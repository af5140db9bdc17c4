package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"watertrack/internal/core"
	"watertrack/internal/ports"
	"watertrack/internal/ports/portstest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "watertrack.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryContract(t *testing.T) {
	portstest.RunRepository(t, func(t *testing.T) ports.Repository {
		return newTestRepo(t)
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watertrack.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	ctx := context.Background()
	if _, err := repo.EnsureDay(ctx, "u1", core.NewDate(2024, time.March, 15), 2000); err != nil {
		t.Fatalf("EnsureDay: %v", err)
	}
	repo.Close()

	reopened, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer reopened.Close()

	// The repository connection stays usable after migrating it.
	version, err := RunMigrations(reopened.db)
	if err != nil || version != 1 {
		t.Fatalf("RunMigrations on open repository = %d, %v; want 1", version, err)
	}
	d, err := reopened.GetDay(ctx, "u1", core.NewDate(2024, time.March, 15))
	if err != nil || d == nil || d.Goal != 2000 {
		t.Fatalf("data lost across reopen: %+v, %v", d, err)
	}
}

func TestAddDrinkAssignsID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	date := core.NewDate(2024, time.March, 15)
	if _, err := repo.EnsureDay(ctx, "u1", date, 2000); err != nil {
		t.Fatalf("EnsureDay: %v", err)
	}
	d, err := repo.AddDrink(ctx, "u1", date, core.Drink{Amount: 250, Type: "water", Hour: 8})
	if err != nil {
		t.Fatalf("AddDrink: %v", err)
	}
	if len(d.Activity[8]) != 1 || d.Activity[8][0].ID == "" {
		t.Fatalf("drink stored without id: %+v", d.Activity[8])
	}
}

func TestPing(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

package db

import (
	"errors"
	"testing"

	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	return conn
}

func TestMigrateCreatesTables(t *testing.T) {
	conn := openMemory(t)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	for _, table := range []string{"users", "restaurants", "restaurant_accesses", "notifications", "settings"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
	if !conn.Migrator().HasIndex(&models.RestaurantAccess{}, "idx_restaurant_accesses_live_key") {
		t.Fatalf("missing live key index")
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	conn := openMemory(t)
	for i := 0; i < 2; i++ {
		if errMigrate := Migrate(conn); errMigrate != nil {
			t.Fatalf("migrate run %d: %v", i, errMigrate)
		}
	}
}

func TestLiveKeyIndexRejectsSecondLiveRecord(t *testing.T) {
	conn := openMemory(t)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	key := models.AccessLiveKey("u1", "r1")
	first := models.RestaurantAccess{ID: "a1", UserID: "u1", RestaurantID: "r1", Role: models.RoleUser, Status: models.AccessStatusPending, LiveKey: &key}
	if errCreate := conn.Create(&first).Error; errCreate != nil {
		t.Fatalf("create first: %v", errCreate)
	}
	second := models.RestaurantAccess{ID: "a2", UserID: "u1", RestaurantID: "r1", Role: models.RoleUser, Status: models.AccessStatusPending, LiveKey: &key}
	errCreate := conn.Create(&second).Error
	if !IsDuplicateKey(errCreate) {
		t.Fatalf("expected duplicate key error, got %v", errCreate)
	}

	terminal := models.RestaurantAccess{ID: "a3", UserID: "u1", RestaurantID: "r1", Role: models.RoleUser, Status: models.AccessStatusInactive}
	if errCreate := conn.Create(&terminal).Error; errCreate != nil {
		t.Fatalf("terminal records must not occupy the live key: %v", errCreate)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	if IsDuplicateKey(nil) {
		t.Fatalf("nil is not a duplicate")
	}
	if !IsDuplicateKey(gorm.ErrDuplicatedKey) {
		t.Fatalf("expected gorm duplicate to match")
	}
	if IsDuplicateKey(errors.New("connection reset")) {
		t.Fatalf("unexpected match")
	}
}

func TestDetectDialectFromDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost/db":     DialectPostgres,
		"host=localhost dbname=bitescout": DialectPostgres,
		"file:data/bitescout.db":          DialectSQLite,
		"sqlite://data/bitescout.db":      DialectSQLite,
		"data/bitescout.db":               DialectSQLite,
	}
	for dsn, want := range cases {
		got, err := detectDialectFromDSN(dsn)
		if err != nil {
			t.Fatalf("%s: %v", dsn, err)
		}
		if got != want {
			t.Fatalf("%s: expected %s, got %s", dsn, want, got)
		}
	}
	if _, err := detectDialectFromDSN("mysql://x"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}

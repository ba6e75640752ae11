package db

import (
	"testing"

	"github.com/diewo77/go-pos/internal/config"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: "file:" + t.Name() + "?mode=memory&cache=shared",
	}, logging.Discard())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func TestMigrate_CreatesTables(t *testing.T) {
	db := setupTestDB(t)
	for _, table := range []string{"products", "stock_movements", "sales", "sale_lines", "payments", "ticket_counters", "chain_heads", "audit_logs", "users"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	admin := AdminSeed{Email: " Admin@Shop.test ", Password: "s3cret"}
	require.NoError(t, Seed(db, admin))
	require.NoError(t, Seed(db, admin))

	var profiles int64
	db.Model(&models.Profile{}).Count(&profiles)
	assert.Equal(t, int64(3), profiles)

	var vendeur models.Profile
	require.NoError(t, db.Preload("Permissions").Where("name = ?", "vendeur").First(&vendeur).Error)
	assert.ElementsMatch(t, []string{"sale:create", "sale:list", "sale:view", "stock:view", "product:list", "product:view"}, vendeur.PermissionCodes())

	var users []models.User
	require.NoError(t, db.Preload("Profile").Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "admin@shop.test", users[0].Email)
	assert.Equal(t, "admin", users[0].Profile.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte("s3cret")))
}

func TestSeedAdmin_SkippedWithoutCredentials(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, Seed(db, AdminSeed{}))
	var n int64
	db.Model(&models.User{}).Count(&n)
	assert.Zero(t, n)
}

func TestNormalizeDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{`"postgres://u:p@h:5432/db"`, "postgres://u:p@h:5432/db"},
		{"host=h  user=u dbname=db", "host=h user=u dbname=db sslmode=disable"},
		{"host=h user=u dbname=db sslmode=require", "host=h user=u dbname=db sslmode=require"},
		{"garbage", "garbage"},
		{`host=h password='p w' dbname=db`, `host=h password='p w' dbname=db sslmode=disable`},
		{`host=h password='unterminated`, `host=h password='unterminated`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDSN(tt.in), tt.in)
	}
}

func TestToURLDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable",
		ToURLDSN("host=h port=5432 user=u password=p dbname=db sslmode=disable"))
	assert.Equal(t, "postgres://x", ToURLDSN("postgres://x"))
	assert.Equal(t, "host=h", ToURLDSN("host=h"), "incomplete key=value lists are returned unchanged")
	assert.Equal(t, "postgres://u:it%27s%20me@h/db",
		ToURLDSN(`host=h user=u password='it\'s me' dbname=db`))
}

func TestParseKV(t *testing.T) {
	pairs, err := parseKV(`Host = h  password='a\\b c'  dbname=pos`)
	require.NoError(t, err)
	assert.Equal(t, []kvPair{{"host", "h"}, {"password", `a\b c`}, {"dbname", "pos"}}, pairs)

	for _, bad := range []string{"", "   ", "host", "=h", "host=h user='x"} {
		_, err := parseKV(bad)
		assert.ErrorIs(t, err, errDSNSyntax, bad)
	}
}

func TestPostgresDSN_PrefersOverride(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, cfg.DSN(), PostgresDSN(cfg))
	cfg.DSNOverride = "host=o user=u dbname=d"
	assert.Equal(t, "host=o user=u dbname=d sslmode=disable", PostgresDSN(cfg))
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "host=h password=*** user=u", maskDSN("host=h password=secret user=u"))
	assert.Equal(t, "host=h password=*** user=u", maskDSN("host=h password='with space' user=u"))
	assert.Equal(t, "postgres://u:xxxxx@h:5432/db", maskDSN("postgres://u:secret@h:5432/db"))
	assert.Equal(t, "***", maskDSN("password='never closed"))
}

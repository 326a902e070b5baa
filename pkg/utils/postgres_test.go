package utils

import (
	"testing"
	"testing/fstest"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	c := PostgresPoolConfig{MaxOpenConns: 10}.withDefaults()
	if c.MaxIdleConns != 10 {
		t.Fatalf("expected idle conns to follow open conns, got %d", c.MaxIdleConns)
	}
	if c.PingTimeout != 5*time.Second || c.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"002_audit.sql": {Data: []byte("select 2;")},
		"001_init.sql":  {Data: []byte("select 1;")},
		"README.md":     {Data: []byte("docs")},
	}
	names, err := MigrationFiles(fsys)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "001_init.sql" || names[1] != "002_audit.sql" {
		t.Fatalf("unexpected order: %v", names)
	}
}

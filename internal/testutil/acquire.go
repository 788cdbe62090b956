package testutil

import (
	"context"
	"os"
	"path/filepath"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/squeakhq/squeakd/credential"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

// AcquireCredentialStore opens a throwaway sqlite credential store in a temp
// directory. The returned cleanup removes it.
func AcquireCredentialStore(ctx context.Context, t TestLog) (*credential.SqliteStore, func()) {
	dir, err := os.MkdirTemp("", "squeakd-tests")
	if err != nil {
		t.Fatal(err)
	}
	store, err := credential.OpenSqliteStore(ctx, filepath.Join(dir, "credentials.db"))
	if err != nil {
		t.Fatal(err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			t.Log("unable to close credential store", err)
		}
		if err := os.RemoveAll(dir); err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}

// AcquireRedis starts an in-process miniredis and a client pointed at it.
func AcquireRedis(t TestLog) (*miniredis.Miniredis, *redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client, func() {
		if err := client.Close(); err != nil {
			t.Log("unable to close redis client", err)
		}
		mr.Close()
	}
}

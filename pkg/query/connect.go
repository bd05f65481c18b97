package query

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/sirrobot01/dbforge/pkg/engine"
	"github.com/sirrobot01/dbforge/pkg/storage"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// sqlDriver maps relational engine names to database/sql driver names.
func sqlDriver(engineName string) (string, bool) {
	switch engineName {
	case "postgresql":
		return "pgx", true
	case "mysql", "mariadb":
		return "mysql", true
	}
	return "", false
}

// OpenSQL opens a database/sql handle for a relational instance. Callers
// own the handle and must close it.
func OpenSQL(inst *storage.Instance) (*sql.DB, error) {
	eng, err := engine.Get(inst.Engine)
	if err != nil {
		return nil, err
	}
	driver, ok := sqlDriver(inst.Engine)
	if !ok {
		return nil, fmt.Errorf("engine %s is not relational", inst.Engine)
	}

	db, err := sql.Open(driver, eng.DSN(inst.Host, inst.Port, inst.Username, inst.Password, inst.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	// One short-lived connection per request; instances are small.
	db.SetMaxOpenConns(2)
	return db, nil
}

// OpenMongo connects a mongo client to a document instance.
func OpenMongo(ctx context.Context, inst *storage.Instance) (*mongo.Client, error) {
	eng, err := engine.Get(inst.Engine)
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(
		eng.DSN(inst.Host, inst.Port, inst.Username, inst.Password, inst.Database)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return client, nil
}

// OpenRedis builds a redis client for a key-value instance.
func OpenRedis(inst *storage.Instance) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", inst.Host, inst.Port),
		Password: inst.Password,
		DB:       0,
	})
}

// Package pgmemory stores checkpoints in PostgreSQL through pgx. It suits
// deployments where several processes share chat threads.
//
//	pool, err := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
//	saver := pgmemory.New(pool)
//	if err := saver.EnsureSchema(ctx); err != nil { ... }
package pgmemory

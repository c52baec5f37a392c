// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/picfg"
)

var (
	// ErrTokenNotFound is returned when no token has the given serial.
	ErrTokenNotFound = errors.New("store: token not found")
	// ErrRealmNotFound is returned when no realm has the given name.
	ErrRealmNotFound = errors.New("store: realm not found")
	// ErrSerialExists is returned by CopyToken when the serial is taken.
	ErrSerialExists = errors.New("store: serial already exists")
)

// Store reads and writes the token tables of a privacyIDEA database.
type Store struct {
	db *bun.DB
}

// Open connects to the database described by db.
func Open(db picfg.Database) (*Store, error) {
	sqlDB, err := sql.Open(db.Driver, db.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", db.Driver, err)
	}
	return New(sqlDB, db.Driver), nil
}

// OpenURI connects using an SQLAlchemy URI as found in pi.cfg.
func OpenURI(uri string) (*Store, error) {
	db, err := picfg.ParseDatabaseURI(uri)
	if err != nil {
		return nil, err
	}
	return Open(db)
}

// New wraps an open connection. driver selects the SQL dialect.
func New(sqlDB *sql.DB, driver string) *Store {
	return &Store{db: createBunDB(sqlDB, driver)}
}

func createBunDB(sqlDB *sql.DB, driver string) *bun.DB {
	switch driver {
	case picfg.DriverPostgres, "postgres":
		return bun.NewDB(sqlDB, pgdialect.New())
	case picfg.DriverMySQL:
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// DB exposes the underlying bun handle.
func (s *Store) DB() *bun.DB { return s.db }

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// CreateTables creates the token tables when they are missing. Used for
// empty SQLite targets; production databases are created by pi-manage.
func (s *Store) CreateTables(ctx context.Context) error {
	models := []any{(*Realm)(nil), (*Token)(nil), (*TokenInfo)(nil), (*TokenOwner)(nil)}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("store: create table: %w", err)
		}
	}
	return nil
}

// TokenBySerial loads a token with its tokeninfo rows.
func (s *Store) TokenBySerial(ctx context.Context, serial string) (*Token, error) {
	tok := new(Token)
	err := s.db.NewSelect().
		Model(tok).
		Relation("Infos").
		Where("?TableAlias.serial = ?", serial).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, serial)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load token %s: %w", serial, err)
	}
	return tok, nil
}

// SerialExists reports whether a token with serial is present.
func (s *Store) SerialExists(ctx context.Context, serial string) (bool, error) {
	return serialExists(ctx, s.db, serial)
}

func serialExists(ctx context.Context, db bun.IDB, serial string) (bool, error) {
	ok, err := db.NewSelect().Model((*Token)(nil)).Where("serial = ?", serial).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("store: lookup serial %s: %w", serial, err)
	}
	return ok, nil
}

// CopyToken inserts tok under serial together with its tokeninfo rows
// and returns the new token id. Ids of the source rows are not reused.
func (s *Store) CopyToken(ctx context.Context, tok *Token, serial string) (int64, error) {
	var id int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := serialExists(ctx, tx, serial)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrSerialExists, serial)
		}

		row := *tok
		row.Serial = serial
		row.Infos = nil
		if row.ID, err = s.nextID(ctx, tx, "token"); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("store: insert token %s: %w", serial, err)
		}
		if row.ID == 0 {
			if err := tx.NewSelect().Model((*Token)(nil)).Column("id").
				Where("serial = ?", serial).Scan(ctx, &row.ID); err != nil {
				return fmt.Errorf("store: read token id %s: %w", serial, err)
			}
		}

		for _, info := range tok.Infos {
			info.TokenID = row.ID
			if info.ID, err = s.nextID(ctx, tx, "tokeninfo"); err != nil {
				return err
			}
			if _, err := tx.NewInsert().Model(&info).Exec(ctx); err != nil {
				return fmt.Errorf("store: insert tokeninfo %s of %s: %w", info.Key, serial, err)
			}
		}
		id = row.ID
		return nil
	})
	return id, err
}

// MoveTokenOwner replaces every owner of the token with userID of the
// given resolver and realm. PIN, failcounter and tokeninfo stay as they
// are.
func (s *Store) MoveTokenOwner(ctx context.Context, serial, userID, resolver, realm string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var tokenID int64
		err := tx.NewSelect().Model((*Token)(nil)).Column("id").
			Where("serial = ?", serial).Limit(1).Scan(ctx, &tokenID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrTokenNotFound, serial)
		}
		if err != nil {
			return fmt.Errorf("store: lookup token %s: %w", serial, err)
		}

		r := new(Realm)
		err = tx.NewSelect().Model(r).Where("name = ?", realm).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrRealmNotFound, realm)
		}
		if err != nil {
			return fmt.Errorf("store: lookup realm %s: %w", realm, err)
		}

		if _, err := tx.NewDelete().Model((*TokenOwner)(nil)).
			Where("token_id = ?", tokenID).Exec(ctx); err != nil {
			return fmt.Errorf("store: remove owners of %s: %w", serial, err)
		}

		owner := &TokenOwner{TokenID: tokenID, Resolver: resolver, UserID: userID, RealmID: r.ID}
		if owner.ID, err = s.nextID(ctx, tx, "tokenowner"); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(owner).Exec(ctx); err != nil {
			return fmt.Errorf("store: assign %s to %s: %w", serial, userID, err)
		}
		return nil
	})
}

// Owners lists the owners of the token.
func (s *Store) Owners(ctx context.Context, serial string) ([]TokenOwner, error) {
	var owners []TokenOwner
	err := s.db.NewSelect().Model(&owners).
		Where("token_id IN (?)", s.db.NewSelect().Model((*Token)(nil)).Column("id").Where("serial = ?", serial)).
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: owners of %s: %w", serial, err)
	}
	return owners, nil
}

// nextID draws the next id from the table's sequence on PostgreSQL,
// where the schema has no column default. Other dialects return 0 and
// let the database assign the id.
func (s *Store) nextID(ctx context.Context, tx bun.Tx, table string) (int64, error) {
	if s.db.Dialect().Name() != dialect.PG {
		return 0, nil
	}
	var id int64
	if err := tx.NewRaw("SELECT nextval(?)", sequences[table]).Scan(ctx, &id); err != nil {
		return 0, fmt.Errorf("store: nextval %s: %w", sequences[table], err)
	}
	return id, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rahul2570089/mp4-2-mp3/internal/entities"
)

var ErrUserNotFound = errors.New("user not found")

type dbStorage struct {
	dbpool *pgxpool.Pool
}

func New(ctx context.Context, databaseDSN string) (*dbStorage, error) {
	pool, err := pgxpool.New(ctx, databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &dbStorage{dbpool: pool}, nil
}

func (s *dbStorage) Ping(ctx context.Context) error {
	return s.dbpool.Ping(ctx)
}

func (s *dbStorage) Close() {
	s.dbpool.Close()
}

func (s *dbStorage) GetUserByEmail(ctx context.Context, email string) (entities.User, error) {
	var u entities.User
	err := s.dbpool.QueryRow(ctx,
		`SELECT id, email, password_hash, is_admin, created_timestamp FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedTimestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.User{}, ErrUserNotFound
	}
	if err != nil {
		return entities.User{}, fmt.Errorf("query user %q: %w", email, err)
	}
	return u, nil
}

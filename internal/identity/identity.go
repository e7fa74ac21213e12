package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"meetpin/entity"
	"meetpin/internal/config"
	"meetpin/lib/sl"
)

// ErrProfileNotFound is returned when the directory has no profile for the
// given id or email.
var ErrProfileNotFound = errors.New("profile not found")

// Client talks to the MySQL-backed identity/profile directory.
type Client struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSQLClient(conf *config.Config, log *slog.Logger) (*Client, error) {
	if !conf.Identity.Enabled {
		return nil, fmt.Errorf("identity client is disabled in configuration")
	}
	connectionURI := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		conf.Identity.UserName, conf.Identity.Password, conf.Identity.HostName, conf.Identity.Port, conf.Identity.Database)
	db, err := sql.Open("mysql", connectionURI)
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}

	// try to ping three times with a 30-second interval; wait for a database to start
	for i := 0; i < 3; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		if i == 2 {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		time.Sleep(30 * time.Second)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	return &Client{
		db:  db,
		log: log.With(sl.Module("identity")),
	}, nil
}

func (c *Client) Close() {
	_ = c.db.Close()
}

func (c *Client) Profile(ctx context.Context, profileId string) (*entity.Profile, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT profile_id, email, display_name, registered_at FROM profiles WHERE profile_id = ?`, profileId)
	return c.scanProfile(row)
}

func (c *Client) ProfileByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT profile_id, email, display_name, registered_at FROM profiles WHERE email = ?`, email)
	return c.scanProfile(row)
}

// GetOrRegisterProfileByEmail resolves a profile by email, registering a
// fresh one when autoCreate is set and no profile exists.
func (c *Client) GetOrRegisterProfileByEmail(ctx context.Context, email string, autoCreate bool) (*entity.Profile, error) {
	profile, err := c.ProfileByEmail(ctx, email)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrProfileNotFound) || !autoCreate {
		return nil, err
	}

	registered := &entity.Profile{
		ProfileId:    uuid.NewString(),
		Email:        email,
		RegisteredAt: time.Now().UTC(),
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO profiles (profile_id, email, display_name, registered_at) VALUES (?, ?, ?, ?)`,
		registered.ProfileId, registered.Email, registered.DisplayName, registered.RegisteredAt)
	if err != nil {
		return nil, fmt.Errorf("register profile: %w", err)
	}
	c.log.Info("registered profile", slog.String("profile_id", registered.ProfileId))
	return registered, nil
}

func (c *Client) scanProfile(row *sql.Row) (*entity.Profile, error) {
	var p entity.Profile
	err := row.Scan(&p.ProfileId, &p.Email, &p.DisplayName, &p.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}

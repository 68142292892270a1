package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/user-service/internal/core/user"
	pgdb "github.com/ogurasousui/user-service/internal/platform/db/postgres"
)

const uniqueViolationCode = "23505"

const userColumns = `id, email, name, phone, status, role, provider, created_at, updated_at`

// UserRepository は PostgreSQL を利用したユーザー永続化の実装です。
type UserRepository struct {
	pool pgdb.Queryer
}

// NewUserRepository は UserRepository を生成します。
func NewUserRepository(pool pgdb.Queryer) *UserRepository {
	return &UserRepository{pool: pool}
}

// Save は ID が 0 のユーザーを INSERT し、それ以外は UPDATE します。
func (r *UserRepository) Save(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, user.ErrInvalidID
	}
	if u.ID == 0 {
		return r.insert(ctx, u)
	}
	return r.update(ctx, u)
}

func (r *UserRepository) insert(ctx context.Context, u *user.User) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO users (email, name, phone, status, role, provider, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+userColumns,
		u.Email.String(), u.Name, nullablePhone(u.Phone), string(u.Status), string(u.Role), string(u.Provider), u.CreatedAt, u.UpdatedAt)

	created, err := scanUser(row)
	if err != nil {
		return nil, translatePgError(err)
	}
	return created, nil
}

func (r *UserRepository) update(ctx context.Context, u *user.User) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE users
           SET name = $1,
               phone = $2,
               status = $3,
               updated_at = $4
         WHERE id = $5
        RETURNING `+userColumns,
		u.Name, nullablePhone(u.Phone), string(u.Status), u.UpdatedAt, u.ID)

	updated, err := scanUser(row)
	if err != nil {
		return nil, translatePgError(err)
	}
	return updated, nil
}

// FindActiveByID は有効なユーザーを ID で取得します。
func (r *UserRepository) FindActiveByID(ctx context.Context, id int64) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+userColumns+`
          FROM users
         WHERE id = $1 AND status = $2
    `, id, string(user.StatusActive))

	found, err := scanUser(row)
	if err != nil {
		return nil, translatePgError(err)
	}
	return found, nil
}

// FindActiveByIDForUpdate は有効なユーザーを行ロック付きで取得します。トランザクション内で呼び出してください。
func (r *UserRepository) FindActiveByIDForUpdate(ctx context.Context, id int64) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+userColumns+`
          FROM users
         WHERE id = $1 AND status = $2
           FOR UPDATE
    `, id, string(user.StatusActive))

	found, err := scanUser(row)
	if err != nil {
		return nil, translatePgError(err)
	}
	return found, nil
}

// Delete はユーザーを物理削除します。ID とメールアドレスが一致しない場合は ErrUserNotFound です。
func (r *UserRepository) Delete(ctx context.Context, u *user.User) error {
	if u == nil {
		return user.ErrInvalidID
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM users WHERE id = $1 AND email = $2`, u.ID, u.Email.String())
	if err != nil {
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		id                     int64
		email, name            string
		phone                  sql.NullString
		status, role, provider string
		createdAt, updatedAt   time.Time
	)

	if err := row.Scan(&id, &email, &name, &phone, &status, &role, &provider, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}

	emailVO, err := user.NewEmail(email)
	if err != nil {
		return nil, fmt.Errorf("postgres: stored email for user %d: %w", id, err)
	}

	var phoneVO user.Phone
	if phone.Valid {
		if phoneVO, err = user.NewPhone(phone.String); err != nil {
			return nil, fmt.Errorf("postgres: stored phone for user %d: %w", id, err)
		}
	}

	u := &user.User{
		ID:        id,
		Email:     emailVO,
		Name:      name,
		Phone:     phoneVO,
		Status:    user.Status(status),
		Role:      user.Role(role),
		Provider:  user.Provider(provider),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if !u.Status.Valid() || !u.Role.Valid() || !u.Provider.Valid() {
		return nil, fmt.Errorf("postgres: stored enum for user %d is invalid: status=%q role=%q provider=%q", id, status, role, provider)
	}

	return u, nil
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolationCode {
			return user.ErrEmailAlreadyExists
		}
	}
	return err
}

func nullablePhone(p user.Phone) any {
	if !p.Present() {
		return nil
	}
	return p.String()
}

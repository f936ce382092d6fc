package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voyagen/fiootv/internal/models"
)

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// UpsertChannels writes all channels in one statement keyed on (channel_number, genre).
// The batch must not contain the same key twice.
func (p *Postgres) UpsertChannels(ctx context.Context, channels []models.Channel) error {
	if len(channels) == 0 {
		return nil
	}
	numbers := make([]string, len(channels))
	titles := make([]string, len(channels))
	genres := make([]string, len(channels))
	categories := make([]*string, len(channels))
	for i, ch := range channels {
		numbers[i] = ch.ChannelNumber
		titles[i] = ch.Title
		genres[i] = ch.Genre
		categories[i] = ch.Category
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO channels (channel_number, title, genre, category)
		 SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[])
		 ON CONFLICT (channel_number, genre) DO UPDATE SET
		   title = EXCLUDED.title, category = EXCLUDED.category, updated_at = NOW()`,
		numbers, titles, genres, categories,
	)
	if err != nil {
		return wrapErr("UpsertChannels", err)
	}
	return nil
}

// ListChannels returns one page of channels; the total comes from a window count.
func (p *Postgres) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error) {
	where, args := channelWhere(filter)
	args = append(args, filter.PageLimit(), max(filter.Offset, 0))
	query := `SELECT channel_number, COALESCE(title, ''), genre, category, count(*) OVER()
		FROM channels` + where + fmt.Sprintf(`
		ORDER BY category ASC, genre ASC, channel_number ASC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, wrapErr("ListChannels", err)
	}
	defer rows.Close()

	var (
		channels []models.Channel
		total    int
	)
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ChannelNumber, &ch.Title, &ch.Genre, &ch.Category, &total); err != nil {
			return nil, 0, wrapErr("ListChannels scan", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapErr("ListChannels", err)
	}
	// A page past the end has no rows to carry the window count.
	if len(channels) == 0 && filter.Offset > 0 {
		cwhere, cargs := channelWhere(filter)
		if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM channels`+cwhere, cargs...).Scan(&total); err != nil {
			return nil, 0, wrapErr("ListChannels count", err)
		}
	}
	return channels, total, nil
}

// channelWhere builds the WHERE clause shared by the page and count queries.
func channelWhere(filter ChannelFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR genre ILIKE $%d)", len(args), len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// DistinctCategories returns the non-empty categories in the channels table.
func (p *Postgres) DistinctCategories(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT category FROM channels WHERE category IS NOT NULL AND category <> '' ORDER BY category`)
	if err != nil {
		return nil, wrapErr("DistinctCategories", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, wrapErr("DistinctCategories scan", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("DistinctCategories", err)
	}
	return out, nil
}

// CreateOrder inserts an order. The id is generated by the caller.
func (p *Postgres) CreateOrder(ctx context.Context, o *models.Order) (uuid.UUID, error) {
	var id uuid.UUID
	err := p.pool.QueryRow(ctx,
		`INSERT INTO orders (
		   id, plan_id, plan_duration, plan_price, plan_display_duration,
		   customer_first_name, customer_last_name, customer_name, company_name,
		   customer_email, customer_phone, customer_address_line_1, customer_address_line_2,
		   customer_city, customer_state, customer_country, customer_zip_code,
		   order_notes, payment_method, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 RETURNING id`,
		o.ID, o.PlanID, o.PlanDuration, o.PlanPrice, o.PlanDisplayDuration,
		o.FirstName, o.LastName, o.CustomerName, o.CompanyName,
		o.Email, o.Phone, o.AddressLine1, o.AddressLine2,
		o.City, o.State, o.Country, o.ZipCode,
		o.Notes, o.PaymentMethod, o.Status,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, wrapErr("CreateOrder", err)
	}
	return id, nil
}

// CreateContactSubmission inserts a contact form message.
func (p *Postgres) CreateContactSubmission(ctx context.Context, c *models.ContactSubmission) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO contact_submissions (first_name, last_name, email, phone, message)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Message,
	).Scan(&id)
	if err != nil {
		return 0, wrapErr("CreateContactSubmission", err)
	}
	return id, nil
}

// wrapErr converts driver errors into *Error, keeping Postgres diagnostics.
func wrapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{
			Op:      op,
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
			Code:    pgErr.Code,
			Err:     err,
		}
	}
	return &Error{Op: op, Message: err.Error(), Err: err}
}

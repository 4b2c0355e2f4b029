package repository

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
)

// ErrCustomIDConflict signals that the allocated ticket number is already taken.
var ErrCustomIDConflict = errors.New("ticket custom id already allocated")

const customIDConstraint = "tickets_custom_id_key"

// TicketFilter captures listing parameters. Nil fields are not filtered on.
type TicketFilter struct {
	CreatedBy   *string
	AssignedTo  *domain.UnitRef
	Statuses    []domain.TicketStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketMutation edits a locked ticket. Returning an error aborts the save.
type TicketMutation func(ticket *domain.Ticket) error

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Create allocates the next custom id and stores the ticket. It returns
	// ErrCustomIDConflict when the id was taken concurrently.
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByCustomID(ctx context.Context, customID int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// Mutate applies fn while holding the ticket's lock and persists the result.
	Mutate(ctx context.Context, id string, fn TicketMutation) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

var ticketColumns = []string{
	"id::text", "custom_id", "title", "description", "assigned_to_id::text", "assigned_to_type",
	"priority", "status", "created_by::text", "created_at", "in_progress_at", "resolved_at",
	"closed_at", "estimated_resolution_time", "updated_at", "images",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		const nextID = `
            UPDATE ticket_sequences SET value = value + 1
            WHERE name = 'tickets'
            RETURNING value`
		if err := tx.QueryRow(ctx, nextID).Scan(&ticket.CustomID); err != nil {
			return err
		}

		const insert = `
            INSERT INTO tickets (custom_id, title, description, assigned_to_id, assigned_to_type,
                priority, status, created_by, created_at, estimated_resolution_time, updated_at, images)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
            RETURNING id::text`
		images := ticket.Images
		if images == nil {
			images = []string{}
		}
		err := tx.QueryRow(ctx, insert,
			ticket.CustomID,
			ticket.Title,
			ticket.Description,
			ticket.AssignedTo.ID,
			ticket.AssignedTo.Kind,
			ticket.Priority,
			ticket.Status,
			ticket.CreatedBy,
			ticket.CreatedAt,
			ticket.EstimatedResolutionTime,
			ticket.UpdatedAt,
			images,
		).Scan(&ticket.ID)
		if isUniqueViolation(err, customIDConstraint) {
			return ErrCustomIDConflict
		}
		return err
	})
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, pgx.ErrNoRows
	}
	return r.fetchSingle(ctx, r.pool, sq.Eq{"id": id}, false)
}

func (r *ticketRepository) GetByCustomID(ctx context.Context, customID int64) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, r.pool, sq.Eq{"custom_id": customID}, false)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	builder := psql.Select(ticketColumns...).From("tickets")

	if filter.CreatedBy != nil {
		builder = builder.Where(sq.Eq{"created_by": *filter.CreatedBy})
	}
	if filter.AssignedTo != nil {
		builder = builder.Where(sq.Eq{
			"assigned_to_id":   filter.AssignedTo.ID,
			"assigned_to_type": filter.AssignedTo.Kind,
		})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}
	if filter.CreatedFrom != nil {
		builder = builder.Where(sq.GtOrEq{"created_at": *filter.CreatedFrom})
	}
	if filter.CreatedTo != nil {
		builder = builder.Where(sq.LtOrEq{"created_at": *filter.CreatedTo})
	}
	builder = builder.OrderBy("created_at DESC", "custom_id DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if err := r.attachComments(ctx, r.pool, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) Mutate(ctx context.Context, id string, fn TicketMutation) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, pgx.ErrNoRows
	}
	var result *domain.Ticket
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		ticket, err := r.fetchSingle(ctx, tx, sq.Eq{"id": id}, true)
		if err != nil {
			return err
		}
		persisted := len(ticket.Comments)
		if err := fn(ticket); err != nil {
			return err
		}

		const update = `
            UPDATE tickets SET priority=$1, status=$2, in_progress_at=$3, resolved_at=$4, closed_at=$5,
                estimated_resolution_time=$6, images=$7, updated_at=$8
            WHERE id=$9`
		if _, err := tx.Exec(ctx, update,
			ticket.Priority,
			ticket.Status,
			ticket.InProgressAt,
			ticket.ResolvedAt,
			ticket.ClosedAt,
			ticket.EstimatedResolutionTime,
			ticket.Images,
			ticket.UpdatedAt,
			ticket.ID,
		); err != nil {
			return err
		}

		const insertComment = `
            INSERT INTO ticket_comments (id, ticket_id, position, text, commented_by, created_at)
            VALUES ($1,$2,$3,$4,$5,$6)`
		for i := persisted; i < len(ticket.Comments); i++ {
			c := &ticket.Comments[i]
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			if _, err := tx.Exec(ctx, insertComment, c.ID, ticket.ID, i, c.Text, c.CommentedBy, c.CreatedAt); err != nil {
				return err
			}
		}
		result = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *ticketRepository) fetchSingle(ctx context.Context, db queryer, where sq.Eq, forUpdate bool) (*domain.Ticket, error) {
	builder := psql.Select(ticketColumns...).From("tickets").Where(where)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	ticket, err := scanTicket(db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	tickets := []domain.Ticket{*ticket}
	if err := r.attachComments(ctx, db, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func (r *ticketRepository) attachComments(ctx context.Context, db queryer, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	index := make(map[string]int, len(tickets))
	ids := make([]string, len(tickets))
	for i := range tickets {
		index[tickets[i].ID] = i
		ids[i] = tickets[i].ID
	}

	const query = `
        SELECT id::text, ticket_id::text, text, commented_by::text, created_at
        FROM ticket_comments WHERE ticket_id::text = ANY($1)
        ORDER BY ticket_id, position ASC`
	rows, err := db.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c        domain.Comment
			ticketID string
		)
		if err := rows.Scan(&c.ID, &ticketID, &c.Text, &c.CommentedBy, &c.CreatedAt); err != nil {
			return err
		}
		if i, ok := index[ticketID]; ok {
			tickets[i].Comments = append(tickets[i].Comments, c)
		}
	}
	return rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.CustomID,
		&ticket.Title,
		&ticket.Description,
		&ticket.AssignedTo.ID,
		&ticket.AssignedTo.Kind,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedBy,
		&ticket.CreatedAt,
		&ticket.InProgressAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.EstimatedResolutionTime,
		&ticket.UpdatedAt,
		&ticket.Images,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

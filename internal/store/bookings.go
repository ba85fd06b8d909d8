package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/yugal82/sports-screening-server/internal/models"
)

const bookingColumns = `id, user_id, event_id, quantity, price, currency, status,
	payment_ref, payment_amount, payment_currency, payment_status, created_at, updated_at`

type bookingRow struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	EventID         string         `db:"event_id"`
	Quantity        int            `db:"quantity"`
	Price           int64          `db:"price"`
	Currency        string         `db:"currency"`
	Status          string         `db:"status"`
	PaymentRef      sql.NullString `db:"payment_ref"`
	PaymentAmount   sql.NullInt64  `db:"payment_amount"`
	PaymentCurrency sql.NullString `db:"payment_currency"`
	PaymentStatus   sql.NullString `db:"payment_status"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *bookingRow) toModel() *models.Booking {
	b := &models.Booking{
		ID:        r.ID,
		UserID:    r.UserID,
		EventID:   r.EventID,
		Quantity:  r.Quantity,
		Price:     r.Price,
		Currency:  r.Currency,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.PaymentRef.Valid {
		b.Payment = &models.PaymentInfo{
			ProviderRef: r.PaymentRef.String,
			Amount:      r.PaymentAmount.Int64,
			Currency:    r.PaymentCurrency.String,
			Status:      r.PaymentStatus.String,
		}
	}
	return b
}

// Transition is a conditional status change. PaymentStatus is left
// untouched when empty.
type Transition struct {
	From          []string
	To            string
	PaymentStatus string
}

// CreateBooking inserts a new booking
func (s *Store) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (id, user_id, event_id, quantity, price, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		booking.ID, booking.UserID, booking.EventID, booking.Quantity,
		booking.Price, booking.Currency, booking.Status,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

// GetBooking retrieves a booking by ID
func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.getBooking(ctx, "id", id)
}

// GetBookingByPaymentRef retrieves the booking a payment handle belongs to
func (s *Store) GetBookingByPaymentRef(ctx context.Context, ref string) (*models.Booking, error) {
	return s.getBooking(ctx, "payment_ref", ref)
}

func (s *Store) getBooking(ctx context.Context, column, value string) (*models.Booking, error) {
	var row bookingRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+bookingColumns+" FROM bookings WHERE "+column+" = $1", value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %s: %w", value, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// ListBookingsByUser retrieves bookings for a user, newest first
func (s *Store) ListBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	var rows []bookingRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}

	bookings := make([]models.Booking, 0, len(rows))
	for i := range rows {
		bookings = append(bookings, *rows[i].toModel())
	}
	return bookings, nil
}

// AttachPayment records the payment handle once; a second attach is refused
func (s *Store) AttachPayment(ctx context.Context, bookingID string, info models.PaymentInfo) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET payment_ref = $1, payment_amount = $2, payment_currency = $3, payment_status = $4, updated_at = NOW()
		WHERE id = $5 AND payment_ref IS NULL`,
		info.ProviderRef, info.Amount, info.Currency, info.Status, bookingID)
	if err != nil {
		return fmt.Errorf("failed to attach payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("booking %s already has a payment: %w", bookingID, models.ErrInvalidTransition)
	}
	return nil
}

// TransitionBooking applies t only if the current status is one of t.From.
// It reports whether the row changed.
func (s *Store) TransitionBooking(ctx context.Context, bookingID string, t Transition) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = $1, payment_status = COALESCE(NULLIF($2, ''), payment_status), updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)`,
		t.To, t.PaymentStatus, bookingID, pq.Array(t.From))
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdatePaymentStatus updates the payment status of a booking
func (s *Store) UpdatePaymentStatus(ctx context.Context, bookingID, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET payment_status = $1, updated_at = NOW() WHERE id = $2 AND payment_ref IS NOT NULL",
		status, bookingID)
	return err
}

package appointment

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

func TestInsertError(t *testing.T) {
	a := newAppointment(StatusRequested)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"overlap exclusion", &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"}, apperr.ErrConflict},
		{"duplicate id", &pgconn.PgError{Code: "23505"}, apperr.ErrConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, nil},
		{"connection", errors.New("connection reset"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := insertError(a, tt.err)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}
				return
			}
			if apperr.CodeOf(err) != "" {
				t.Fatalf("expected an unclassified error, got code %q", apperr.CodeOf(err))
			}
			if !errors.Is(err, tt.err) {
				t.Fatal("original error should stay wrapped")
			}
		})
	}
}

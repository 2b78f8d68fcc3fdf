package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-booking/internal/appointment"
	"github.com/hackgods/practitioner-booking/internal/apperr"
	"github.com/hackgods/practitioner-booking/internal/availability"
	"github.com/hackgods/practitioner-booking/internal/db"
	"github.com/hackgods/practitioner-booking/internal/logging"
	"github.com/hackgods/practitioner-booking/internal/notify"
	"github.com/hackgods/practitioner-booking/internal/scheduler"
	"github.com/hackgods/practitioner-booking/internal/treatment"
)

var timezones = []string{"Asia/Kolkata", "Asia/Kolkata", "UTC", "Europe/London", "Asia/Dubai"}

func main() {
	logger := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	practitioners := envInt("SEED_PRACTITIONERS", 100)
	bookings := envInt("SEED_BOOKINGS_PER_PRACTITIONER", 3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, int32(envInt("POSTGRES_MAX_CONNS", 10)))
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	ids, err := seedPractitioners(context.Background(), pool, practitioners, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed practitioners")
	}
	if err := seedBookings(context.Background(), pool, ids, bookings, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed bookings")
	}

	logger.Info().Msg("seed complete")
}

// seedPractitioners registers practitioners with a spread of timezones and
// opening hours so slot listings differ between them.
func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding practitioners")

	store := availability.NewStore(availability.NewPgRepository(pool), time.Now)
	ids := make([]uuid.UUID, 0, count)

	for i := 0; i < count; i++ {
		id := uuid.New()
		tz := timezones[gofakeit.Number(0, len(timezones)-1)]

		if _, err := store.SetRules(ctx, id, tz, randomRules()); err != nil {
			return nil, err
		}
		ids = append(ids, id)

		logger.Debug().
			Str("practitioner_id", id.String()).
			Str("name", gofakeit.Name()).
			Str("timezone", tz).
			Msg("practitioner seeded")
	}

	logger.Info().Int("count", len(ids)).Msg("practitioners seeded")
	return ids, nil
}

func randomRules() []availability.Rule {
	open := availability.NewTimeOfDay(gofakeit.Number(7, 10), 0)
	closing := availability.NewTimeOfDay(gofakeit.Number(16, 19), 0)
	dayOff := availability.Weekday(gofakeit.Number(int(availability.Monday), int(availability.Saturday)))

	rules := make([]availability.Rule, 0, 7)
	for d := availability.Monday; d <= availability.Saturday; d++ {
		if d == dayOff {
			rules = append(rules, availability.Rule{Weekday: d, Open: false})
			continue
		}
		rules = append(rules, availability.Rule{Weekday: d, Start: open, End: closing, Open: true})
	}
	return append(rules, availability.Rule{Weekday: availability.Sunday, Open: false})
}

// seedBookings books through the coordinator so seeded rows obey the same
// containment and overlap rules as live traffic.
func seedBookings(ctx context.Context, pool *pgxpool.Pool, practitioners []uuid.UUID, perPractitioner int, logger zerolog.Logger) error {
	if perPractitioner <= 0 {
		return nil
	}

	catalog := treatment.DefaultCatalog()
	treatments := catalog.All()
	coord := scheduler.NewCoordinator(
		availability.NewStore(availability.NewPgRepository(pool), time.Now),
		appointment.NewPgRepository(pool),
		catalog,
		scheduler.NewLocalLocker(),
		notify.NewHub(notify.DefaultBuffer, logger),
		scheduler.Options{Logger: logger},
	)

	created, rejected := 0, 0
	for _, pid := range practitioners {
		for i := 0; i < perPractitioner; i++ {
			t := treatments[gofakeit.Number(0, len(treatments)-1)]
			day := time.Now().AddDate(0, 0, gofakeit.Number(1, 14))

			seq, err := coord.ListAvailableSlots(ctx, pid, day, t.DurationMinutes())
			if err != nil {
				return err
			}
			var windows []scheduler.Window
			for w := range seq {
				windows = append(windows, w)
			}
			if len(windows) == 0 {
				continue
			}
			w := windows[gofakeit.Number(0, len(windows)-1)]

			_, err = coord.AttemptBooking(ctx, scheduler.BookingRequest{
				PatientID:      uuid.New(),
				PractitionerID: pid,
				TreatmentID:    t.ID,
				Start:          w.Start,
				End:            w.End,
			})
			switch {
			case err == nil:
				created++
			case errors.Is(err, apperr.ErrConflict):
				rejected++
			default:
				return err
			}
		}
	}

	logger.Info().Int("created", created).Int("rejected", rejected).Msg("bookings seeded")
	return nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

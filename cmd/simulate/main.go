package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-booking/internal/availability"
	"github.com/hackgods/practitioner-booking/internal/config"
	"github.com/hackgods/practitioner-booking/internal/db"
	"github.com/hackgods/practitioner-booking/internal/logging"
	"github.com/hackgods/practitioner-booking/internal/scheduler"
	"github.com/hackgods/practitioner-booking/internal/session"
	"github.com/hackgods/practitioner-booking/internal/treatment"
)

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	BookingRatio      float64
	ConfirmRatio      float64
	ReadRatio         float64
	PatientCount      int
	PractitionerLimit int
	HorizonDays       int
	PostgresDSN       string
	JWTSecret         string
}

type bookedAppointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
}

type DataPool struct {
	Patients      []uuid.UUID
	Practitioners []uuid.UUID
	Treatments    []treatment.Treatment
	mu            sync.RWMutex
	appointments  []bookedAppointment
}

func (dp *DataPool) AddAppointment(a bookedAppointment) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, a)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (bookedAppointment, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return bookedAppointment{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Slots         OperationMetrics
	Booking       OperationMetrics
	Confirm       OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	tokens  *session.Tokens
	log     zerolog.Logger
	metrics Metrics
}

func main() {
	cfg, baseEnv := loadConfig()
	logger := logging.New(baseEnv, os.Getenv("LOG_LEVEL"))

	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("confirm", cfg.ConfirmRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, availability.NewPgRepository(pgPool), cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("practitioners", len(dataPool.Practitioners)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		tokens: session.NewTokens(cfg.JWTSecret, cfg.Duration+time.Minute, time.Now),
		log:    logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, string) {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base config: %v\n", err)
		os.Exit(1)
	}

	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 10),
		BookingRatio:      getFloat("SIM_BOOKING_RATIO", 0.5),
		ConfirmRatio:      getFloat("SIM_CONFIRM_RATIO", 0.2),
		ReadRatio:         getFloat("SIM_READ_RATIO", 0.3),
		PatientCount:      getInt("SIM_PATIENT_COUNT", 4000),
		PractitionerLimit: getInt("SIM_PRACTITIONER_LIMIT", 100),
		HorizonDays:       getInt("SIM_HORIZON_DAYS", 14),
		PostgresDSN:       baseCfg.PostgresDSN,
		JWTSecret:         baseCfg.JWTSecret,
	}

	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, baseCfg.Env
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HorizonDays <= 0 {
		return fmt.Errorf("SIM_HORIZON_DAYS must be > 0")
	}
	return nil
}

// loadDataPool reads registered practitioners from Postgres. Patients have
// no table of their own, so the pool invents a fixed population of ids.
func loadDataPool(ctx context.Context, schedules *availability.PgRepository, cfg SimConfig) (*DataPool, error) {
	practitioners, err := schedules.ListPractitionerIDs(ctx, cfg.PractitionerLimit)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	if len(practitioners) == 0 {
		return nil, fmt.Errorf("no practitioners loaded; run the seed first")
	}

	patients := make([]uuid.UUID, cfg.PatientCount)
	for i := range patients {
		patients[i] = uuid.New()
	}
	if len(patients) == 0 {
		return nil, fmt.Errorf("SIM_PATIENT_COUNT must be > 0")
	}

	return &DataPool{
		Patients:      patients,
		Practitioners: practitioners,
		Treatments:    treatment.DefaultCatalog().All(),
	}, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doReadByID(ctx, rng)
				} else {
					s.doListByPatient(ctx, rng)
				}
			}
		}
	}
}

// doBooking lists a practitioner's free windows for a random day, then
// tries to book one of them. Workers race for the same windows, so 409s
// are expected and counted as conflicts.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	practitionerID := s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	t := s.pool.Treatments[rng.Intn(len(s.pool.Treatments))]
	day := time.Now().AddDate(0, 0, 1+rng.Intn(s.config.HorizonDays))

	slotsURL := fmt.Sprintf("%s/availability/%s/slots?date=%s&durationMinutes=%d",
		s.config.APIBaseURL, practitionerID, day.Format(time.DateOnly), t.DurationMinutes())

	var slots struct {
		Slots []scheduler.Window `json:"slots"`
	}
	start := time.Now()
	status, err := s.do(ctx, http.MethodGet, slotsURL, patientID, session.RolePatient, nil, &slots)
	s.metrics.Slots.Record(time.Since(start), err == nil && status == http.StatusOK, false)
	if err != nil || status != http.StatusOK || len(slots.Slots) == 0 {
		return
	}

	w := slots.Slots[rng.Intn(len(slots.Slots))]
	body := map[string]any{
		"practitionerId": practitionerID.String(),
		"treatmentId":    t.ID,
		"start":          w.Start,
		"end":            w.End,
	}

	var appt struct {
		ID uuid.UUID `json:"id"`
	}
	start = time.Now()
	status, err = s.do(ctx, http.MethodPost, s.config.APIBaseURL+"/booking-requests", patientID, session.RolePatient, body, &appt)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success && appt.ID != uuid.Nil {
		s.pool.AddAppointment(bookedAppointment{ID: appt.ID, PatientID: patientID, PractitionerID: practitionerID})
	}
	s.metrics.Booking.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.do(ctx, http.MethodPost,
		fmt.Sprintf("%s/appointments/%s/transition", s.config.APIBaseURL, appt.ID),
		appt.PractitionerID, session.RolePractitioner, map[string]string{"event": "confirm"}, nil)
	latency := time.Since(start)

	// Confirming twice is an invalid transition; it is a lost race, not a failure.
	conflict := status == http.StatusConflict
	s.metrics.Confirm.Record(latency, err == nil && status == http.StatusOK, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, appt.ID),
		appt.PatientID, session.RolePatient, nil, nil)

	s.metrics.ReadByID.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	if appt, ok := s.pool.GetRandomAppointment(rng); ok && rng.Intn(2) == 0 {
		patientID = appt.PatientID
	}

	start := time.Now()
	status, err := s.do(ctx, http.MethodGet, s.config.APIBaseURL+"/appointments?limit=20",
		patientID, session.RolePatient, nil, nil)

	s.metrics.ListByPatient.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

// do sends one authenticated request as userID and decodes a JSON response
// into out when out is non-nil.
func (s *Simulator) do(ctx context.Context, method, url string, userID uuid.UUID, role session.Role, in, out any) (int, error) {
	raw, _, err := s.tokens.Issue(userID, role)
	if err != nil {
		return 0, err
	}

	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+raw)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("List slots", &s.metrics.Slots)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}

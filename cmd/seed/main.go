package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caremesh/clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if _, err := seedServices(context.Background(), pool); err != nil {
		log.Fatalf("seed services: %v", err)
	}
	doctorIDs, err := seedDoctors(context.Background(), pool, 100)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 9000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAvailability(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed availability: %v", err)
	}

	log.Println("seed complete")
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	services := []struct {
		name    string
		minutes int
	}{
		{"General Consultation", 30},
		{"Dermatology Consultation", 30},
		{"Cardiology Consultation", 45},
		{"Pediatric Checkup", 30},
		{"Orthopedic Evaluation", 45},
		{"Psychiatry Session", 60},
	}

	log.Printf("seeding %d services", len(services))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(services))
	for _, s := range services {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, default_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, s.name, s.minutes)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("services seeded")
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		// Roughly one doctor in five has a non-default slot length.
		var slotMinutes *int
		if gofakeit.Number(0, 4) == 0 {
			m := []int{15, 20, 45, 60}[gofakeit.Number(0, 3)]
			slotMinutes = &m
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, active, slot_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, TRUE, $4, now(), now())
		`, id, name, spec, slotMinutes)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// seedAvailability gives every doctor a weekday schedule of one or two
// windows, plus the occasional vacation block over the next month.
func seedAvailability(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	log.Printf("seeding availability for %d doctors", len(doctorIDs))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, doctorID := range doctorIDs {
		for weekday := 1; weekday <= 5; weekday++ {
			// Morning window, 08:00 or 09:00 start.
			start := 480 + 60*gofakeit.Number(0, 1)
			_, err := tx.Exec(ctx, `
				INSERT INTO availability_windows (id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, uuid.New(), doctorID, weekday, start, 720)
			if err != nil {
				return err
			}

			// Most doctors also take afternoons.
			if gofakeit.Number(0, 3) > 0 {
				_, err := tx.Exec(ctx, `
					INSERT INTO availability_windows (id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, now(), now())
				`, uuid.New(), doctorID, weekday, 780, 1020)
				if err != nil {
					return err
				}
			}
		}

		// One doctor in ten is on vacation for a few days soon.
		if gofakeit.Number(0, 9) == 0 {
			startsAt := time.Now().AddDate(0, 0, gofakeit.Number(3, 20))
			endsAt := startsAt.AddDate(0, 0, gofakeit.Number(2, 7))
			_, err := tx.Exec(ctx, `
				INSERT INTO schedule_blocks (id, doctor_id, kind, starts_at, ends_at, created_at)
				VALUES ($1, $2, 'vacation', $3, $4, now())
			`, uuid.New(), doctorID, startsAt, endsAt)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("availability seeded")
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ai"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/cds"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/auth"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/config"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/database"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/events"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/metrics"
	secmiddleware "github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/middleware"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
	Store  ehr.Store
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Charting store selection: the Postgres read model when available,
	// the legacy HIS bridge when configured, an in-memory demo store
	// otherwise.
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: Database not available: %v\n", err)
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: Migration failed: %v\n", err)
		}
		app.Store = ehr.NewPostgresStore(db.Pool)
	}
	if app.Store == nil && cfg.LegacyEHR.Enabled {
		legacy, err := ehr.NewLegacyStore(cfg.LegacyEHR)
		if err != nil {
			fmt.Printf("Warning: Legacy EHR not available: %v\n", err)
		} else {
			defer legacy.Close()
			app.Store = legacy
			fmt.Println("Legacy EHR bridge initialized")
		}
	}
	if app.Store == nil {
		fmt.Println("Running in demo mode with an in-memory charting store...")
		memory := ehr.NewMemoryStore()
		seedDemoPatients(memory)
		app.Store = memory
	}

	// Event bus (optional - skip if not available)
	bus, err := events.NewBus(ctx, cfg.KurrentDB)
	if err != nil {
		fmt.Printf("Warning: event store not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		app.Bus = bus
		defer bus.Close()
		fmt.Println("Event bus initialized")
	}

	// Generation service is optional; the pipeline degrades to its
	// deterministic paths without it.
	var generator cds.TextGenerator
	if cfg.AI.Enabled {
		generator = ai.NewClient(ai.ClientConfig{
			BaseURL:           cfg.AI.URL,
			Model:             cfg.AI.Model,
			Timeout:           cfg.AI.Timeout,
			RequestsPerSecond: cfg.AI.RequestsPerSecond,
		})
		fmt.Printf("Generation service enabled (%s)\n", cfg.AI.URL)
	}

	extractor := cds.NewExtractor(generator)
	aggregator := cds.NewAggregator(app.Store, extractor, cfg.CDS.FetchTimeout)
	synthesizer := cds.NewSynthesizer(generator)
	pipeline := cds.NewPipeline(aggregator, synthesizer, cds.DefaultMIPSMeasures(), app.Bus)
	cdsHandler := cds.NewHandler(pipeline, cfg.CDS.DefaultSpecialty)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}
		r.Mount("/cds", cdsHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Clinical Decision Support Service")
	fmt.Println("============================================")
	fmt.Printf("Environment:    %s\n", cfg.Server.Env)
	fmt.Printf("Server:         http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:            http://localhost:%d/api/v1/cds\n", cfg.Server.Port)
	fmt.Printf("Health:         http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Default specialty: %s\n", cfg.CDS.DefaultSpecialty)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Clinical Decision Support Service",
		"version": "0.1.0",
		"docs":    "/api/v1/cds",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if err := app.Store.Health(r.Context()); err != nil {
			checks["ehr_store"] = "not ready: " + err.Error()
		} else {
			checks["ehr_store"] = "ready"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["event_bus"] = "not ready: " + err.Error()
			} else {
				checks["event_bus"] = "ready"
			}
		} else {
			checks["event_bus"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// seedDemoPatients loads two demonstration charts so the service is
// usable without a database.
func seedDemoPatients(store *ehr.MemoryStore) {
	now := time.Now().UTC()

	// Opioid treatment program patient.
	otpID := types.MustParseID("6f1a2b3c-4d5e-4f60-8172-93a4b5c6d7e8")
	store.AddPatient(ehr.Patient{
		ID:          otpID,
		FirstName:   "Jordan",
		LastName:    "Reyes",
		DateOfBirth: time.Date(1991, 6, 12, 0, 0, 0, 0, time.UTC),
		Gender:      ehr.GenderMale,
	})
	store.AddMedication(otpID, ehr.Medication{
		ID: types.NewID(), Name: "Buprenorphine/naloxone", Dosage: "16 mg", Frequency: "daily",
		Status: "active", StartedAt: now.AddDate(0, -8, 0),
	})
	for i := 0; i < 4; i++ {
		store.AddLabResult(otpID, ehr.LabResult{
			ID: types.NewID(), TestName: "Urine Drug Screen", Value: "negative",
			CollectedAt: now.AddDate(0, 0, -7*(i+1)),
		})
	}
	store.AddEncounter(otpID, ehr.Encounter{
		ID: types.NewID(), Type: ehr.EncounterIntake, Reason: "program intake",
		OccurredAt: now.AddDate(0, -8, 0),
	})
	for i := 0; i < 3; i++ {
		store.AddEncounter(otpID, ehr.Encounter{
			ID: types.NewID(), Type: ehr.EncounterOffice, Reason: "counseling",
			OccurredAt: now.AddDate(0, 0, -10*(i+1)),
		})
	}
	store.AddNote(otpID, ehr.Note{
		ID: types.NewID(), Type: "progress", Author: "A. Chen, LCSW",
		Content:   "Patient stable on current dose. COWS: 2. 42 CFR Part 2 consent on file. Engaged in counseling, no cravings reported.",
		WrittenAt: now.AddDate(0, 0, -10),
	})

	// Primary care patient with chronic disease burden.
	pcpID := types.MustParseID("0b9c8d7e-6f5a-4b3c-9d2e-1f0a9b8c7d6e")
	store.AddPatient(ehr.Patient{
		ID:          pcpID,
		FirstName:   "Marta",
		LastName:    "Okafor",
		DateOfBirth: time.Date(1958, 2, 3, 0, 0, 0, 0, time.UTC),
		Gender:      ehr.GenderFemale,
	})
	store.AddProblem(pcpID, ehr.Problem{
		ID: types.NewID(), Diagnosis: "Type 2 diabetes mellitus", ICD10Code: "E11.9",
		Status: ehr.ProblemChronic, OnsetAt: now.AddDate(-6, 0, 0),
	})
	store.AddProblem(pcpID, ehr.Problem{
		ID: types.NewID(), Diagnosis: "Essential hypertension", ICD10Code: "I10",
		Status: ehr.ProblemChronic, OnsetAt: now.AddDate(-9, 0, 0),
	})
	store.AddMedication(pcpID, ehr.Medication{
		ID: types.NewID(), Name: "Metformin", Dosage: "1000 mg", Frequency: "twice daily",
		Status: "active", StartedAt: now.AddDate(-6, 0, 0),
	})
	store.AddMedication(pcpID, ehr.Medication{
		ID: types.NewID(), Name: "Lisinopril", Dosage: "20 mg", Frequency: "daily",
		Status: "active", BPMedication: true, StartedAt: now.AddDate(-9, 0, 0),
	})
	store.AddLabResult(pcpID, ehr.LabResult{
		ID: types.NewID(), TestName: "HbA1c", Value: "8.2", Unit: "%",
		CollectedAt: now.AddDate(0, -5, 0),
	})
	systolic, diastolic := 148, 92
	store.AddVitalSigns(pcpID, ehr.VitalSigns{
		ID: types.NewID(), SystolicBP: &systolic, DiastolicBP: &diastolic,
		RecordedAt: now.AddDate(0, 0, -14),
	})
	store.AddEncounter(pcpID, ehr.Encounter{
		ID: types.NewID(), Type: ehr.EncounterOffice, Reason: "chronic disease follow-up",
		OccurredAt: now.AddDate(0, 0, -14),
	})
	store.AddNote(pcpID, ehr.Note{
		ID: types.NewID(), Type: "progress", Author: "R. Patel, MD",
		Content:   "Follow-up for diabetes and hypertension. Blood pressure remains above goal. Discussed diet and adherence.",
		WrittenAt: now.AddDate(0, 0, -14),
	})
}

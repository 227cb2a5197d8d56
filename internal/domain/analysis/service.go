package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/medguard/medguard/internal/engine"
)

// RuleSource yields the active rule set in evaluatable form, plus per-row
// decode failures.
type RuleSource interface {
	ActiveEngineRules(ctx context.Context) ([]*engine.Rule, []error, error)
}

// PatientSource supplies the record and medication history for one patient.
type PatientSource interface {
	GetRecord(ctx context.Context, patientID uuid.UUID) (engine.PatientRecord, error)
	ListMedications(ctx context.Context, patientID uuid.UUID) ([]engine.MedicationRecord, error)
}

type Service struct {
	rules    RuleSource
	patients PatientSource
	alerts   Repository
	analyzer *engine.Analyzer
	log      zerolog.Logger
}

func NewService(rules RuleSource, patients PatientSource, alerts Repository, analyzer *engine.Analyzer, log zerolog.Logger) *Service {
	return &Service{
		rules:    rules,
		patients: patients,
		alerts:   alerts,
		analyzer: analyzer,
		log:      log,
	}
}

// Run performs one full analysis for a patient: fetch the record, then rules
// and medication history concurrently, evaluate, persist the generated
// alerts. A rule-source failure falls back to the built-in rule set and a
// medication-source failure degrades to an empty history; neither aborts the
// run. A missing or undecodable patient record does.
func (s *Service) Run(ctx context.Context, patientID uuid.UUID) (*RunResult, error) {
	startedAt := time.Now().UTC()

	record, err := s.patients.GetRecord(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient %s: %w", patientID, err)
	}

	var (
		activeRules []*engine.Rule
		meds        []engine.MedicationRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rules, decodeErrs, err := s.rules.ActiveEngineRules(gctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("rule source unavailable, using built-in rule set")
			return nil
		}
		for _, derr := range decodeErrs {
			s.log.Warn().Err(derr).Msg("skipping undecodable rule")
		}
		activeRules = rules
		return nil
	})
	g.Go(func() error {
		list, err := s.patients.ListMedications(gctx, patientID)
		if err != nil {
			s.log.Warn().Err(err).Stringer("patient_id", patientID).
				Msg("medication source unavailable, analyzing without history")
			return nil
		}
		meds = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result, err := s.analyzer.Analyze(record, meds, activeRules)
	if err != nil {
		return nil, fmt.Errorf("analyze patient %s: %w", patientID, err)
	}

	rows := make([]*PatientAlert, 0, len(result.Alerts))
	for _, a := range result.Alerts {
		rows = append(rows, fromEngineAlert(patientID, a))
	}
	if err := s.alerts.CreateBatch(ctx, rows); err != nil {
		return nil, fmt.Errorf("persist alerts for patient %s: %w", patientID, err)
	}

	s.log.Info().
		Stringer("patient_id", patientID).
		Int("rules_evaluated", result.Stats.RulesEvaluated).
		Int("alerts", len(rows)).
		Bool("fallback_rules", result.FallbackRules).
		Msg("analysis run complete")

	return &RunResult{
		PatientID:     patientID,
		StartedAt:     startedAt,
		Alerts:        rows,
		Stats:         result.Stats,
		Diagnostics:   result.Diagnostics,
		FallbackRules: result.FallbackRules,
	}, nil
}

func (s *Service) Acknowledge(ctx context.Context, alertID uuid.UUID) error {
	return s.alerts.Acknowledge(ctx, alertID)
}

func (s *Service) AcknowledgeAll(ctx context.Context, patientID uuid.UUID) (int, error) {
	return s.alerts.AcknowledgeAllForPatient(ctx, patientID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*PatientAlert, int, error) {
	return s.alerts.ListByPatient(ctx, patientID, limit, offset)
}

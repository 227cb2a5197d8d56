package rules

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medguard/medguard/internal/engine"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validSeverities = map[string]bool{
	engine.SeverityCritical: true,
	engine.SeverityHigh:     true,
	engine.SeverityModerate: true,
	engine.SeverityLow:      true,
}

func (s *Service) validate(r *ClinicalRule) error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Severity == "" {
		r.Severity = engine.SeverityModerate
	}
	if !validSeverities[r.Severity] {
		return fmt.Errorf("invalid severity: %s", r.Severity)
	}
	if len(r.Condition) == 0 {
		return fmt.Errorf("condition is required")
	}
	// Reject payloads the evaluator could never run.
	if _, err := r.ToEngine(); err != nil {
		return err
	}
	return nil
}

func (s *Service) Create(ctx context.Context, r *ClinicalRule) error {
	if err := s.validate(r); err != nil {
		return err
	}
	return s.repo.Create(ctx, r)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ClinicalRule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, r *ClinicalRule) error {
	if err := s.validate(r); err != nil {
		return err
	}
	return s.repo.Update(ctx, r)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*ClinicalRule, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ActiveEngineRules loads the active rule set in evaluatable form. Rows that
// fail to decode are returned separately so the caller can surface them.
func (s *Service) ActiveEngineRules(ctx context.Context) ([]*engine.Rule, []error, error) {
	stored, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, nil, err
	}
	rules, decodeErrs := ToEngineRules(stored)
	return rules, decodeErrs, nil
}

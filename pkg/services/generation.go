package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/database"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/repositories"
	"github.com/auditsource/engine/pkg/spreadsheet"
)

// txFunc runs fn transactionally. Services default to database.WithTx;
// tests substitute a passthrough.
type txFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// GenerationService materializes per-engagement control rows from the
// three generation sources. Every path is create-if-absent: rows that
// already exist for a control identifier are never touched, so auditor
// work entered into an existing row survives any number of re-runs.
type GenerationService interface {
	// GenerateFromStandards enumerates the active catalog controls across
	// the engagement's selected standards and creates one row per control
	// identifier. Safe to call repeatedly; the second run over an
	// unchanged catalog creates nothing.
	GenerateFromStandards(ctx context.Context, engagementID uuid.UUID) (created, skipped int, err error)

	// GenerateFromQuestionnaire creates a row per answered response.
	// Answer values are never copied into the test fields.
	GenerateFromQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) (created int, err error)

	// GenerateFromSpreadsheet bulk-imports ad-hoc controls into an
	// engagement that has none yet. Validation is all-or-nothing: either
	// every row is valid and the batch commits, or nothing is written.
	GenerateFromSpreadsheet(ctx context.Context, engagementID uuid.UUID, rows []spreadsheet.Row) (created int, err error)
}

type generationService struct {
	engagementRepo    repositories.EngagementRepository
	standardRepo      repositories.StandardRepository
	controlRepo       repositories.ControlRepository
	questionnaireRepo repositories.QuestionnaireRepository
	logger            *zap.Logger
	tx                txFunc
}

// NewGenerationService creates a new GenerationService.
func NewGenerationService(
	engagementRepo repositories.EngagementRepository,
	standardRepo repositories.StandardRepository,
	controlRepo repositories.ControlRepository,
	questionnaireRepo repositories.QuestionnaireRepository,
	logger *zap.Logger,
) GenerationService {
	return &generationService{
		engagementRepo:    engagementRepo,
		standardRepo:      standardRepo,
		controlRepo:       controlRepo,
		questionnaireRepo: questionnaireRepo,
		logger:            logger.Named("generation-service"),
		tx:                database.WithTx,
	}
}

var _ GenerationService = (*generationService)(nil)

func (s *generationService) GenerateFromStandards(ctx context.Context, engagementID uuid.UUID) (int, int, error) {
	var created, skipped int

	err := s.tx(ctx, func(ctx context.Context) error {
		engagement, err := s.engagementRepo.GetByID(ctx, engagementID)
		if err != nil {
			return err
		}

		standardIDs, err := s.engagementRepo.ListStandardIDs(ctx, engagement.ID)
		if err != nil {
			return err
		}
		if len(standardIDs) == 0 {
			return nil
		}

		catalog, err := s.standardRepo.ListActiveControls(ctx, standardIDs)
		if err != nil {
			return err
		}

		for _, sc := range catalog {
			standardControlID := sc.ID
			row := &models.EngagementControl{
				ID:                uuid.New(),
				EngagementID:      engagement.ID,
				StandardControlID: &standardControlID,
				ControlID:         sc.ControlID,
				ControlName:       sc.Title,
				Description:       sc.Description,
				TestingProcedure:  sc.DefaultTestingType,
				Source:            models.ControlSourceAuto,
			}
			inserted, err := s.controlRepo.CreateIfAbsent(ctx, row)
			if err != nil {
				return fmt.Errorf("failed to generate control %s: %w", sc.ControlID, err)
			}
			if inserted {
				created++
			} else {
				skipped++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	s.logger.Info("Generated controls from standards",
		zap.String("engagement_id", engagementID.String()),
		zap.Int("created", created),
		zap.Int("skipped", skipped))
	return created, skipped, nil
}

func (s *generationService) GenerateFromQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) (int, error) {
	var created int

	err := s.tx(ctx, func(ctx context.Context) error {
		questionnaire, err := s.questionnaireRepo.GetByID(ctx, questionnaireID)
		if err != nil {
			return err
		}

		responses, err := s.questionnaireRepo.ListAnsweredResponses(ctx, questionnaire.ID)
		if err != nil {
			return err
		}
		if len(responses) == 0 {
			return apperrors.NewValidationError("questionnaire has no answered responses")
		}

		for _, resp := range responses {
			sc, err := s.standardRepo.GetControl(ctx, resp.StandardControlID)
			if err != nil {
				return err
			}
			standardControlID := sc.ID
			row := &models.EngagementControl{
				ID:                uuid.New(),
				EngagementID:      questionnaire.EngagementID,
				StandardControlID: &standardControlID,
				ControlID:         sc.ControlID,
				ControlName:       sc.Title,
				Description:       sc.Description,
				TestingProcedure:  sc.DefaultTestingType,
				Source:            models.ControlSourceQuestionnaire,
			}
			inserted, err := s.controlRepo.CreateIfAbsent(ctx, row)
			if err != nil {
				return fmt.Errorf("failed to generate control %s: %w", sc.ControlID, err)
			}
			if inserted {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Generated controls from questionnaire",
		zap.String("questionnaire_id", questionnaireID.String()),
		zap.Int("created", created))
	return created, nil
}

func (s *generationService) GenerateFromSpreadsheet(ctx context.Context, engagementID uuid.UUID, rows []spreadsheet.Row) (int, error) {
	if len(rows) == 0 {
		return 0, apperrors.NewValidationError("spreadsheet contains no data rows")
	}

	var created int

	err := s.tx(ctx, func(ctx context.Context) error {
		existing, err := s.controlRepo.CountByEngagement(ctx, engagementID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: engagement already has %d controls; spreadsheet import is first-time only", apperrors.ErrConflict, existing)
		}

		if err := validateSpreadsheetRows(rows); err != nil {
			return err
		}

		for _, row := range rows {
			controlID := strings.TrimSpace(row.Get("controlid"))
			name := strings.TrimSpace(row.Get("controlname"))
			if name == "" {
				name = controlID
			}
			control := &models.EngagementControl{
				ID:               uuid.New(),
				EngagementID:     engagementID,
				ControlID:        controlID,
				ControlName:      name,
				Description:      strings.TrimSpace(row.Get("controldescription")),
				TestingProcedure: strings.TrimSpace(row.Get("testingprocedure")),
				Source:           models.ControlSourceExcel,
			}
			inserted, err := s.controlRepo.CreateIfAbsent(ctx, control)
			if err != nil {
				return fmt.Errorf("failed to import row %d: %w", row.Number, err)
			}
			if inserted {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Imported controls from spreadsheet",
		zap.String("engagement_id", engagementID.String()),
		zap.Int("created", created))
	return created, nil
}

// validateSpreadsheetRows checks every row before any write. A row must
// carry both control_id and control_description non-empty after trimming,
// and no two rows may share a control identifier case-insensitively.
// All offending rows are reported at once, not just the first.
func validateSpreadsheetRows(rows []spreadsheet.Row) error {
	var missing []int
	for _, row := range rows {
		if strings.TrimSpace(row.Get("controlid")) == "" || strings.TrimSpace(row.Get("controldescription")) == "" {
			missing = append(missing, row.Number)
		}
	}
	if len(missing) > 0 {
		return &apperrors.ValidationError{
			Message:    "rows missing required control_id or control_description",
			RowNumbers: missing,
		}
	}

	seen := make(map[string]string, len(rows))
	var duplicates []string
	for _, row := range rows {
		id := strings.TrimSpace(row.Get("controlid"))
		key := strings.ToLower(id)
		if _, ok := seen[key]; ok {
			duplicates = append(duplicates, id)
			continue
		}
		seen[key] = id
	}
	if len(duplicates) > 0 {
		return &apperrors.ValidationError{
			Message:    "duplicate control identifiers in spreadsheet",
			Duplicates: duplicates,
		}
	}
	return nil
}

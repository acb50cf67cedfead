package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/models"
)

type engagementFixture struct {
	svc            *engagementService
	generation     *generationService
	engagementRepo *mockEngagementRepo
	standardRepo   *mockStandardRepo
	controlRepo    *mockControlRepo
}

func newEngagementFixture(t *testing.T) *engagementFixture {
	t.Helper()
	f := &engagementFixture{
		engagementRepo: newMockEngagementRepo(),
		standardRepo:   newMockStandardRepo(),
		controlRepo:    newMockControlRepo(),
	}
	f.generation = NewGenerationService(f.engagementRepo, f.standardRepo, f.controlRepo, newMockQuestionnaireRepo(), zap.NewNop()).(*generationService)
	f.generation.tx = passTx
	f.svc = NewEngagementService(f.engagementRepo, f.standardRepo, f.generation, zap.NewNop()).(*engagementService)
	f.svc.tx = passTx
	return f
}

func TestCreateEngagement_WithStandardsGeneratesControls(t *testing.T) {
	f := newEngagementFixture(t)
	standard := f.standardRepo.addStandard("ISO 27001:2022")
	f.standardRepo.addControl(standard.ID, "A.5.1", "Policies for information security")
	f.standardRepo.addControl(standard.ID, "A.5.2", "Information security roles")

	engagement := &models.Engagement{
		Title:      "Acme FY26 ISMS audit",
		ClientName: "Acme Corp",
		AuditYear:  2026,
		Standards:  []uuid.UUID{standard.ID},
	}
	require.NoError(t, f.svc.Create(context.Background(), assessorActor, engagement))
	assert.Equal(t, models.EngagementPlanning, engagement.Status, "defaults to Planning")

	controls, err := f.controlRepo.ListByEngagement(context.Background(), engagement.ID)
	require.NoError(t, err)
	assert.Len(t, controls, 2)
}

func TestCreateEngagement_UnknownStandardWritesNothing(t *testing.T) {
	f := newEngagementFixture(t)
	engagement := &models.Engagement{
		Title:      "Acme FY26",
		ClientName: "Acme Corp",
		AuditYear:  2026,
		Standards:  []uuid.UUID{uuid.New()},
	}
	err := f.svc.Create(context.Background(), assessorActor, engagement)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	engagements, listErr := f.engagementRepo.List(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, engagements)
}

func TestCreateEngagement_Validation(t *testing.T) {
	f := newEngagementFixture(t)

	err := f.svc.Create(context.Background(), assessorActor, &models.Engagement{ClientName: "Acme"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = f.svc.Create(context.Background(), assessorActor, &models.Engagement{Title: "T", ClientName: "Acme", Status: "Closed"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = f.svc.Create(context.Background(), clientActor, &models.Engagement{Title: "T", ClientName: "Acme"})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestAttachStandards_GeneratesOnlyNewControls(t *testing.T) {
	f := newEngagementFixture(t)
	first := f.standardRepo.addStandard("ISO 27001:2022")
	f.standardRepo.addControl(first.ID, "A.5.1", "Policies")

	engagement := &models.Engagement{
		Title:      "Acme FY26",
		ClientName: "Acme Corp",
		AuditYear:  2026,
		Standards:  []uuid.UUID{first.ID},
	}
	require.NoError(t, f.svc.Create(context.Background(), adminActor, engagement))

	second := f.standardRepo.addStandard("SOC 2 Security")
	f.standardRepo.addControl(second.ID, "CC1.1", "Control environment")

	created, skipped, err := f.svc.AttachStandards(context.Background(), adminActor, engagement.ID, []uuid.UUID{second.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, created, "only the new standard's control")
	assert.Equal(t, 1, skipped, "the existing row is skipped, not rewritten")
}

func TestResync_PicksUpCatalogAdditions(t *testing.T) {
	f := newEngagementFixture(t)
	standard := f.standardRepo.addStandard("ISO 27001:2022")
	f.standardRepo.addControl(standard.ID, "A.5.1", "Policies")

	engagement := &models.Engagement{
		Title:      "Acme FY26",
		ClientName: "Acme Corp",
		AuditYear:  2026,
		Standards:  []uuid.UUID{standard.ID},
	}
	require.NoError(t, f.svc.Create(context.Background(), adminActor, engagement))

	f.standardRepo.addControl(standard.ID, "A.5.3", "Segregation of duties")

	created, skipped, err := f.svc.Resync(context.Background(), assessorActor, engagement.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, skipped)
}

func TestDeleteEngagement_AdminOnly(t *testing.T) {
	f := newEngagementFixture(t)
	engagement := &models.Engagement{Title: "Acme FY26", ClientName: "Acme Corp", AuditYear: 2026}
	require.NoError(t, f.svc.Create(context.Background(), adminActor, engagement))

	err := f.svc.Delete(context.Background(), assessorActor, engagement.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	require.NoError(t, f.svc.Delete(context.Background(), adminActor, engagement.ID))
	_, err = f.svc.GetByID(context.Background(), engagement.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

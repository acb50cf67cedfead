package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/models"
)

var (
	adminActor    = auth.Actor{UserID: uuid.New(), Role: auth.RoleAdmin}
	assessorActor = auth.Actor{UserID: uuid.New(), Role: auth.RoleControlAssessor}
	reviewerActor = auth.Actor{UserID: uuid.New(), Role: auth.RoleControlReviewer}
	clientActor   = auth.Actor{UserID: uuid.New(), Role: auth.RoleClient}
)

type signoffFixture struct {
	svc          *signoffService
	requestRepo  *mockRequestRepo
	documentRepo *mockDocumentRepo
}

func newSignoffFixture(t *testing.T) *signoffFixture {
	t.Helper()
	f := &signoffFixture{
		requestRepo:  newMockRequestRepo(),
		documentRepo: newMockDocumentRepo(),
	}
	f.svc = NewSignoffService(f.requestRepo, f.documentRepo, zap.NewNop()).(*signoffService)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *signoffFixture) addRequest(t *testing.T, testNotes string) *models.Request {
	t.Helper()
	request := &models.Request{
		ID:         uuid.New(),
		ControlRef: uuid.New(),
		Title:      "Provide access review evidence",
		TestNotes:  testNotes,
	}
	models.RecomputeDerivedState(request)
	require.NoError(t, f.requestRepo.Create(context.Background(), request))
	return request
}

func (f *signoffFixture) attachDocument(t *testing.T, requestID uuid.UUID) {
	t.Helper()
	id := requestID
	require.NoError(t, f.documentRepo.Create(context.Background(), &models.RequestDocument{
		ID:           uuid.New(),
		RequestID:    &id,
		EngagementID: uuid.New(),
		DocType:      models.DocTypeEvidence,
		Folder:       models.FolderEvidence,
		FileName:     "access-review.pdf",
		UploadedBy:   uuid.New(),
	}))
}

func TestSignPreparer_MovesOpenToReadyForReview(t *testing.T) {
	f := newSignoffFixture(t)
	request := f.addRequest(t, "")

	updated, err := f.svc.SignPreparer(context.Background(), assessorActor, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestReadyForReview, updated.Status)
	assert.False(t, updated.IsLocked)
	assert.True(t, updated.PreparerSigned)
	require.NotNil(t, updated.PreparerSignoff.SignedBy)
	assert.Equal(t, assessorActor.UserID, *updated.PreparerSignoff.SignedBy)
	assert.NotNil(t, updated.PreparerSignoff.SignedAt)
}

func TestSignPreparer_ClientForbidden(t *testing.T) {
	f := newSignoffFixture(t)
	request := f.addRequest(t, "")

	_, err := f.svc.SignPreparer(context.Background(), clientActor, request.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.svc.SignPreparer(context.Background(), reviewerActor, request.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestSignPreparer_AlreadySignedConflicts(t *testing.T) {
	f := newSignoffFixture(t)
	request := f.addRequest(t, "")

	_, err := f.svc.SignPreparer(context.Background(), assessorActor, request.ID)
	require.NoError(t, err)
	_, err = f.svc.SignPreparer(context.Background(), adminActor, request.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestSignReviewer_CompletesAndLocks(t *testing.T) {
	f := newSignoffFixture(t)
	request := f.addRequest(t, "Reviewed the Q1 access report; no exceptions.")

	_, err := f.svc.SignPreparer(context.Background(), assessorActor, request.ID)
	require.NoError(t, err)

	updated, err := f.svc.SignReviewer(context.Background(), reviewerActor, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCompleted, updated.Status)
	assert.True(t, updated.IsLocked)
	assert.True(t, updated.ReviewerSigned)
}

func TestSignReviewer_EvidentiaryGateRejectsBareRequest(t *testing.T) {
	f := newSignoffFixture(t)
	request := f.addRequest(t, "   ") // whitespace-only notes do not count

	_, err := f.svc.SignPreparer(context.Background(), assessorActor, request.ID)
	require.NoError(t, err)

	_, err = f.svc.SignReviewer(context.Background(), reviewerActor, request.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// The failed transition wrote nothing.
	stored, err := f.requestRepo.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestReadyForReview, stored.Status)
	assert.False(t, stored.ReviewerSigned)
	assert.False(t, stored.IsLocked)
}

func TestSignReviewer_DocumentSatisfiesGate(t *testing.T) {
	f := newSignoffFixture(t)
	request := f.addRequest(t, "")
	f.attachDocument(t, request.ID)

	_, err := f.svc.SignPreparer(context.Background(), assessorActor, request.ID)
	require.NoError(t, err)

	updated, err := f.svc.SignReviewer(context.Background(), reviewerActor, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCompleted, updated.Status)
}

func TestSignReviewer_BeforePreparerStaysOpen(t *testing.T) {
	f := newSignoffFixture(t)
	request := f.addRequest(t, "")

	updated, err := f.svc.SignReviewer(context.Background(), reviewerActor, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestOpen, updated.Status)
	assert.False(t, updated.IsLocked)
	assert.True(t, updated.ReviewerSigned)
}

func TestUndoPreparer_OnlySignerOrAdmin(t *testing.T) {
	f := newSignoffFixture(t)
	request := f.addRequest(t, "")

	_, err := f.svc.SignPreparer(context.Background(), assessorActor, request.ID)
	require.NoError(t, err)

	otherAssessor := auth.Actor{UserID: uuid.New(), Role: auth.RoleControlAssessor}
	_, err = f.svc.UndoPreparer(context.Background(), otherAssessor, request.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	updated, err := f.svc.UndoPreparer(context.Background(), assessorActor, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestOpen, updated.Status)
	assert.False(t, updated.PreparerSigned)
	assert.Nil(t, updated.PreparerSignoff.SignedBy)
	assert.Nil(t, updated.PreparerSignoff.SignedAt)
}

func TestUndoReviewer_ReopensCompletedRequest(t *testing.T) {
	f := newSignoffFixture(t)
	request := f.addRequest(t, "Evidence inspected.")

	_, err := f.svc.SignPreparer(context.Background(), assessorActor, request.ID)
	require.NoError(t, err)
	_, err = f.svc.SignReviewer(context.Background(), reviewerActor, request.ID)
	require.NoError(t, err)

	updated, err := f.svc.UndoReviewer(context.Background(), adminActor, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestReadyForReview, updated.Status)
	assert.False(t, updated.IsLocked, "undoing a sign-off clears the lock through recomputation")
}

func TestUnlock_ClearsLockWithoutTouchingFlags(t *testing.T) {
	f := newSignoffFixture(t)
	request := f.addRequest(t, "Evidence inspected.")

	_, err := f.svc.SignPreparer(context.Background(), assessorActor, request.ID)
	require.NoError(t, err)
	_, err = f.svc.SignReviewer(context.Background(), reviewerActor, request.ID)
	require.NoError(t, err)

	updated, err := f.svc.Unlock(context.Background(), adminActor, request.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsLocked)
	assert.True(t, updated.PreparerSigned)
	assert.True(t, updated.ReviewerSigned)
	assert.Equal(t, models.RequestCompleted, updated.Status)

	_, err = f.svc.Unlock(context.Background(), adminActor, request.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "already unlocked")
}

func TestUnlock_ClientForbidden(t *testing.T) {
	f := newSignoffFixture(t)
	request := f.addRequest(t, "Evidence inspected.")

	_, err := f.svc.SignPreparer(context.Background(), assessorActor, request.ID)
	require.NoError(t, err)
	_, err = f.svc.SignReviewer(context.Background(), reviewerActor, request.ID)
	require.NoError(t, err)

	_, err = f.svc.Unlock(context.Background(), clientActor, request.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

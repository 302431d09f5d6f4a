package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
)

func testRubric() models.Rubric {
	return models.Rubric{
		ID: 2,
		Criteria: []models.Criterion{
			{ID: 10, RubricID: 2, Name: "Thesis", Points: 40},
			{ID: 11, RubricID: 2, Name: "Evidence", Points: 40},
			{ID: 12, RubricID: 2, Name: "Late", Points: -10},
		},
	}
}

func groupMemberships(groupID uint, userIDs ...uint) []models.Membership {
	memberships := make([]models.Membership, 0, len(userIDs))
	for i, userID := range userIDs {
		id := groupID
		memberships = append(memberships, models.Membership{
			ID:        uint(i + 1),
			UserID:    userID,
			SectionID: 1,
			GroupID:   &id,
		})
	}
	return memberships
}

func newScoreServiceForTest(scores *fakeScoreRepo, memberships *fakeMembershipRepo) ScoreService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewScoreService(scores, memberships, &fakeRubricRepo{rubric: testRubric()}, validate, testLogger())
}

func TestScoreServiceCreateIndividualIsDoneImmediately(t *testing.T) {
	scores := newFakeScoreRepo()
	svc := newScoreServiceForTest(scores, &fakeMembershipRepo{})

	result, err := svc.CreateIndividual(context.Background(), 3, dto.IndividualScoreCreateRequest{
		SubmissionID: 1,
		AssignmentID: 5,
		RubricID:     2,
		Evaluation:   map[string]bool{"10": true, "12": false},
	})
	require.NoError(t, err)
	require.True(t, result.Done)
	require.NotNil(t, result.ScorerID)
	require.Equal(t, uint(3), *result.ScorerID)
	require.Empty(t, result.Signed)
}

func TestScoreServiceCreateIndividualRejectsUnknownCriterion(t *testing.T) {
	svc := newScoreServiceForTest(newFakeScoreRepo(), &fakeMembershipRepo{})

	_, err := svc.CreateIndividual(context.Background(), 3, dto.IndividualScoreCreateRequest{
		SubmissionID: 1,
		AssignmentID: 5,
		RubricID:     2,
		Evaluation:   map[string]bool{"99": true},
	})
	require.ErrorIs(t, err, ErrUnknownCriterion)
}

func TestScoreServiceFindOrCreateGroupScoreIsIdempotent(t *testing.T) {
	scores := newFakeScoreRepo()
	memberships := &fakeMembershipRepo{memberships: groupMemberships(4, 3, 8)}
	svc := newScoreServiceForTest(scores, memberships)

	payload := dto.GroupScoreRequest{GroupID: 4, SubmissionID: 1, AssignmentID: 5, RubricID: 2}

	first, err := svc.FindOrCreateGroupScore(context.Background(), 3, payload)
	require.NoError(t, err)
	require.False(t, first.Done)

	second, err := svc.FindOrCreateGroupScore(context.Background(), 8, payload)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "both members must land on the same row")
	require.Len(t, scores.scores, 1)
}

func TestScoreServiceFindOrCreateGroupScoreRequiresMembership(t *testing.T) {
	memberships := &fakeMembershipRepo{memberships: groupMemberships(4, 3, 8)}
	svc := newScoreServiceForTest(newFakeScoreRepo(), memberships)

	_, err := svc.FindOrCreateGroupScore(context.Background(), 99, dto.GroupScoreRequest{GroupID: 4, SubmissionID: 1, AssignmentID: 5, RubricID: 2})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestScoreServiceUpdateEvaluationWipesSignatures(t *testing.T) {
	groupID := uint(4)
	scores := newFakeScoreRepo(models.Score{
		ID:           1,
		SubmissionID: 1,
		AssignmentID: 5,
		RubricID:     2,
		GroupID:      &groupID,
		Evaluation:   dto.JSONFromBoolMap(map[string]bool{"10": true}),
		Signed:       dto.JSONFromBoolMap(map[string]bool{"3": true, "8": true}),
	})
	memberships := &fakeMembershipRepo{memberships: groupMemberships(4, 3, 8)}
	svc := newScoreServiceForTest(scores, memberships)

	result, err := svc.UpdateEvaluation(context.Background(), 1, 3, dto.EvaluationUpdateRequest{
		Evaluation: map[string]bool{"10": true, "11": true},
	})
	require.NoError(t, err)
	require.Empty(t, result.Signed, "editing must invalidate every signature, the editor's included")
	require.True(t, result.Evaluation["11"])
}

func TestScoreServiceUpdateEvaluationRejectsFinalized(t *testing.T) {
	groupID := uint(4)
	scores := newFakeScoreRepo(models.Score{
		ID:      1,
		GroupID: &groupID,
		Done:    true,
	})
	memberships := &fakeMembershipRepo{memberships: groupMemberships(4, 3, 8)}
	svc := newScoreServiceForTest(scores, memberships)

	_, err := svc.UpdateEvaluation(context.Background(), 1, 3, dto.EvaluationUpdateRequest{
		Evaluation: map[string]bool{"10": true},
	})
	require.ErrorIs(t, err, ErrScoreFinalized)
	require.Equal(t, 0, scores.updates)
}

func TestScoreServiceUpdateEvaluationRejectsOutsiders(t *testing.T) {
	groupID := uint(4)
	scores := newFakeScoreRepo(models.Score{ID: 1, RubricID: 2, GroupID: &groupID})
	memberships := &fakeMembershipRepo{memberships: groupMemberships(4, 3, 8)}
	svc := newScoreServiceForTest(scores, memberships)

	_, err := svc.UpdateEvaluation(context.Background(), 1, 99, dto.EvaluationUpdateRequest{
		Evaluation: map[string]bool{"10": true},
	})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestScoreServiceSignEvaluationReachesConsensus(t *testing.T) {
	groupID := uint(4)
	scores := newFakeScoreRepo(models.Score{
		ID:         1,
		RubricID:   2,
		GroupID:    &groupID,
		Evaluation: dto.JSONFromBoolMap(map[string]bool{"10": true}),
		Signed:     dto.JSONFromBoolMap(nil),
	})
	memberships := &fakeMembershipRepo{memberships: groupMemberships(4, 3, 8)}
	svc := newScoreServiceForTest(scores, memberships)

	result, reached, err := svc.SignEvaluation(context.Background(), 1, 3)
	require.NoError(t, err)
	require.False(t, reached)
	require.False(t, result.Done)

	result, reached, err = svc.SignEvaluation(context.Background(), 1, 8)
	require.NoError(t, err)
	require.True(t, reached, "last member's signature completes consensus")
	require.True(t, result.Done)
}

func TestScoreServiceSignEvaluationIgnoresStaleSignatures(t *testing.T) {
	groupID := uint(4)
	scores := newFakeScoreRepo(models.Score{
		ID:       1,
		RubricID: 2,
		GroupID:  &groupID,
		// User 99 signed before leaving the group.
		Signed: dto.JSONFromBoolMap(map[string]bool{"99": true}),
	})
	memberships := &fakeMembershipRepo{memberships: groupMemberships(4, 3, 8)}
	svc := newScoreServiceForTest(scores, memberships)

	_, reached, err := svc.SignEvaluation(context.Background(), 1, 3)
	require.NoError(t, err)
	require.False(t, reached, "a departed member's signature must not count toward consensus")

	_, reached, err = svc.SignEvaluation(context.Background(), 1, 8)
	require.NoError(t, err)
	require.True(t, reached)
}

func TestScoreServiceSignEvaluationRejectsFinalized(t *testing.T) {
	groupID := uint(4)
	scores := newFakeScoreRepo(models.Score{ID: 1, GroupID: &groupID, Done: true})
	memberships := &fakeMembershipRepo{memberships: groupMemberships(4, 3, 8)}
	svc := newScoreServiceForTest(scores, memberships)

	_, _, err := svc.SignEvaluation(context.Background(), 1, 3)
	require.ErrorIs(t, err, ErrScoreFinalized)
}

func TestScoreServiceHasAccess(t *testing.T) {
	scorerID := uint(3)
	groupID := uint(4)
	scores := newFakeScoreRepo(
		models.Score{ID: 1, ScorerID: &scorerID},
		models.Score{ID: 2, GroupID: &groupID},
	)
	memberships := &fakeMembershipRepo{memberships: groupMemberships(4, 8)}
	svc := newScoreServiceForTest(scores, memberships)

	allowed, err := svc.HasAccess(context.Background(), 1, 3)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = svc.HasAccess(context.Background(), 1, 8)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = svc.HasAccess(context.Background(), 2, 8)
	require.NoError(t, err)
	require.True(t, allowed)
}

package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
)

func newSubmissionServiceForTest(submissions *fakeSubmissionRepo, sections *fakeSectionRepo, memberships *fakeMembershipRepo, broadcaster Broadcaster) SubmissionService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewSubmissionService(submissions, sections, memberships, validate, broadcaster, testLogger())
}

func writingSection(assignmentID uint) models.Section {
	return models.Section{ID: 1, Status: models.StatusWriting, AssignmentID: &assignmentID}
}

func TestSubmissionServiceCreateStoresWork(t *testing.T) {
	submissions := &fakeSubmissionRepo{}
	sections := newFakeSectionRepo(writingSection(5))
	memberships := &fakeMembershipRepo{memberships: sectionRoster(1, 3)}
	broadcaster := &recordingBroadcaster{}
	svc := newSubmissionServiceForTest(submissions, sections, memberships, broadcaster)

	result, err := svc.Create(context.Background(), 1, 3, dto.SubmissionCreateRequest{Value: "my essay"})
	require.NoError(t, err)
	require.Equal(t, uint(5), result.AssignmentID, "assignment comes from the section, not the student")
	require.Equal(t, "my essay", result.Value)
	require.Equal(t, []uint{1}, broadcaster.submissionEvents)
}

func TestSubmissionServiceCreateOnlyDuringWriting(t *testing.T) {
	assignmentID := uint(5)
	sections := newFakeSectionRepo(models.Section{ID: 1, Status: models.StatusGradingIndividual, AssignmentID: &assignmentID})
	memberships := &fakeMembershipRepo{memberships: sectionRoster(1, 3)}
	svc := newSubmissionServiceForTest(&fakeSubmissionRepo{}, sections, memberships, nil)

	_, err := svc.Create(context.Background(), 1, 3, dto.SubmissionCreateRequest{Value: "late"})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSubmissionServiceCreateRejectsNonMembers(t *testing.T) {
	sections := newFakeSectionRepo(writingSection(5))
	svc := newSubmissionServiceForTest(&fakeSubmissionRepo{}, sections, &fakeMembershipRepo{}, nil)

	_, err := svc.Create(context.Background(), 1, 3, dto.SubmissionCreateRequest{Value: "essay"})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestSubmissionServiceCreateRejectsDuplicates(t *testing.T) {
	submissions := &fakeSubmissionRepo{submissions: []models.Submission{{ID: 1, AssignmentID: 5, StudentID: 3}}, nextID: 1}
	sections := newFakeSectionRepo(writingSection(5))
	memberships := &fakeMembershipRepo{memberships: sectionRoster(1, 3)}
	svc := newSubmissionServiceForTest(submissions, sections, memberships, nil)

	_, err := svc.Create(context.Background(), 1, 3, dto.SubmissionCreateRequest{Value: "again"})
	require.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmissionServiceNextForIndividualPhaseGuard(t *testing.T) {
	sections := newFakeSectionRepo(writingSection(5))
	svc := newSubmissionServiceForTest(&fakeSubmissionRepo{}, sections, &fakeMembershipRepo{}, nil)

	_, err := svc.NextForIndividual(context.Background(), 1, 3)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSubmissionServiceNextForIndividualExhaustion(t *testing.T) {
	assignmentID := uint(5)
	sections := newFakeSectionRepo(models.Section{ID: 1, Status: models.StatusGradingIndividual, AssignmentID: &assignmentID})
	submissions := &fakeSubmissionRepo{submissions: []models.Submission{{ID: 1, AssignmentID: 5, StudentID: 3}}}
	svc := newSubmissionServiceForTest(submissions, sections, &fakeMembershipRepo{}, nil)

	// The grader's own submission is the only one left.
	_, err := svc.NextForIndividual(context.Background(), 1, 3)
	require.ErrorIs(t, err, ErrNoneRemaining)

	result, err := svc.NextForIndividual(context.Background(), 1, 4)
	require.NoError(t, err)
	require.Equal(t, uint(1), result.ID)
}

func TestSubmissionServiceNextForGroupRequiresGroup(t *testing.T) {
	assignmentID := uint(5)
	sections := newFakeSectionRepo(models.Section{ID: 1, Status: models.StatusGradingGroups, AssignmentID: &assignmentID})
	memberships := &fakeMembershipRepo{memberships: sectionRoster(1, 3)}
	svc := newSubmissionServiceForTest(&fakeSubmissionRepo{}, sections, memberships, nil)

	_, err := svc.NextForGroup(context.Background(), 1, 3)
	require.ErrorIs(t, err, ErrNotGrouped)

	_, err = svc.NextForGroup(context.Background(), 1, 99)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestSubmissionServiceNextForGroupSkipsOwnWork(t *testing.T) {
	assignmentID := uint(5)
	groupID := uint(7)
	sections := newFakeSectionRepo(models.Section{ID: 1, Status: models.StatusGradingGroups, AssignmentID: &assignmentID})
	memberships := &fakeMembershipRepo{memberships: []models.Membership{
		{ID: 1, UserID: 3, SectionID: 1, GroupID: &groupID},
		{ID: 2, UserID: 4, SectionID: 1, GroupID: &groupID},
		{ID: 3, UserID: 5, SectionID: 1},
	}}
	submissions := &fakeSubmissionRepo{submissions: []models.Submission{
		{ID: 1, AssignmentID: 5, StudentID: 3},
		{ID: 2, AssignmentID: 5, StudentID: 4},
		{ID: 3, AssignmentID: 5, StudentID: 5},
	}}
	svc := newSubmissionServiceForTest(submissions, sections, memberships, nil)

	result, err := svc.NextForGroup(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Equal(t, uint(3), result.ID, "group members' own submissions are excluded")
}

func TestSubmissionServiceCountScopedToMembers(t *testing.T) {
	assignmentID := uint(5)
	sections := newFakeSectionRepo(models.Section{ID: 1, Status: models.StatusWriting, AssignmentID: &assignmentID})
	memberships := &fakeMembershipRepo{memberships: sectionRoster(1, 3, 4)}
	submissions := &fakeSubmissionRepo{submissions: []models.Submission{
		{ID: 1, AssignmentID: 5, StudentID: 3},
		{ID: 2, AssignmentID: 5, StudentID: 9},
	}}
	svc := newSubmissionServiceForTest(submissions, sections, memberships, nil)

	count, err := svc.CountBySection(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestSubmissionServiceMine(t *testing.T) {
	assignmentID := uint(5)
	sections := newFakeSectionRepo(models.Section{ID: 1, Status: models.StatusWriting, AssignmentID: &assignmentID})
	submissions := &fakeSubmissionRepo{submissions: []models.Submission{{ID: 1, AssignmentID: 5, StudentID: 3, Value: "essay"}}}
	svc := newSubmissionServiceForTest(submissions, sections, &fakeMembershipRepo{}, nil)

	result, err := svc.Mine(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Equal(t, "essay", result.Value)

	_, err = svc.Mine(context.Background(), 1, 4)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

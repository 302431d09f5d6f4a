package service

import (
	"context"
	"io"
	"sort"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// recordingBroadcaster captures emitted events for assertions.
type recordingBroadcaster struct {
	sectionUpdates   []models.Section
	studentJoins     []uint
	submissionEvents []uint
	scoreEvents      []dto.ScoreResponse
	consensusFlags   []bool
	reportEvents     []int
	linkToggles      []models.Section
}

func (b *recordingBroadcaster) EmitSectionUpdated(section models.Section) {
	b.sectionUpdates = append(b.sectionUpdates, section)
}

func (b *recordingBroadcaster) EmitStudentJoined(sectionID uint, user models.User) {
	b.studentJoins = append(b.studentJoins, sectionID)
}

func (b *recordingBroadcaster) EmitSubmissionReceived(sectionID uint, submission models.Submission) {
	b.submissionEvents = append(b.submissionEvents, sectionID)
}

func (b *recordingBroadcaster) EmitScoreUpdated(groupID uint, score dto.ScoreResponse, consensusReached bool) {
	b.scoreEvents = append(b.scoreEvents, score)
	b.consensusFlags = append(b.consensusFlags, consensusReached)
}

func (b *recordingBroadcaster) EmitReportGenerated(sectionID, reportID uint, version int) {
	b.reportEvents = append(b.reportEvents, version)
}

func (b *recordingBroadcaster) EmitLinkToggled(section models.Section) {
	b.linkToggles = append(b.linkToggles, section)
}

type fakeSectionRepo struct {
	sections map[uint]models.Section
	updates  int
}

func newFakeSectionRepo(sections ...models.Section) *fakeSectionRepo {
	repo := &fakeSectionRepo{sections: make(map[uint]models.Section)}
	for _, section := range sections {
		repo.sections[section.ID] = section
	}
	return repo
}

func (f *fakeSectionRepo) GetByID(ctx context.Context, id uint) (models.Section, error) {
	section, ok := f.sections[id]
	if !ok {
		return models.Section{}, gorm.ErrRecordNotFound
	}
	return section, nil
}

func (f *fakeSectionRepo) GetByJoinableCode(ctx context.Context, code string) (models.Section, error) {
	for _, section := range f.sections {
		if section.JoinableCode == code {
			return section, nil
		}
	}
	return models.Section{}, gorm.ErrRecordNotFound
}

func (f *fakeSectionRepo) ListByTeacher(ctx context.Context, teacherID uint) ([]models.Section, error) {
	var result []models.Section
	for _, section := range f.sections {
		if section.TeacherID == teacherID && !section.Archived {
			result = append(result, section)
		}
	}
	return result, nil
}

func (f *fakeSectionRepo) ListByStudent(ctx context.Context, userID uint) ([]models.Section, error) {
	return nil, nil
}

func (f *fakeSectionRepo) Create(ctx context.Context, section *models.Section) error {
	if section.ID == 0 {
		section.ID = uint(len(f.sections) + 1)
	}
	f.sections[section.ID] = *section
	return nil
}

func (f *fakeSectionRepo) Update(ctx context.Context, section *models.Section) error {
	f.updates++
	f.sections[section.ID] = *section
	return nil
}

func (f *fakeSectionRepo) Delete(ctx context.Context, id uint) error {
	delete(f.sections, id)
	return nil
}

type fakeMembershipRepo struct {
	memberships []models.Membership
}

func (f *fakeMembershipRepo) GetByUserAndSection(ctx context.Context, userID, sectionID uint) (models.Membership, error) {
	for _, membership := range f.memberships {
		if membership.UserID == userID && membership.SectionID == sectionID {
			return membership, nil
		}
	}
	return models.Membership{}, gorm.ErrRecordNotFound
}

func (f *fakeMembershipRepo) ListBySection(ctx context.Context, sectionID uint) ([]models.Membership, error) {
	var result []models.Membership
	for _, membership := range f.memberships {
		if membership.SectionID == sectionID {
			result = append(result, membership)
		}
	}
	return result, nil
}

func (f *fakeMembershipRepo) ListByGroup(ctx context.Context, groupID uint) ([]models.Membership, error) {
	var result []models.Membership
	for _, membership := range f.memberships {
		if membership.GroupID != nil && *membership.GroupID == groupID {
			result = append(result, membership)
		}
	}
	return result, nil
}

func (f *fakeMembershipRepo) Create(ctx context.Context, membership *models.Membership) error {
	if membership.ID == 0 {
		membership.ID = uint(len(f.memberships) + 1)
	}
	f.memberships = append(f.memberships, *membership)
	return nil
}

func (f *fakeMembershipRepo) AssignGroup(ctx context.Context, sectionID uint, userIDs []uint, groupID uint) error {
	assigned := make(map[uint]struct{}, len(userIDs))
	for _, id := range userIDs {
		assigned[id] = struct{}{}
	}
	for i := range f.memberships {
		if f.memberships[i].SectionID != sectionID {
			continue
		}
		if _, ok := assigned[f.memberships[i].UserID]; ok {
			id := groupID
			f.memberships[i].GroupID = &id
		}
	}
	return nil
}

func (f *fakeMembershipRepo) ClearGroups(ctx context.Context, sectionID uint) error {
	for i := range f.memberships {
		if f.memberships[i].SectionID == sectionID {
			f.memberships[i].GroupID = nil
		}
	}
	return nil
}

// groupSizes reports the member count of every group in the section, sorted.
func (f *fakeMembershipRepo) groupSizes(sectionID uint) []int {
	counts := make(map[uint]int)
	for _, membership := range f.memberships {
		if membership.SectionID == sectionID && membership.GroupID != nil {
			counts[*membership.GroupID]++
		}
	}
	sizes := make([]int, 0, len(counts))
	for _, count := range counts {
		sizes = append(sizes, count)
	}
	sort.Ints(sizes)
	return sizes
}

type fakeGroupRepo struct {
	groups []models.Group
	nextID uint
}

func (f *fakeGroupRepo) GetByID(ctx context.Context, id uint) (models.Group, error) {
	for _, group := range f.groups {
		if group.ID == id {
			return group, nil
		}
	}
	return models.Group{}, gorm.ErrRecordNotFound
}

func (f *fakeGroupRepo) ListBySection(ctx context.Context, sectionID uint) ([]models.Group, error) {
	var result []models.Group
	for _, group := range f.groups {
		if group.SectionID == sectionID {
			result = append(result, group)
		}
	}
	return result, nil
}

func (f *fakeGroupRepo) Create(ctx context.Context, group *models.Group) error {
	f.nextID++
	group.ID = f.nextID
	f.groups = append(f.groups, *group)
	return nil
}

func (f *fakeGroupRepo) DeleteBySection(ctx context.Context, sectionID uint) error {
	var remaining []models.Group
	for _, group := range f.groups {
		if group.SectionID != sectionID {
			remaining = append(remaining, group)
		}
	}
	f.groups = remaining
	return nil
}

type fakeAssignmentRepo struct {
	assignments map[uint]models.Assignment
}

func (f *fakeAssignmentRepo) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, ok := f.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	return assignment, nil
}

func (f *fakeAssignmentRepo) List(ctx context.Context) ([]models.Assignment, error) {
	var result []models.Assignment
	for _, assignment := range f.assignments {
		result = append(result, assignment)
	}
	return result, nil
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	if f.assignments == nil {
		f.assignments = make(map[uint]models.Assignment)
	}
	if assignment.ID == 0 {
		assignment.ID = uint(len(f.assignments) + 1)
	}
	f.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	f.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) Delete(ctx context.Context, id uint) error {
	delete(f.assignments, id)
	return nil
}

type fakeUserRepo struct {
	users map[uint]models.User
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uint) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	if f.users == nil {
		f.users = make(map[uint]models.User)
	}
	f.users[user.ID] = *user
	return nil
}

type fakeSubmissionRepo struct {
	submissions []models.Submission
	nextID      uint
	deleted     int64
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	for _, submission := range f.submissions {
		if submission.ID == id {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) GetByStudentAndAssignment(ctx context.Context, studentID, assignmentID uint) (models.Submission, error) {
	for _, submission := range f.submissions {
		if submission.StudentID == studentID && submission.AssignmentID == assignmentID {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) ListByAssignmentAndStudents(ctx context.Context, assignmentID uint, studentIDs []uint) ([]models.Submission, error) {
	members := make(map[uint]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		members[id] = struct{}{}
	}
	var result []models.Submission
	for _, submission := range f.submissions {
		if submission.AssignmentID != assignmentID {
			continue
		}
		if _, ok := members[submission.StudentID]; ok {
			result = append(result, submission)
		}
	}
	return result, nil
}

func (f *fakeSubmissionRepo) CountByAssignmentAndStudents(ctx context.Context, assignmentID uint, studentIDs []uint) (int64, error) {
	submissions, err := f.ListByAssignmentAndStudents(ctx, assignmentID, studentIDs)
	if err != nil {
		return 0, err
	}
	return int64(len(submissions)), nil
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	f.nextID++
	submission.ID = f.nextID
	f.submissions = append(f.submissions, *submission)
	return nil
}

func (f *fakeSubmissionRepo) DeleteByAssignmentAndStudents(ctx context.Context, assignmentID uint, studentIDs []uint) (int64, error) {
	members := make(map[uint]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		members[id] = struct{}{}
	}
	var remaining []models.Submission
	var deleted int64
	for _, submission := range f.submissions {
		if submission.AssignmentID == assignmentID {
			if _, ok := members[submission.StudentID]; ok {
				deleted++
				continue
			}
		}
		remaining = append(remaining, submission)
	}
	f.submissions = remaining
	f.deleted += deleted
	return deleted, nil
}

func (f *fakeSubmissionRepo) NextForIndividual(ctx context.Context, graderID, assignmentID uint) (models.Submission, error) {
	for _, submission := range f.submissions {
		if submission.AssignmentID == assignmentID && submission.StudentID != graderID {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) NextForGroup(ctx context.Context, groupID, assignmentID uint, poolIDs, excludeIDs []uint) (models.Submission, error) {
	pool := make(map[uint]struct{}, len(poolIDs))
	for _, id := range poolIDs {
		pool[id] = struct{}{}
	}
	for _, id := range excludeIDs {
		delete(pool, id)
	}
	for _, submission := range f.submissions {
		if submission.AssignmentID != assignmentID {
			continue
		}
		if _, ok := pool[submission.StudentID]; ok {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

type fakeScoreRepo struct {
	scores  map[uint]models.Score
	nextID  uint
	updates int
}

func newFakeScoreRepo(scores ...models.Score) *fakeScoreRepo {
	repo := &fakeScoreRepo{scores: make(map[uint]models.Score)}
	for _, score := range scores {
		repo.scores[score.ID] = score
		if score.ID > repo.nextID {
			repo.nextID = score.ID
		}
	}
	return repo
}

func (f *fakeScoreRepo) GetByID(ctx context.Context, id uint) (models.Score, error) {
	score, ok := f.scores[id]
	if !ok {
		return models.Score{}, gorm.ErrRecordNotFound
	}
	return score, nil
}

func (f *fakeScoreRepo) GetByGroupAndSubmission(ctx context.Context, groupID, submissionID uint) (models.Score, error) {
	for _, score := range f.scores {
		if score.GroupID != nil && *score.GroupID == groupID && score.SubmissionID == submissionID {
			return score, nil
		}
	}
	return models.Score{}, gorm.ErrRecordNotFound
}

func (f *fakeScoreRepo) Create(ctx context.Context, score *models.Score) error {
	f.nextID++
	score.ID = f.nextID
	f.scores[score.ID] = *score
	return nil
}

func (f *fakeScoreRepo) Update(ctx context.Context, score *models.Score) error {
	f.updates++
	f.scores[score.ID] = *score
	return nil
}

func (f *fakeScoreRepo) ListDoneBySubmission(ctx context.Context, submissionID uint) ([]models.Score, error) {
	var result []models.Score
	for _, score := range f.scores {
		if score.SubmissionID == submissionID && score.Done {
			result = append(result, score)
		}
	}
	return result, nil
}

func (f *fakeScoreRepo) ListDoneByAssignment(ctx context.Context, assignmentID uint) ([]models.Score, error) {
	var result []models.Score
	for _, score := range f.scores {
		if score.AssignmentID == assignmentID && score.Done {
			result = append(result, score)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type fakeRubricRepo struct {
	rubric models.Rubric
}

func (f *fakeRubricRepo) GetByID(ctx context.Context, id uint) (models.Rubric, error) {
	if f.rubric.ID != id {
		return models.Rubric{}, gorm.ErrRecordNotFound
	}
	return f.rubric, nil
}

func (f *fakeRubricRepo) List(ctx context.Context) ([]models.Rubric, error) {
	return []models.Rubric{f.rubric}, nil
}

func (f *fakeRubricRepo) Create(ctx context.Context, rubric *models.Rubric) error {
	f.rubric = *rubric
	return nil
}

func (f *fakeRubricRepo) Update(ctx context.Context, rubric *models.Rubric) error {
	f.rubric = *rubric
	return nil
}

func (f *fakeRubricRepo) Delete(ctx context.Context, id uint) error {
	return nil
}

func (f *fakeRubricRepo) GetCriterion(ctx context.Context, id uint) (models.Criterion, error) {
	for _, criterion := range f.rubric.Criteria {
		if criterion.ID == id {
			return criterion, nil
		}
	}
	return models.Criterion{}, gorm.ErrRecordNotFound
}

func (f *fakeRubricRepo) CreateCriterion(ctx context.Context, criterion *models.Criterion) error {
	f.rubric.Criteria = append(f.rubric.Criteria, *criterion)
	return nil
}

func (f *fakeRubricRepo) UpdateCriterion(ctx context.Context, criterion *models.Criterion) error {
	return nil
}

func (f *fakeRubricRepo) DeleteCriterion(ctx context.Context, id uint) error {
	return nil
}

type fakeReportRepo struct {
	reports []models.Report
	nextID  uint
}

func (f *fakeReportRepo) Create(ctx context.Context, report *models.Report) error {
	f.nextID++
	report.ID = f.nextID
	f.reports = append(f.reports, *report)
	return nil
}

func (f *fakeReportRepo) LatestVersion(ctx context.Context, sectionID, assignmentID uint) (int, error) {
	latest := 0
	for _, report := range f.reports {
		if report.SectionID == sectionID && report.AssignmentID == assignmentID && report.ReportVersion > latest {
			latest = report.ReportVersion
		}
	}
	return latest, nil
}

func (f *fakeReportRepo) Latest(ctx context.Context, sectionID, assignmentID uint) (models.Report, error) {
	var latest *models.Report
	for i := range f.reports {
		report := f.reports[i]
		if report.SectionID != sectionID || report.AssignmentID != assignmentID {
			continue
		}
		if latest == nil || report.ReportVersion > latest.ReportVersion {
			latest = &f.reports[i]
		}
	}
	if latest == nil {
		return models.Report{}, gorm.ErrRecordNotFound
	}
	return *latest, nil
}

func (f *fakeReportRepo) ListBySection(ctx context.Context, sectionID uint) ([]models.Report, error) {
	var result []models.Report
	for _, report := range f.reports {
		if report.SectionID == sectionID {
			result = append(result, report)
		}
	}
	return result, nil
}

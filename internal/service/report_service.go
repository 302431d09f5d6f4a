package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/observability"
	"github.com/classroomlabs/peergrade-api/internal/repository"
)

// defaultReportCacheTTL bounds how long a cached latest report can outlive
// its database row when no TTL is configured.
const defaultReportCacheTTL = 30 * time.Minute

// ErrReportNotFound indicates no report exists for the section yet.
var ErrReportNotFound = errors.New("report not found")

// ReportService computes and serves versioned grade reports.
type ReportService interface {
	Generate(ctx context.Context, sectionID uint) (dto.ReportResponse, error)
	Latest(ctx context.Context, sectionID uint) (dto.ReportResponse, error)
	History(ctx context.Context, sectionID uint) ([]dto.ReportResponse, error)
	StudentResult(ctx context.Context, sectionID, studentID uint) (dto.StudentResultResponse, error)
}

type reportService struct {
	reports     repository.ReportRepository
	scores      repository.ScoreRepository
	sections    repository.SectionRepository
	memberships repository.MembershipRepository
	redis       *redis.Client
	cachePrefix string
	cacheTTL    time.Duration
	broadcaster Broadcaster
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewReportService builds a new report service. redisClient and broadcaster
// may be nil.
func NewReportService(
	reports repository.ReportRepository,
	scores repository.ScoreRepository,
	sections repository.SectionRepository,
	memberships repository.MembershipRepository,
	redisClient *redis.Client,
	cachePrefix string,
	cacheTTL time.Duration,
	broadcaster Broadcaster,
	logger zerolog.Logger,
) ReportService {
	if cacheTTL <= 0 {
		cacheTTL = defaultReportCacheTTL
	}

	return &reportService{
		reports:     reports,
		scores:      scores,
		sections:    sections,
		memberships: memberships,
		redis:       redisClient,
		cachePrefix: cachePrefix,
		cacheTTL:    cacheTTL,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "report_service").Logger(),
		tracer:      otel.Tracer("github.com/classroomlabs/peergrade-api/internal/service/report"),
	}
}

// Generate aggregates every finished score for the section's current
// assignment into a new report version. Reports are append-only: the previous
// versions stay untouched for auditing.
func (s *reportService) Generate(ctx context.Context, sectionID uint) (dto.ReportResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "report.generate", trace.WithAttributes(
		attribute.Int64("section_id", int64(sectionID)),
	))
	defer span.End()

	section, err := s.sections.GetByID(spanCtx, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReportResponse{}, ErrSectionNotFound
		}
		span.RecordError(err)
		return dto.ReportResponse{}, err
	}

	if section.AssignmentID == nil || section.Assignment == nil {
		return dto.ReportResponse{}, ErrMissingAssignment
	}
	rubric := section.Assignment.Rubric

	memberships, err := s.memberships.ListBySection(spanCtx, sectionID)
	if err != nil {
		span.RecordError(err)
		return dto.ReportResponse{}, err
	}

	memberIDs := make(map[uint]struct{}, len(memberships))
	for _, membership := range memberships {
		memberIDs[membership.UserID] = struct{}{}
	}

	scores, err := s.scores.ListDoneByAssignment(spanCtx, *section.AssignmentID)
	if err != nil {
		span.RecordError(err)
		return dto.ReportResponse{}, err
	}

	maxPoints := MaxPoints(rubric)
	sources := make(map[uint]*GradeSources, len(memberships))
	for _, membership := range memberships {
		sources[membership.UserID] = &GradeSources{}
	}

	for _, score := range scores {
		studentID := score.Submission.StudentID
		bucket, ok := sources[studentID]
		if !ok {
			continue
		}

		percentage := CalculatePercentage(Tally(rubric, score), maxPoints)
		switch {
		case score.ScorerID != nil && score.Scorer != nil && score.Scorer.IsStaff():
			// Only the first teacher score counts; a re-grade by a second
			// staff member does not dilute it.
			if len(bucket.Teacher) == 0 {
				bucket.Teacher = append(bucket.Teacher, percentage)
			}
		case score.ScorerID != nil:
			bucket.Students = append(bucket.Students, percentage)
		case score.GroupID != nil:
			bucket.Groups = append(bucket.Groups, percentage)
		}
	}

	version, err := s.reports.LatestVersion(spanCtx, sectionID, *section.AssignmentID)
	if err != nil {
		span.RecordError(err)
		return dto.ReportResponse{}, err
	}
	version++

	data := dto.ReportData{
		Students: make(map[string]dto.StudentGrades, len(sources)),
		Version:  version,
	}
	weighted := make([]float64, 0, len(sources))
	for studentID, bucket := range sources {
		grades := CalculateStudentGrades(*bucket)
		data.Students[strconv.FormatUint(uint64(studentID), 10)] = grades
		if grades.WeightedAverage != nil {
			weighted = append(weighted, *grades.WeightedAverage)
		}
	}
	data.Class = CalculateClassStatistics(weighted)

	blob, err := json.Marshal(data)
	if err != nil {
		span.RecordError(err)
		return dto.ReportResponse{}, err
	}

	report := models.Report{
		SectionID:     sectionID,
		AssignmentID:  *section.AssignmentID,
		RubricID:      rubric.ID,
		ReportVersion: version,
		Report:        datatypes.JSON(blob),
	}
	if err := s.reports.Create(spanCtx, &report); err != nil {
		span.RecordError(err)
		return dto.ReportResponse{}, err
	}

	response := dto.NewReportResponse(report)
	s.cacheLatest(spanCtx, sectionID, response)
	observability.ReportsGenerated().Inc()

	s.logger.Info().
		Uint("section_id", sectionID).
		Int("version", version).
		Int("students", len(data.Students)).
		Msg("report generated")

	if s.broadcaster != nil {
		s.broadcaster.EmitReportGenerated(sectionID, report.ID, version)
	}

	return response, nil
}

func (s *reportService) Latest(ctx context.Context, sectionID uint) (dto.ReportResponse, error) {
	if cached := s.fetchLatest(ctx, sectionID); cached != nil {
		return *cached, nil
	}

	section, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReportResponse{}, ErrSectionNotFound
		}
		return dto.ReportResponse{}, err
	}
	if section.AssignmentID == nil {
		return dto.ReportResponse{}, ErrReportNotFound
	}

	report, err := s.reports.Latest(ctx, sectionID, *section.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReportResponse{}, ErrReportNotFound
		}
		return dto.ReportResponse{}, err
	}

	response := dto.NewReportResponse(report)
	s.cacheLatest(ctx, sectionID, response)

	return response, nil
}

func (s *reportService) History(ctx context.Context, sectionID uint) ([]dto.ReportResponse, error) {
	reports, err := s.reports.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	return dto.NewReportResponseSlice(reports), nil
}

// StudentResult slices the latest report down to one student's grades plus
// the class context they may see.
func (s *reportService) StudentResult(ctx context.Context, sectionID, studentID uint) (dto.StudentResultResponse, error) {
	latest, err := s.Latest(ctx, sectionID)
	if err != nil {
		return dto.StudentResultResponse{}, err
	}

	var data dto.ReportData
	if err := json.Unmarshal(latest.Report, &data); err != nil {
		return dto.StudentResultResponse{}, err
	}

	grades := data.Students[strconv.FormatUint(uint64(studentID), 10)]

	return dto.StudentResultResponse{
		Grades:      grades,
		ClassStats:  data.Class,
		Version:     data.Version,
		GeneratedAt: latest.CreatedAt,
	}, nil
}

func (s *reportService) cacheKey(sectionID uint) string {
	return fmt.Sprintf("%s:report:latest:%d", s.cachePrefix, sectionID)
}

func (s *reportService) cacheLatest(ctx context.Context, sectionID uint, response dto.ReportResponse) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal report for cache")
		return
	}

	if err := s.redis.Set(ctx, s.cacheKey(sectionID), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache report")
	}
}

func (s *reportService) fetchLatest(ctx context.Context, sectionID uint) *dto.ReportResponse {
	if s.redis == nil {
		return nil
	}

	result, err := s.redis.Get(ctx, s.cacheKey(sectionID)).Result()
	if err != nil {
		return nil
	}

	var response dto.ReportResponse
	if err := json.Unmarshal([]byte(result), &response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached report")
		return nil
	}

	return &response
}

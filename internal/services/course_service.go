package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/models"
	"gorm.io/gorm"
)

const (
	courseDateLayout = "2006-01-02"
	maxCoursePage    = 100
)

type CourseService struct {
	db *gorm.DB
}

func NewCourseService(db *gorm.DB) *CourseService {
	return &CourseService{db: db}
}

func (s *CourseService) Create(ctx context.Context, teacherID uint, req *dto.CreateCourseRequest) (*models.Course, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" || description == "" || req.StartDate == "" || req.EndDate == "" {
		return nil, invalid("missing required fields")
	}

	start, err := time.Parse(courseDateLayout, req.StartDate)
	if err != nil {
		return nil, invalid("start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse(courseDateLayout, req.EndDate)
	if err != nil {
		return nil, invalid("end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, invalid("end_date must not be before start_date")
	}

	course := models.Course{
		TeacherID:   teacherID,
		Title:       title,
		Description: description,
		StartDate:   start,
		EndDate:     end,
	}
	if err := s.db.WithContext(ctx).Create(&course).Error; err != nil {
		return nil, internal("failed to create course", err)
	}
	return &course, nil
}

// List returns one page of courses. Teachers only see the courses they own.
func (s *CourseService) List(ctx context.Context, userID uint, role string, page, limit int, search string) (*dto.CourseListResponse, error) {
	if page <= 0 || limit <= 0 {
		return nil, invalid("page and limit must be greater than 0")
	}
	if limit > maxCoursePage {
		limit = maxCoursePage
	}

	filter := courseFilter(userID, role, strings.TrimSpace(search))

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Course{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, internal("failed to fetch courses", err)
	}

	courses := make([]models.Course, 0, limit)
	err := s.db.WithContext(ctx).Scopes(filter).
		Order("id ASC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&courses).Error
	if err != nil {
		return nil, internal("failed to fetch courses", err)
	}

	return &dto.CourseListResponse{
		Courses:      courses,
		CurrentPage:  page,
		TotalPages:   int(math.Ceil(float64(total) / float64(limit))),
		TotalCourses: total,
	}, nil
}

func courseFilter(userID uint, role, search string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if search != "" {
			like := "%" + escapeLike(search) + "%"
			db = db.Where("title ILIKE ? OR description ILIKE ?", like, like)
		}
		if role == models.RoleTeacher {
			db = db.Where("teacher_id = ?", userID)
		}
		return db
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type EnrollmentService struct {
	db *gorm.DB
}

func NewEnrollmentService(db *gorm.DB) *EnrollmentService {
	return &EnrollmentService{db: db}
}

func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID uint) (*models.Enrollment, error) {
	if courseID == 0 {
		return nil, invalid("course_id is required")
	}

	var course models.Course
	if err := s.db.WithContext(ctx).Select("id").First(&course, "id = ?", courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, internal("failed to create enrollment", err)
	}

	enrollment := models.Enrollment{StudentID: studentID, CourseID: courseID}
	if err := s.db.WithContext(ctx).Create(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, internal("failed to create enrollment", err)
	}
	return &enrollment, nil
}

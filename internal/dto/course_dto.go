package dto

import "github.com/ahmetcoskunkizilkaya/enrollment-api/internal/models"

type CreateCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

type CourseResponse struct {
	Message string        `json:"message"`
	Course  models.Course `json:"course"`
}

type CourseListResponse struct {
	Courses      []models.Course `json:"courses"`
	CurrentPage  int             `json:"currentPage"`
	TotalPages   int             `json:"totalPages"`
	TotalCourses int64           `json:"totalCourses"`
}

type EnrollRequest struct {
	CourseID uint `json:"course_id"`
}

type EnrollmentResponse struct {
	Message    string            `json:"message"`
	Enrollment models.Enrollment `json:"enrollment"`
}

package handlers

import (
	"strconv"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/services"
	"github.com/gofiber/fiber/v2"
)

type CourseHandler struct {
	courses     *services.CourseService
	enrollments *services.EnrollmentService
}

func NewCourseHandler(courses *services.CourseService, enrollments *services.EnrollmentService) *CourseHandler {
	return &CourseHandler{courses: courses, enrollments: enrollments}
}

func (h *CourseHandler) Create(c *fiber.Ctx) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return writeError(c, "create_course", services.ErrNoPrincipal)
	}

	var req dto.CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	course, err := h.courses.Create(c.UserContext(), p.ID, &req)
	if err != nil {
		return writeError(c, "create_course", err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.CourseResponse{
		Message: "Course created successfully",
		Course:  *course,
	})
}

func (h *CourseHandler) List(c *fiber.Ctx) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return writeError(c, "list_courses", services.ErrNoPrincipal)
	}

	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Code: "bad_request", Message: "Invalid page or limit parameter",
		})
	}
	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Code: "bad_request", Message: "Invalid page or limit parameter",
		})
	}

	resp, err := h.courses.List(c.UserContext(), p.ID, p.Role, page, limit, c.Query("search"))
	if err != nil {
		return writeError(c, "list_courses", err)
	}
	return c.JSON(resp)
}

func (h *CourseHandler) Enroll(c *fiber.Ctx) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return writeError(c, "enroll", services.ErrNoPrincipal)
	}

	var req dto.EnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	enrollment, err := h.enrollments.Enroll(c.UserContext(), p.ID, req.CourseID)
	if err != nil {
		return writeError(c, "enroll", err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.EnrollmentResponse{
		Message:    "Enrollment created successfully",
		Enrollment: *enrollment,
	})
}

package handlers

import (
	"context"
	"net/http"

	"triaright-platform/http/response"
	"triaright-platform/models"
)

type CatalogService interface {
	CreateCourse(ctx context.Context, c *models.Course) error
	UpdateCourse(ctx context.Context, c *models.Course) error
	GetCourse(ctx context.Context, id int) (*models.Course, error)
	ListCourses(ctx context.Context, f models.CourseFilter) ([]models.Course, error)
	CreatePack(ctx context.Context, p *models.Pack365) error
	ListPacks(ctx context.Context) ([]models.Pack365, error)
	CreateCoupon(ctx context.Context, c *models.Coupon) error
}

type CatalogHandler struct {
	svc CatalogService
}

func NewCatalogHandler(svc CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// ListCourses lists active courses, optionally filtered.
// GET /api/courses?stream=&type=
func (h *CatalogHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	filter := models.CourseFilter{
		Stream: r.URL.Query().Get("stream"),
		Type:   r.URL.Query().Get("type"),
	}
	courses, err := h.svc.ListCourses(r.Context(), filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Courses retrieved", map[string]interface{}{
		"count":   len(courses),
		"courses": courses,
	})
}

// GetCourse GET /api/courses/{id}
func (h *CatalogHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	course, err := h.svc.GetCourse(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Course retrieved", course)
}

// CreateCourse POST /api/courses
func (h *CatalogHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var course models.Course
	if err := response.DecodeJSON(r, &course); err != nil {
		response.Error(w, err)
		return
	}
	course.ID = 0
	if err := h.svc.CreateCourse(r.Context(), &course); err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusCreated, "Course created", course)
}

// UpdateCourse PUT /api/courses/{id}
func (h *CatalogHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var course models.Course
	if err := response.DecodeJSON(r, &course); err != nil {
		response.Error(w, err)
		return
	}
	course.ID = id
	if err := h.svc.UpdateCourse(r.Context(), &course); err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Course updated", course)
}

// ListPacks GET /api/packs
func (h *CatalogHandler) ListPacks(w http.ResponseWriter, r *http.Request) {
	packs, err := h.svc.ListPacks(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Packs retrieved", packs)
}

// CreatePack POST /api/packs
func (h *CatalogHandler) CreatePack(w http.ResponseWriter, r *http.Request) {
	var pack models.Pack365
	if err := response.DecodeJSON(r, &pack); err != nil {
		response.Error(w, err)
		return
	}
	pack.ID = 0
	if err := h.svc.CreatePack(r.Context(), &pack); err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusCreated, "Pack created", pack)
}

// CreateCoupon POST /api/coupons
func (h *CatalogHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var coupon models.Coupon
	if err := response.DecodeJSON(r, &coupon); err != nil {
		response.Error(w, err)
		return
	}
	coupon.ID = 0
	coupon.UsedCount = 0
	if err := h.svc.CreateCoupon(r.Context(), &coupon); err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusCreated, "Coupon created", coupon)
}

package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetable/internal/model"
	"github.com/Freeeeeet/timetable/internal/render"
	"github.com/Freeeeeet/timetable/internal/service"
)

// ScheduleHandler HTTP обработчики расписания
type ScheduleHandler struct {
	service *service.ScheduleService
	logger  *zap.Logger
}

func NewScheduleHandler(scheduleService *service.ScheduleService, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		service: scheduleService,
		logger:  logger,
	}
}

// scheduleRequest тело POST /schedule и POST /schedule/check
// Диапазон пар и max_slot проверяет сервис, здесь только форма
type scheduleRequest struct {
	CourseID  int64   `json:"course_id" binding:"required,gt=0"`
	ClassID   *int64  `json:"class_id" binding:"omitempty,gt=0"`
	TeacherID *int64  `json:"teacher_id" binding:"omitempty,gt=0"`
	RoomID    *int64  `json:"room_id" binding:"omitempty,gt=0"`
	Weekday   int     `json:"weekday" binding:"required,min=1,max=7"`
	StartSlot int     `json:"start_slot" binding:"required,min=1"`
	EndSlot   int     `json:"end_slot" binding:"required,min=1"`
	Location  *string `json:"location" binding:"omitempty,max=255"`
}

func (r scheduleRequest) toEntry() *model.ScheduleEntry {
	return &model.ScheduleEntry{
		CourseID:  r.CourseID,
		ClassID:   r.ClassID,
		TeacherID: r.TeacherID,
		RoomID:    r.RoomID,
		Weekday:   r.Weekday,
		StartSlot: r.StartSlot,
		EndSlot:   r.EndSlot,
		Location:  r.Location,
	}
}

// Create POST /schedule
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	entry, err := h.service.Create(c.Request.Context(), req.toEntry())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Update PUT /schedule/:id, частичное обновление
func (h *ScheduleHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var changes model.ScheduleChanges
	if err := c.ShouldBindJSON(&changes); err != nil {
		respondBindError(c, err)
		return
	}

	entry, err := h.service.Update(c.Request.Context(), id, changes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Delete DELETE /schedule/:id
func (h *ScheduleHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Get GET /schedule/:id
func (h *ScheduleHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	entry, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// List GET /schedule?class_id=&teacher_id=&room_id=
func (h *ScheduleHandler) List(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	entries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*model.ScheduleEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// Check POST /schedule/check?exclude_id=, ничего не сохраняет
func (h *ScheduleHandler) Check(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var excludeID int64
	if raw := c.Query("exclude_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid exclude_id", "error": "exclude_id must be a positive integer"})
			return
		}
		excludeID = id
	}

	conflicts, err := h.service.Check(c.Request.Context(), req.toEntry(), excludeID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": toConflictDTOs(conflicts)})
}

// Image GET /schedule/image, недельная сетка в PNG
func (h *ScheduleHandler) Image(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	entries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	data, err := render.GenerateTimetableImage(filterTitle(filter), entries, h.service.MaxSlot())
	if err != nil {
		h.logger.Error("Failed to render timetable", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to render timetable"})
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

// Audit GET /schedule/audit
func (h *ScheduleHandler) Audit(c *gin.Context) {
	violations, err := h.service.Audit(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"violations": toViolationDTOs(violations)})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid schedule entry id", "error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func parseFilter(c *gin.Context) (model.ScheduleFilter, bool) {
	var filter model.ScheduleFilter
	for name, dst := range map[string]**int64{
		"class_id":   &filter.ClassID,
		"teacher_id": &filter.TeacherID,
		"room_id":    &filter.RoomID,
	} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid filter", "error": fmt.Sprintf("%s must be an integer", name)})
			return filter, false
		}
		*dst = &id
	}
	return filter, true
}

func filterTitle(filter model.ScheduleFilter) string {
	var parts []string
	if filter.ClassID != nil {
		parts = append(parts, "class "+strconv.FormatInt(*filter.ClassID, 10))
	}
	if filter.TeacherID != nil {
		parts = append(parts, "teacher "+strconv.FormatInt(*filter.TeacherID, 10))
	}
	if filter.RoomID != nil {
		parts = append(parts, "room "+strconv.FormatInt(*filter.RoomID, 10))
	}
	if len(parts) == 0 {
		return "Timetable"
	}
	return "Timetable: " + strings.Join(parts, ", ")
}

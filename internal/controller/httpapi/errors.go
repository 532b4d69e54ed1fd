package httpapi

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetable/internal/model"
	"github.com/Freeeeeet/timetable/internal/service"
	"github.com/Freeeeeet/timetable/internal/timetable"
)

// conflictDTO конфликтующая запись в ответе API
type conflictDTO struct {
	ID       int64    `json:"id"`
	Course   int64    `json:"course"`
	Class    *int64   `json:"class"`
	Teacher  *int64   `json:"teacher"`
	Room     *int64   `json:"room"`
	Weekday  int      `json:"weekday"`
	Slot     string   `json:"slot"`
	Location *string  `json:"location"`
	Shared   []string `json:"shared"`
}

type violationDTO struct {
	First  int64    `json:"first_id"`
	Second int64    `json:"second_id"`
	Shared []string `json:"shared"`
}

func toConflictDTO(e *model.ScheduleEntry, shared []timetable.ResourceKey) conflictDTO {
	return conflictDTO{
		ID:       e.ID,
		Course:   e.CourseID,
		Class:    e.ClassID,
		Teacher:  e.TeacherID,
		Room:     e.RoomID,
		Weekday:  e.Weekday,
		Slot:     e.SlotLabel(),
		Location: e.Location,
		Shared:   keyLabels(shared),
	}
}

func toConflictDTOs(conflicts []timetable.Conflict) []conflictDTO {
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, toConflictDTO(c.Entry, c.Shared))
	}
	return out
}

func toViolationDTOs(violations []timetable.Violation) []violationDTO {
	out := make([]violationDTO, 0, len(violations))
	for _, v := range violations {
		out = append(out, violationDTO{First: v.First.ID, Second: v.Second.ID, Shared: keyLabels(v.Shared)})
	}
	return out
}

func keyLabels(keys []timetable.ResourceKey) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}

// respondError переводит ошибку сервиса в HTTP ответ
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var conflictErr *service.ConflictError
	switch {
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"message":   "Schedule conflict",
			"conflicts": toConflictDTOs(conflictErr.Conflicts),
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Schedule entry not found"})
	case errors.Is(err, service.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"message": "Schedule entry is being modified, retry the request"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid schedule entry", "error": err.Error()})
	case errors.Is(err, service.ErrStorage):
		logger.Error("Storage failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Storage error"})
	default:
		logger.Error("Unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
	}
}

// respondBindError ошибки разбора и валидации тела запроса
func respondBindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body", "error": err.Error()})
		return
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"message": "Invalid request body",
		"error":   ve.Error(),
		"fields":  fields,
	})
}

var registerTagNameOnce sync.Once

// useJSONFieldNames чтобы в ошибках валидации были имена из JSON, а не из Go
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

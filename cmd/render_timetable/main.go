package main

import (
	"fmt"
	"os"

	"github.com/Freeeeeet/timetable/internal/model"
	"github.com/Freeeeeet/timetable/internal/render"
)

func main() {
	output := "timetable.png"
	if len(os.Args) > 1 {
		output = os.Args[1]
	}

	// Тестовая неделя: учитель 5 ведёт три курса, в среду одно пересечение по аудитории
	entries := []*model.ScheduleEntry{
		{ID: 1, CourseID: 1, ClassID: int64Ptr(7), TeacherID: int64Ptr(5), RoomID: int64Ptr(12), Weekday: 1, StartSlot: 1, EndSlot: 2},
		{ID: 2, CourseID: 2, ClassID: int64Ptr(8), TeacherID: int64Ptr(5), RoomID: int64Ptr(12), Weekday: 1, StartSlot: 4, EndSlot: 4},
		{ID: 3, CourseID: 3, ClassID: int64Ptr(7), TeacherID: int64Ptr(6), RoomID: int64Ptr(14), Weekday: 2, StartSlot: 2, EndSlot: 3},
		{ID: 4, CourseID: 1, ClassID: int64Ptr(7), TeacherID: int64Ptr(5), RoomID: int64Ptr(12), Weekday: 3, StartSlot: 2, EndSlot: 3},
		{ID: 5, CourseID: 4, ClassID: int64Ptr(9), TeacherID: int64Ptr(6), RoomID: int64Ptr(12), Weekday: 3, StartSlot: 3, EndSlot: 4},
		{ID: 6, CourseID: 5, ClassID: int64Ptr(8), Weekday: 5, StartSlot: 5, EndSlot: 6, Location: strPtr("Sports hall")},
		{ID: 7, CourseID: 2, ClassID: int64Ptr(9), TeacherID: int64Ptr(5), Weekday: 6, StartSlot: 1, EndSlot: 1, Location: strPtr("Lab A")},
	}

	imageData, err := render.GenerateTimetableImage("Sample week", entries, 8)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка генерации изображения: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(output, imageData, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка сохранения файла: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Изображение сохранено в %s (%d байт)\n", output, len(imageData))
}

func int64Ptr(i int64) *int64 {
	return &i
}

func strPtr(s string) *string {
	return &s
}

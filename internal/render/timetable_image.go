package render

import (
	"bytes"
	"image/color"
	"strconv"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/Freeeeeet/timetable/internal/model"
	"github.com/Freeeeeet/timetable/internal/timetable"
)

// Константы размеров и отступов
const (
	imageWidth       = 1400
	headerHeight     = 70
	dayHeaderHeight  = 30
	leftLabelsWidth  = 60
	dayPaddingX      = 6
	rowHeight        = 48.0
	slotBorderRadius = 6.0
	shadowOffset     = 3.0
	totalDaysInWeek  = 7
	minRows          = 8
	maxLabelRunes    = 22
)

// Цветовая схема
var (
	bgColor         = color.RGBA{245, 246, 248, 255}
	textColor       = color.RGBA{80, 85, 90, 220}
	slotLabelColor  = color.RGBA{110, 115, 120, 200}
	rowLineColor    = color.NRGBA{150, 150, 150, 255}
	evenDayColor    = color.NRGBA{240, 240, 240, 255}
	oddDayColor     = color.NRGBA{220, 220, 220, 255}
	entryTextColor  = color.RGBA{20, 24, 28, 230}
	entryShadowColr = color.RGBA{0, 0, 0, 20}
	conflictColor   = color.RGBA{255, 80, 80, 255}

	// палитра занятий, цвет выбирается по course_id
	coursePalette = []color.RGBA{
		{133, 193, 85, 220},
		{255, 182, 193, 255},
		{135, 181, 235, 230},
		{250, 204, 110, 230},
		{186, 160, 230, 230},
		{120, 205, 195, 230},
	}
)

// GenerateTimetableImage рисует недельную сетку: столбцы дни недели, строки пары
// Пересекающиеся занятия в одном дне выводятся рядом и обводятся красным
func GenerateTimetableImage(title string, entries []*model.ScheduleEntry, maxSlot int) ([]byte, error) {
	rows := calculateRows(entries, maxSlot)
	imageHeight := headerHeight + dayHeaderHeight + int(float64(rows)*rowHeight) + 10
	dayWidth := (imageWidth - leftLabelsWidth - 10) / totalDaysInWeek

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	drawHeader(dc, title)
	drawSlotLabels(dc, rows)

	byDay := groupByWeekday(entries)
	for dayIndex := 0; dayIndex < totalDaysInWeek; dayIndex++ {
		x := float64(leftLabelsWidth + dayIndex*dayWidth)
		weekday := timetable.Weekday(dayIndex + 1)

		drawDayColumn(dc, weekday, x, dayWidth, rows)
		drawEntriesForDay(dc, byDay[weekday], x, dayWidth)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// calculateRows: не меньше minRows, не меньше maxSlot и последней занятой пары
func calculateRows(entries []*model.ScheduleEntry, maxSlot int) int {
	rows := minRows
	if maxSlot > rows {
		rows = maxSlot
	}
	for _, e := range entries {
		if e.EndSlot > rows {
			rows = e.EndSlot
		}
	}
	return rows
}

func groupByWeekday(entries []*model.ScheduleEntry) map[timetable.Weekday][]*model.ScheduleEntry {
	byDay := make(map[timetable.Weekday][]*model.ScheduleEntry)
	for _, e := range entries {
		day := timetable.Weekday(e.Weekday)
		if !day.Valid() {
			continue
		}
		byDay[day] = append(byDay[day], e)
	}
	for day := range byDay {
		timetable.SortChronologically(byDay[day])
	}
	return byDay
}

func drawHeader(dc *gg.Context, title string) {
	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, float64(imageWidth)/2, float64(headerHeight)/2, 0.5, 0.5)
}

func drawSlotLabels(dc *gg.Context, rows int) {
	dc.SetColor(slotLabelColor)
	top := float64(headerHeight + dayHeaderHeight)
	for slot := 1; slot <= rows; slot++ {
		y := top + (float64(slot)-0.5)*rowHeight
		dc.DrawStringAnchored(strconv.Itoa(slot), float64(leftLabelsWidth)-12, y, 1, 0.5)
	}
}

func drawDayColumn(dc *gg.Context, weekday timetable.Weekday, x float64, dayWidth, rows int) {
	top := float64(headerHeight)
	height := float64(dayHeaderHeight) + float64(rows)*rowHeight

	if int(weekday)%2 == 1 {
		dc.SetColor(evenDayColor)
	} else {
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, top, float64(dayWidth), height)
	dc.Fill()

	dc.SetColor(textColor)
	dc.DrawStringAnchored(weekday.String(), x+float64(dayWidth)/2, top+float64(dayHeaderHeight)/2, 0.5, 0.5)

	dc.SetLineWidth(0.3)
	dc.SetColor(rowLineColor)
	for row := 0; row <= rows; row++ {
		y := top + float64(dayHeaderHeight) + float64(row)*rowHeight
		dc.DrawLine(x, y, x+float64(dayWidth), y)
		dc.Stroke()
	}
}

// drawEntriesForDay раскладывает занятия по дорожкам, чтобы пересечения не перекрывали друг друга
func drawEntriesForDay(dc *gg.Context, entries []*model.ScheduleEntry, x float64, dayWidth int) {
	if len(entries) == 0 {
		return
	}

	lanes := assignLanes(entries)
	laneCount := 1
	for _, lane := range lanes {
		if lane+1 > laneCount {
			laneCount = lane + 1
		}
	}

	conflicting := conflictingIDs(entries)
	laneWidth := (float64(dayWidth) - float64(dayPaddingX*2)) / float64(laneCount)
	top := float64(headerHeight + dayHeaderHeight)

	for i, e := range entries {
		ex := x + float64(dayPaddingX) + float64(lanes[i])*laneWidth
		ey := top + float64(e.StartSlot-1)*rowHeight + 2
		h := float64(e.EndSlot-e.StartSlot+1)*rowHeight - 4
		w := laneWidth - 2

		fill := coursePalette[int(uint64(e.CourseID)%uint64(len(coursePalette)))]

		dc.SetColor(entryShadowColr)
		dc.DrawRoundedRectangle(ex+shadowOffset, ey+shadowOffset, w, h, slotBorderRadius)
		dc.Fill()

		dc.SetColor(fill)
		dc.DrawRoundedRectangle(ex, ey, w, h, slotBorderRadius)
		dc.Fill()

		if conflicting[e.ID] {
			dc.SetColor(conflictColor)
			dc.SetLineWidth(3)
		} else {
			dc.SetColor(darkenColor(fill, 0.8))
			dc.SetLineWidth(1)
		}
		dc.DrawRoundedRectangle(ex, ey, w, h, slotBorderRadius)
		dc.Stroke()

		dc.SetColor(entryTextColor)
		lineY := ey + 14
		for _, line := range entryLines(e) {
			if lineY > ey+h-4 {
				break
			}
			dc.DrawString(truncate(line, maxLabelRunes), ex+6, lineY)
			lineY += 14
		}
	}
}

// assignLanes жадно назначает каждой записи первую свободную дорожку
// entries должны быть отсортированы по start_slot
func assignLanes(entries []*model.ScheduleEntry) []int {
	lanes := make([]int, len(entries))
	var laneEnds []int

	for i, e := range entries {
		placed := false
		for lane, end := range laneEnds {
			if end < e.StartSlot {
				lanes[i] = lane
				laneEnds[lane] = e.EndSlot
				placed = true
				break
			}
		}
		if !placed {
			lanes[i] = len(laneEnds)
			laneEnds = append(laneEnds, e.EndSlot)
		}
	}
	return lanes
}

func conflictingIDs(entries []*model.ScheduleEntry) map[int64]bool {
	ids := make(map[int64]bool)
	for _, v := range timetable.FindViolations(entries) {
		ids[v.First.ID] = true
		ids[v.Second.ID] = true
	}
	return ids
}

func entryLines(e *model.ScheduleEntry) []string {
	lines := []string{"#" + strconv.FormatInt(e.ID, 10) + " course " + strconv.FormatInt(e.CourseID, 10)}
	if e.TeacherID != nil {
		lines = append(lines, "teacher "+strconv.FormatInt(*e.TeacherID, 10))
	}
	if e.ClassID != nil {
		lines = append(lines, "class "+strconv.FormatInt(*e.ClassID, 10))
	}
	if e.RoomID != nil {
		lines = append(lines, "room "+strconv.FormatInt(*e.RoomID, 10))
	}
	if e.Location != nil && *e.Location != "" {
		lines = append(lines, *e.Location)
	}
	return lines
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// darkenColor затемняет цвет на указанный множитель
func darkenColor(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SlotGenerator разворачивает недельные шаблоны занятий в конкретные слоты
type SlotGenerator struct {
	store  repository.Store
	logger *zap.Logger
	opts   options
}

func NewSlotGenerator(store repository.Store, logger *zap.Logger, opts ...Option) *SlotGenerator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SlotGenerator{store: store, logger: logger, opts: o}
}

type slotKey struct {
	start        int64
	instructorID int64
	hasInstr     bool
}

func keyOf(start time.Time, instructorID *int64) slotKey {
	k := slotKey{start: start.UnixNano()}
	if instructorID != nil {
		k.instructorID = *instructorID
		k.hasInstr = true
	}
	return k
}

// GenerateWeeklySlots создаёт слоты на неделю [weekStart, weekStart+7d) по
// всем активным шаблонам. Уже существующие слоты (то же начало и тот же
// инструктор) пропускаются. Возвращает только созданные слоты.
func (g *SlotGenerator) GenerateWeeklySlots(ctx context.Context, weekStart time.Time) ([]*model.Slot, error) {
	if weekStart.IsZero() {
		return nil, fmt.Errorf("week start is required: %w", ErrInvalid)
	}

	day0 := startOfDay(weekStart, g.opts.location)

	ctx, span := tracer.Start(ctx, "slots.generate_weekly")
	defer span.End()
	span.SetAttributes(attribute.String("week_start", day0.Format(time.DateOnly)))

	var created []*model.Slot
	err := g.store.RunInTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		created, err = g.generateInTx(ctx, repos, day0)
		return err
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	g.opts.metrics.AddSlotsGenerated(len(created))
	span.SetAttributes(attribute.Int("slots_created", len(created)))

	g.logger.Info("Generated weekly slots",
		zap.String("week_start", day0.Format(time.DateOnly)),
		zap.Int("slots_created", len(created)),
	)

	return created, nil
}

func (g *SlotGenerator) generateInTx(ctx context.Context, repos repository.Repositories, day0 time.Time) ([]*model.Slot, error) {
	templates, err := repos.Templates.GetAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active templates: %w", err)
	}

	lessonTypes := make(map[int64]*model.LessonType)
	seen := make(map[slotKey]struct{})
	var slots []*model.Slot

	for _, tpl := range templates {
		lessonType, ok := lessonTypes[tpl.LessonTypeID]
		if !ok {
			lessonType, err = repos.LessonTypes.GetByID(ctx, tpl.LessonTypeID)
			if err != nil {
				return nil, fmt.Errorf("get lesson type: %w", err)
			}
			lessonTypes[tpl.LessonTypeID] = lessonType
		}

		slot, err := slotFromTemplate(tpl, lessonType, day0)
		if err != nil {
			return nil, err
		}

		key := keyOf(slot.StartTime, slot.InstructorID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		exists, err := repos.Slots.SlotExists(ctx, slot.StartTime, slot.InstructorID)
		if err != nil {
			return nil, fmt.Errorf("check slot exists: %w", err)
		}
		if exists {
			g.logger.Debug("Slot already exists, skipping",
				zap.Int64("template_id", tpl.ID),
				zap.Time("start_time", slot.StartTime),
			)
			continue
		}

		slots = append(slots, slot)
	}

	if err := repos.Slots.CreateBatch(ctx, slots); err != nil {
		return nil, fmt.Errorf("create slots: %w", err)
	}

	return slots, nil
}

func slotFromTemplate(tpl *model.LessonBlockTemplate, lessonType *model.LessonType, day0 time.Time) (*model.Slot, error) {
	if lessonType == nil {
		return nil, fmt.Errorf("template %d: lesson type %d does not exist: %w", tpl.ID, tpl.LessonTypeID, ErrInvalid)
	}
	if !lessonType.IsActive {
		return nil, fmt.Errorf("template %d: lesson type %d is inactive: %w", tpl.ID, tpl.LessonTypeID, ErrInvalid)
	}
	if lessonType.DurationMinutes <= 0 {
		return nil, fmt.Errorf("template %d: lesson type %d has no duration: %w", tpl.ID, tpl.LessonTypeID, ErrInvalid)
	}
	if tpl.Weekday < 0 || tpl.Weekday > 6 {
		return nil, fmt.Errorf("template %d: weekday %d out of range: %w", tpl.ID, tpl.Weekday, ErrInvalid)
	}
	if tpl.Capacity < 1 {
		return nil, fmt.Errorf("template %d: capacity %d: %w", tpl.ID, tpl.Capacity, ErrInvalid)
	}

	hour, minute, err := model.ParseClock(tpl.StartTime)
	if err != nil {
		return nil, fmt.Errorf("template %d: %v: %w", tpl.ID, err, ErrInvalid)
	}

	offset := (tpl.Weekday - int(day0.Weekday()) + 7) % 7
	date := day0.AddDate(0, 0, offset)
	start := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, day0.Location())

	return &model.Slot{
		LessonTypeID: tpl.LessonTypeID,
		InstructorID: tpl.InstructorID,
		HorseID:      tpl.HorseID,
		StartTime:    start,
		EndTime:      start.Add(lessonType.Duration()),
		Capacity:     tpl.Capacity,
		Status:       model.SlotStatusOpen,
	}, nil
}

// GenerateAhead генерирует слоты на текущую неделю и weeksAhead следующих.
// Неделя начинается с понедельника в часовом поясе школы.
func (g *SlotGenerator) GenerateAhead(ctx context.Context, weeksAhead int) (int, error) {
	week := WeekStart(g.opts.now(), g.opts.location)

	total := 0
	for i := 0; i <= weeksAhead; i++ {
		created, err := g.GenerateWeeklySlots(ctx, week.AddDate(0, 0, 7*i))
		if err != nil {
			return total, fmt.Errorf("generate week %d: %w", i, err)
		}
		total += len(created)
	}

	return total, nil
}

// WeekStart returns Monday 00:00 of the week containing t, in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	day := startOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

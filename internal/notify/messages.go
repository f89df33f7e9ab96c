package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
)

type message struct {
	subject string
	text    string // plain text for email
	html    string // telegram HTML subset
}

func lessonLines(b *model.Booking, loc *time.Location) []string {
	var lines []string
	if b.LessonType != nil {
		lines = append(lines, "Lesson: "+b.LessonType.Name)
	}
	if b.Slot != nil {
		start := b.Slot.StartTime.In(loc)
		end := b.Slot.EndTime.In(loc)
		lines = append(lines,
			"Date: "+FormatDate(start),
			"Time: "+FormatTimeRange(start, end))
	}
	if b.LessonType != nil {
		lines = append(lines, "Duration: "+FormatDuration(b.LessonType.DurationMinutes))
	}
	if b.Instructor != nil {
		lines = append(lines, "Instructor: "+b.Instructor.Name)
	}
	if b.Horse != nil {
		lines = append(lines, "Horse: "+b.Horse.Name)
	}
	return lines
}

func paymentLine(b *model.Booking) string {
	if b.PaymentSource == model.PaymentSourcePackage {
		return "Paid from your lesson package"
	}
	return "Amount due: " + FormatPrice(b.AmountPaidCents)
}

func build(subject, greeting string, lines []string, footer string) message {
	var text, htm strings.Builder

	text.WriteString(greeting + "\n\n")
	htm.WriteString("<b>" + html.EscapeString(subject) + "</b>\n\n")
	for _, l := range lines {
		text.WriteString(l + "\n")
		htm.WriteString(html.EscapeString(l) + "\n")
	}
	if footer != "" {
		text.WriteString("\n" + footer + "\n")
		htm.WriteString("\n" + html.EscapeString(footer) + "\n")
	}

	return message{subject: subject, text: text.String(), html: htm.String()}
}

func confirmedMessage(b *model.Booking, s *model.Student, loc *time.Location) message {
	lines := append(lessonLines(b, loc), paymentLine(b))
	if b.Notes != "" {
		lines = append(lines, "Notes: "+b.Notes)
	}
	return build(
		"Lesson booked",
		fmt.Sprintf("Hi %s, your lesson is booked.", s.FirstName),
		lines,
		"Booking #"+fmt.Sprint(b.ID),
	)
}

func cancelledMessage(b *model.Booking, s *model.Student, loc *time.Location) message {
	lines := lessonLines(b, loc)
	if b.CancellationReason != "" {
		lines = append(lines, "Reason: "+b.CancellationReason)
	}
	footer := ""
	if b.PaymentSource == model.PaymentSourcePackage {
		footer = "The lesson has been returned to your package."
	}
	return build(
		"Lesson cancelled",
		fmt.Sprintf("Hi %s, your lesson has been cancelled.", s.FirstName),
		lines,
		footer,
	)
}

func reminderMessage(b *model.Booking, s *model.Student, loc *time.Location) message {
	return build(
		"Lesson reminder",
		fmt.Sprintf("Hi %s, this is a reminder about your upcoming lesson.", s.FirstName),
		lessonLines(b, loc),
		"See you at the stable!",
	)
}

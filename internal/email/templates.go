package email

import (
	"fmt"
	"strings"
	"time"
)

type Message struct {
	Subject string
	Body    string
}

// FormatDateTimeRange renders a reservation slot for email bodies.
func FormatDateTimeRange(start, end time.Time) (string, string) {
	date := start.Format("Monday, Jan 2, 2006")
	timeRange := fmt.Sprintf("%s - %s %s", start.Format("3:04 PM"), end.Format("3:04 PM"), start.Format("MST"))
	return date, timeRange
}

// BuildReservationDecision builds the email sent to a resident when an
// admin approves or cancels their reservation.
func BuildReservationDecision(facilityType, title string, start, end time.Time, status string) Message {
	date, timeRange := FormatDateTimeRange(start, end)

	var subject, verdict string
	switch status {
	case "approved":
		subject = fmt.Sprintf("%s reservation approved", facilityType)
		verdict = "has been approved"
	case "cancelled":
		subject = fmt.Sprintf("%s reservation cancelled", facilityType)
		verdict = "has been cancelled"
	default:
		subject = fmt.Sprintf("%s reservation updated", facilityType)
		verdict = "is back under review"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\n")
	fmt.Fprintf(&b, "Your reservation %q for the %s %s.\n\n", title, facilityType, verdict)
	fmt.Fprintf(&b, "Date: %s\n", date)
	fmt.Fprintf(&b, "Time: %s\n\n", timeRange)
	fmt.Fprintf(&b, "Site Management\n")

	return Message{Subject: subject, Body: b.String()}
}

// BuildUrgentAnnouncement builds the broadcast email for urgent notices.
func BuildUrgentAnnouncement(title, content string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Urgent notice from site management:\n\n")
	fmt.Fprintf(&b, "%s\n\n%s\n", title, content)

	return Message{
		Subject: fmt.Sprintf("[Urgent] %s", title),
		Body:    b.String(),
	}
}

// BuildPendingReservationReminder builds the daily admin digest listing
// reservation requests still awaiting a decision.
func BuildPendingReservationReminder(count int) Message {
	noun := "requests"
	if count == 1 {
		noun = "request"
	}
	return Message{
		Subject: fmt.Sprintf("%d pending reservation %s awaiting review", count, noun),
		Body: fmt.Sprintf(
			"Hello,\n\nThere are %d reservation %s waiting for approval.\nPlease review them in the admin panel.\n\nSite Management\n",
			count, noun,
		),
	}
}

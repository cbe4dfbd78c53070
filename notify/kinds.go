package notify

import (
	"fmt"
	"time"

	"fichador/timeutil"
)

// Kind enumerates the notification types. Each maps to a fixed template so
// payloads cannot drift between jobs and transports.
type Kind string

const (
	KindMissedEntryShift1 Kind = "missed_entry_shift_1"
	KindMissedEntryShift2 Kind = "missed_entry_shift_2"
	KindOpenRecord        Kind = "open_record"
	KindWeeklySummary     Kind = "weekly_summary"
)

// Message is a rendered notification ready for any gateway.
type Message struct {
	Kind  Kind
	Title string
	Body  string
	URL   string
}

func missedEntryMessage(kind Kind, start string) Message {
	shift := "shift"
	if kind == KindMissedEntryShift2 {
		shift = "second shift"
	}
	return Message{
		Kind:  kind,
		Title: "Missed clock-in",
		Body:  fmt.Sprintf("Your %s was scheduled to start at %s and no clock-in has been recorded yet.", shift, start),
		URL:   "/dashboard",
	}
}

func openRecordMessage(openFor time.Duration) Message {
	return Message{
		Kind:  KindOpenRecord,
		Title: "Open record reminder",
		Body:  fmt.Sprintf("Your session has been open for %s. Remember to clock out.", timeutil.FormatDuration(openFor)),
		URL:   "/dashboard",
	}
}

func weeklySummaryMessage(worked, remaining time.Duration) Message {
	return Message{
		Kind:  KindWeeklySummary,
		Title: "Weekly summary",
		Body: fmt.Sprintf("Total worked so far: %s. Remaining to reach your target: %s.",
			timeutil.FormatDuration(worked), timeutil.FormatDuration(remaining)),
		URL: "/dashboard",
	}
}

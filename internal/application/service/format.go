package service

import (
	"strconv"
	"time"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func boolText(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

package application

import (
	"testing"
	"time"
)

func TestShouldPurge(t *testing.T) {
	scheduler := &Scheduler{purgeDailyAt: "02:30"}
	atWindow := time.Date(2026, 3, 1, 2, 30, 10, 0, time.UTC)

	if !scheduler.shouldPurge(atWindow, time.Time{}) {
		t.Fatal("first tick inside the window should purge")
	}
	if scheduler.shouldPurge(atWindow.Add(20*time.Second), atWindow) {
		t.Fatal("second tick inside the same minute must not purge again")
	}
	if scheduler.shouldPurge(atWindow.Add(time.Hour), atWindow) {
		t.Fatal("outside the window must not purge")
	}
	nextDay := atWindow.Add(24 * time.Hour)
	if !scheduler.shouldPurge(nextDay, atWindow) {
		t.Fatal("same window next day should purge")
	}
}

func TestShouldPurgeInvalidSpec(t *testing.T) {
	scheduler := &Scheduler{purgeDailyAt: "not-a-time"}
	if scheduler.shouldPurge(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Time{}) {
		t.Fatal("unparseable purge time must never fire")
	}
}

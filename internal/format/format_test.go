package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

func TestTime(t *testing.T) {
	cases := map[int64]string{
		0:        "00:00:00",
		999:      "00:00:00",
		3661000:  "01:01:01",
		59999:    "00:00:59",
		90061000: "25:01:01",
		-5:       "00:00:00",
	}
	for in, want := range cases {
		assert.Equal(t, want, Time(in), "input %d", in)
	}
	assert.Equal(t, "00:02:05", Duration(125*time.Second))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Linux", Title("LINUX"))
	assert.Equal(t, "", Title(""))
	assert.Equal(t, "Chrome", Title("chrome"))
	assert.Equal(t, "É", Title("é"))
}

func TestMethod(t *testing.T) {
	assert.Equal(t, "session", Method("/session/abc/url"))
	assert.Equal(t, "", Method(""))
	assert.Equal(t, "", Method("status"))
}

func TestCommandOffset(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first := models.Command{Timestamp: start}
	later := models.Command{Timestamp: start.Add(3*time.Minute + 4*time.Second)}

	off := CommandOffset(later, first)
	assert.Equal(t, 184*time.Second, off)
	assert.Equal(t, "00:03:04", Duration(off))
	assert.Zero(t, CommandOffset(later, models.Command{}))
}

func TestAvailability(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC).UnixMilli()
	assert.Equal(t, "9h:5m:7s - 10h:5m:7s", Availability(created, time.Hour, time.UTC))
}

func TestRemaining(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := created.Add(4 * time.Minute)
	assert.Equal(t, 6*time.Minute, Remaining(created.UnixMilli(), 10*time.Minute, now))
	assert.Zero(t, Remaining(created.UnixMilli(), time.Minute, now))
}

func TestMode(t *testing.T) {
	assert.Equal(t, "Manual", Mode(models.Session{Manual: true}))
	assert.Equal(t, "Auto", Mode(models.Session{}))
}

package replicate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koiibenvenutto/koii-server/internal/notion"
)

func TestBatchOffset_LatestDateLandsOnReference(t *testing.T) {
	ref := day(2024, 3, 10)
	templates := []Template{
		dated("A", day(2024, 1, 1)),
		dated("B", day(2024, 1, 5)),
	}

	offset := BatchOffset(&ref, templates)
	assert.Equal(t, ref, templates[1].Date.Start.Add(offset),
		"the batch's latest date must land exactly on the reference date")
}

func TestBatchOffset_NoDatedTemplates_Zero(t *testing.T) {
	ref := day(2024, 3, 10)
	templates := []Template{{ID: "a", Name: "A"}}

	assert.Equal(t, time.Duration(0), BatchOffset(&ref, templates))
}

func TestBatchOffset_NoReferenceDate_Zero(t *testing.T) {
	templates := []Template{dated("A", day(2024, 1, 1))}

	assert.Equal(t, time.Duration(0), BatchOffset(nil, templates))
}

func TestTranslateDate_RangeDurationPreserved(t *testing.T) {
	src := notion.DateValue{
		Start:  day(2024, 1, 1),
		End:    day(2024, 1, 5),
		HasEnd: true,
		AllDay: true,
	}
	offset := 68 * 24 * time.Hour

	got, warnings := TranslateDate(src, offset)
	require.Empty(t, warnings)
	assert.Equal(t, src.Start.Add(offset), got.Start)
	assert.Equal(t, src.End.Add(offset), got.End)
	assert.Equal(t, src.End.Sub(src.Start), got.End.Sub(got.Start),
		"duration must be preserved exactly")
	assert.True(t, got.AllDay)
}

func TestTranslateDate_InvalidSourceRange_PassedThrough(t *testing.T) {
	src := notion.DateValue{
		Start:  day(2024, 1, 5),
		End:    day(2024, 1, 1), // start >= end
		HasEnd: true,
		AllDay: true,
	}

	got, warnings := TranslateDate(src, 10*24*time.Hour)
	require.Len(t, warnings, 1)
	assert.Equal(t, src, got, "invalid source ranges must pass through untranslated")
}

func TestTranslateDate_EqualEndpoints_PassedThrough(t *testing.T) {
	src := notion.DateValue{
		Start:  day(2024, 1, 5),
		End:    day(2024, 1, 5),
		HasEnd: true,
		AllDay: true,
	}

	got, warnings := TranslateDate(src, time.Hour)
	require.Len(t, warnings, 1)
	assert.Equal(t, src, got)
}

func TestTranslateDate_SingleDate(t *testing.T) {
	src := notion.DateValue{Start: day(2024, 1, 1), AllDay: true}

	got, warnings := TranslateDate(src, 24*time.Hour)
	require.Empty(t, warnings)
	assert.Equal(t, day(2024, 1, 2), got.Start)
	assert.False(t, got.HasEnd)
}

func TestTranslateDate_ZeroOffset_NoOp(t *testing.T) {
	src := notion.DateValue{
		Start:  day(2024, 1, 1),
		End:    day(2024, 1, 3),
		HasEnd: true,
		AllDay: true,
	}

	got, warnings := TranslateDate(src, 0)
	require.Empty(t, warnings)
	assert.Equal(t, src, got)
}

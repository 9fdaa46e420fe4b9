package cache

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/weather-intelligence-service/internal/models"
)

func sampleResult(name string) models.WeatherResult {
	return models.WeatherResult{
		Location: models.Location{Name: name, Country: "United States of America", Lat: 47.61, Lon: -122.33},
		Current: models.CurrentConditions{
			TempC:     12.5,
			Humidity:  70,
			Condition: models.Condition{Text: "Partly cloudy", Code: 1003},
		},
		Forecast: []models.ForecastDay{{Date: "2024-06-01", MaxTempC: 18, MinTempC: 9}},
	}
}

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves them.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Minute)

	val := sampleResult("Seattle")
	if err := c.Set(ctx, "weather:seattle", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "weather:seattle")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Location.Name != val.Location.Name || got.Current.TempC != val.Current.TempC {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Minute)

	_, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies that expired entries are never returned.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewInMemoryCacheWithClock(time.Minute, clock.Now)

	if err := c.Set(ctx, "weather:seattle", sampleResult("Seattle"), 900*time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	clock.Advance(901 * time.Second)

	_, ok, err := c.Get(ctx, "weather:seattle")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expired access", c.Len())
	}
}

func TestInMemoryCache_DeleteAndCleanup(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewInMemoryCacheWithClock(time.Minute, clock.Now)

	_ = c.Set(ctx, "a", sampleResult("A"), time.Second)
	_ = c.Set(ctx, "b", sampleResult("B"), time.Hour)
	_ = c.Set(ctx, "c", sampleResult("C"), time.Hour)

	if err := c.Delete(ctx, "c"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	clock.Advance(2 * time.Second)
	if removed := c.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0] != "b" {
		t.Errorf("Keys() = %v, want [b]", keys)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

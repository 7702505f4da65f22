package provider

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/lbrouwer/surfcast/internal/models"
)

type weatherResponse struct {
	Hourly struct {
		Time          []int64    `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		WindDirection []*float64 `json:"wind_direction_10m"`
		WindGusts     []*float64 `json:"wind_gusts_10m"`
	} `json:"hourly"`
	Daily struct {
		Time             []int64    `json:"time"`
		Sunrise          []int64    `json:"sunrise"`
		Sunset           []int64    `json:"sunset"`
		DaylightDuration []*float64 `json:"daylight_duration"`
		TempMin          []*float64 `json:"temperature_2m_min"`
		TempMax          []*float64 `json:"temperature_2m_max"`
	} `json:"daily"`
}

// FetchWeather returns the hourly and daily atmospheric forecast for a
// location. Rows come back sorted ascending, duplicate-free, with missing
// values as NaN sentinels.
func (c *Client) FetchWeather(ctx context.Context, lat, lon float64) ([]models.HourlyWeather, []models.DailyWeather, error) {
	q := url.Values{}
	q.Set("hourly", "temperature_2m,wind_speed_10m,wind_direction_10m,wind_gusts_10m")
	q.Set("daily", "sunset,sunrise,daylight_duration,temperature_2m_min,temperature_2m_max")
	q.Set("wind_speed_unit", "kn")
	q.Set("models", "gfs_seamless")

	resp, err := fetchAndDecode[weatherResponse](ctx, c, "weather", c.buildURL(c.weatherURL, lat, lon, q))
	if err != nil {
		return nil, nil, err
	}

	hourly, err := parseHourlyWeather(resp)
	if err != nil {
		return nil, nil, err
	}
	daily, err := parseDailyWeather(resp)
	if err != nil {
		return nil, nil, err
	}
	return hourly, daily, nil
}

func parseHourlyWeather(resp *weatherResponse) ([]models.HourlyWeather, error) {
	h := resp.Hourly
	n := len(h.Time)
	if len(h.Temperature) != n || len(h.WindSpeed) != n || len(h.WindDirection) != n || len(h.WindGusts) != n {
		return nil, fmt.Errorf("weather hourly column lengths differ from time axis (%d)", n)
	}

	rows := make([]models.HourlyWeather, 0, n)
	var prev int64
	for i := 0; i < n; i++ {
		if i > 0 && h.Time[i] <= prev {
			// Duplicate or out-of-order timestamps violate the adapter contract.
			continue
		}
		prev = h.Time[i]
		rows = append(rows, models.HourlyWeather{
			Timestamp:     time.Unix(h.Time[i], 0).UTC(),
			Temperature:   deref(h.Temperature[i]),
			WindSpeed:     deref(h.WindSpeed[i]),
			WindDirection: deref(h.WindDirection[i]),
			WindGusts:     deref(h.WindGusts[i]),
		})
	}
	return rows, nil
}

func parseDailyWeather(resp *weatherResponse) ([]models.DailyWeather, error) {
	d := resp.Daily
	n := len(d.Time)
	if len(d.Sunrise) != n || len(d.Sunset) != n || len(d.DaylightDuration) != n || len(d.TempMin) != n || len(d.TempMax) != n {
		return nil, fmt.Errorf("weather daily column lengths differ from time axis (%d)", n)
	}

	rows := make([]models.DailyWeather, 0, n)
	for i := 0; i < n; i++ {
		day := time.Unix(d.Time[i], 0).UTC()
		rows = append(rows, models.DailyWeather{
			Date:             time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Sunrise:          d.Sunrise[i],
			Sunset:           d.Sunset[i],
			DaylightDuration: deref(d.DaylightDuration[i]),
			TempMin:          deref(d.TempMin[i]),
			TempMax:          deref(d.TempMax[i]),
		})
	}
	return rows, nil
}

// deref maps a provider null to the NaN missing-value sentinel.
func deref(f *float64) float64 {
	if f == nil {
		return math.NaN()
	}
	return *f
}

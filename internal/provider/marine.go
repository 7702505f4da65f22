package provider

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/lbrouwer/surfcast/internal/models"
)

type marineResponse struct {
	Hourly struct {
		Time          []int64    `json:"time"`
		WaveHeight    []*float64 `json:"wave_height"`
		WaveDirection []*float64 `json:"wave_direction"`
		WavePeriod    []*float64 `json:"wave_period"`
		SeaLevel      []*float64 `json:"sea_level_height_msl"`
	} `json:"hourly"`
}

// FetchMarine returns the hourly marine forecast for a location. Sea level
// is absent for many grid points; absence is carried through, never
// substituted.
func (c *Client) FetchMarine(ctx context.Context, lat, lon float64) ([]models.HourlyMarine, error) {
	q := url.Values{}
	q.Set("hourly", "wave_height,wave_direction,wave_period,sea_level_height_msl")
	q.Set("models", "ncep_gfswave025")

	resp, err := fetchAndDecode[marineResponse](ctx, c, "marine", c.buildURL(c.marineURL, lat, lon, q))
	if err != nil {
		return nil, err
	}
	return parseHourlyMarine(resp)
}

func parseHourlyMarine(resp *marineResponse) ([]models.HourlyMarine, error) {
	h := resp.Hourly
	n := len(h.Time)
	if len(h.WaveHeight) != n || len(h.WaveDirection) != n || len(h.WavePeriod) != n {
		return nil, fmt.Errorf("marine hourly column lengths differ from time axis (%d)", n)
	}

	rows := make([]models.HourlyMarine, 0, n)
	var prev int64
	for i := 0; i < n; i++ {
		if i > 0 && h.Time[i] <= prev {
			continue
		}
		prev = h.Time[i]
		row := models.HourlyMarine{
			Timestamp:     time.Unix(h.Time[i], 0).UTC(),
			WaveHeight:    deref(h.WaveHeight[i]),
			WaveDirection: deref(h.WaveDirection[i]),
			WavePeriod:    deref(h.WavePeriod[i]),
		}
		if i < len(h.SeaLevel) && h.SeaLevel[i] != nil {
			row.SeaLevel = sql.NullFloat64{Float64: *h.SeaLevel[i], Valid: true}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

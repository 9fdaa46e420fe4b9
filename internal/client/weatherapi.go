package client

import (
	"encoding/json"
	"fmt"

	"github.com/kjstillabower/weather-intelligence-service/internal/models"
)

// weatherapi.com payloads. is_day arrives as 0/1.

type apiCondition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

func (c apiCondition) model() models.Condition {
	return models.Condition{Text: c.Text, Icon: c.Icon, Code: c.Code}
}

type apiLocation struct {
	Name      string  `json:"name"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	TzID      string  `json:"tz_id"`
	Localtime string  `json:"localtime"`
}

type apiAirQuality struct {
	CO           float64 `json:"co"`
	NO2          float64 `json:"no2"`
	O3           float64 `json:"o3"`
	SO2          float64 `json:"so2"`
	PM25         float64 `json:"pm2_5"`
	PM10         float64 `json:"pm10"`
	USEPAIndex   int     `json:"us-epa-index"`
	GBDefraIndex int     `json:"gb-defra-index"`
}

type apiCurrent struct {
	LastUpdatedEpoch int64          `json:"last_updated_epoch"`
	TempC            float64        `json:"temp_c"`
	TempF            float64        `json:"temp_f"`
	IsDay            int            `json:"is_day"`
	Condition        apiCondition   `json:"condition"`
	WindKph          float64        `json:"wind_kph"`
	WindDegree       int            `json:"wind_degree"`
	WindDir          string         `json:"wind_dir"`
	PressureMb       float64        `json:"pressure_mb"`
	Humidity         float64        `json:"humidity"`
	Cloud            float64        `json:"cloud"`
	FeelsLikeC       float64        `json:"feelslike_c"`
	VisKm            float64        `json:"vis_km"`
	UV               float64        `json:"uv"`
	AirQuality       *apiAirQuality `json:"air_quality"`
}

type currentResponse struct {
	Location *apiLocation `json:"location"`
	Current  *apiCurrent  `json:"current"`
}

type apiForecastHour struct {
	TimeEpoch    int64        `json:"time_epoch"`
	Time         string       `json:"time"`
	TempC        float64      `json:"temp_c"`
	Condition    apiCondition `json:"condition"`
	ChanceOfRain int          `json:"chance_of_rain"`
	WindKph      float64      `json:"wind_kph"`
	IsDay        int          `json:"is_day"`
}

type apiForecastDay struct {
	Date string `json:"date"`
	Day  struct {
		MaxTempC          float64      `json:"maxtemp_c"`
		MinTempC          float64      `json:"mintemp_c"`
		AvgHumidity       float64      `json:"avghumidity"`
		DailyChanceOfRain int          `json:"daily_chance_of_rain"`
		UV                float64      `json:"uv"`
		Condition         apiCondition `json:"condition"`
	} `json:"day"`
	Astro struct {
		Sunrise string `json:"sunrise"`
		Sunset  string `json:"sunset"`
	} `json:"astro"`
	Hour []apiForecastHour `json:"hour"`
}

type forecastResponse struct {
	Forecast *struct {
		ForecastDay []apiForecastDay `json:"forecastday"`
	} `json:"forecast"`
}

type apiSearchResult struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func parseCurrent(body []byte) (models.Location, models.CurrentConditions, error) {
	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Location{}, models.CurrentConditions{}, fmt.Errorf("%w: parse current response: %v", ErrUpstreamFailure, err)
	}
	if resp.Location == nil || resp.Current == nil {
		return models.Location{}, models.CurrentConditions{}, fmt.Errorf("%w: current response missing location or current", ErrUpstreamFailure)
	}
	l, c := resp.Location, resp.Current

	loc := models.Location{
		Name:      l.Name,
		Region:    l.Region,
		Country:   l.Country,
		Lat:       l.Lat,
		Lon:       l.Lon,
		Timezone:  l.TzID,
		Localtime: l.Localtime,
	}
	cur := models.CurrentConditions{
		TempC:            c.TempC,
		TempF:            c.TempF,
		IsDay:            c.IsDay != 0,
		Condition:        c.Condition.model(),
		LastUpdatedEpoch: c.LastUpdatedEpoch,
		WindKph:          c.WindKph,
		WindDegree:       c.WindDegree,
		WindDir:          c.WindDir,
		PressureMb:       c.PressureMb,
		Humidity:         c.Humidity,
		Cloud:            c.Cloud,
		FeelsLikeC:       c.FeelsLikeC,
		UV:               c.UV,
		VisKm:            c.VisKm,
	}
	if aq := c.AirQuality; aq != nil {
		cur.AirQuality = &models.AirQuality{
			CO:           aq.CO,
			NO2:          aq.NO2,
			O3:           aq.O3,
			SO2:          aq.SO2,
			PM25:         aq.PM25,
			PM10:         aq.PM10,
			USEPAIndex:   aq.USEPAIndex,
			GBDefraIndex: aq.GBDefraIndex,
		}
	}
	return loc, cur, nil
}

func parseForecast(body []byte) ([]models.ForecastDay, error) {
	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse forecast response: %v", ErrUpstreamFailure, err)
	}
	if resp.Forecast == nil {
		return nil, fmt.Errorf("%w: forecast response missing forecast", ErrUpstreamFailure)
	}

	days := make([]models.ForecastDay, 0, len(resp.Forecast.ForecastDay))
	for _, d := range resp.Forecast.ForecastDay {
		hours := make([]models.ForecastHour, 0, len(d.Hour))
		for _, h := range d.Hour {
			hours = append(hours, models.ForecastHour{
				TimeEpoch:    h.TimeEpoch,
				Time:         h.Time,
				TempC:        h.TempC,
				Condition:    h.Condition.model(),
				ChanceOfRain: h.ChanceOfRain,
				WindKph:      h.WindKph,
				IsDay:        h.IsDay != 0,
			})
		}
		days = append(days, models.ForecastDay{
			Date:              d.Date,
			MaxTempC:          d.Day.MaxTempC,
			MinTempC:          d.Day.MinTempC,
			Condition:         d.Day.Condition.model(),
			AvgHumidity:       d.Day.AvgHumidity,
			DailyChanceOfRain: d.Day.DailyChanceOfRain,
			UV:                d.Day.UV,
			Sunrise:           d.Astro.Sunrise,
			Sunset:            d.Astro.Sunset,
			Hours:             hours,
		})
	}
	return days, nil
}

func parseSearch(body []byte) ([]models.SearchResult, error) {
	var items []apiSearchResult
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: parse search response: %v", ErrUpstreamFailure, err)
	}
	out := make([]models.SearchResult, 0, len(items))
	for _, it := range items {
		out = append(out, models.SearchResult{
			ID:      it.ID,
			Name:    it.Name,
			Region:  it.Region,
			Country: it.Country,
			Lat:     it.Lat,
			Lon:     it.Lon,
		})
	}
	return out, nil
}

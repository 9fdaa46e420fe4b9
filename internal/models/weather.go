package models

import "time"

// WeatherResult is the unified payload returned for a location: metadata, current
// conditions, a per-day forecast and the intelligence computed when it was fetched.
type WeatherResult struct {
	Location     Location          `json:"location"`
	Current      CurrentConditions `json:"current"`
	Forecast     []ForecastDay     `json:"forecast"`
	Intelligence Intelligence      `json:"intelligence"`
	CachedAt     time.Time         `json:"cached_at"`
}

type Location struct {
	Name      string  `json:"name"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timezone  string  `json:"timezone"`
	Localtime string  `json:"localtime"`
}

type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

type AirQuality struct {
	CO           float64 `json:"co"`
	NO2          float64 `json:"no2"`
	O3           float64 `json:"o3"`
	SO2          float64 `json:"so2"`
	PM25         float64 `json:"pm2_5"`
	PM10         float64 `json:"pm10"`
	USEPAIndex   int     `json:"us-epa-index"`
	GBDefraIndex int     `json:"gb-defra-index"`
}

type CurrentConditions struct {
	TempC            float64     `json:"temp_c"`
	TempF            float64     `json:"temp_f"`
	IsDay            bool        `json:"is_day"`
	Condition        Condition   `json:"condition"`
	LastUpdatedEpoch int64       `json:"last_updated_epoch,omitempty"`
	WindKph          float64     `json:"wind_kph"`
	WindDegree       int         `json:"wind_degree"`
	WindDir          string      `json:"wind_dir"`
	PressureMb       float64     `json:"pressure_mb"`
	Humidity         float64     `json:"humidity"`
	Cloud            float64     `json:"cloud"`
	FeelsLikeC       float64     `json:"feelslike_c"`
	UV               float64     `json:"uv"`
	VisKm            float64     `json:"vis_km"`
	AirQuality       *AirQuality `json:"air_quality,omitempty"`
}

type ForecastHour struct {
	TimeEpoch    int64     `json:"time_epoch"`
	Time         string    `json:"time"`
	TempC        float64   `json:"temp_c"`
	Condition    Condition `json:"condition"`
	ChanceOfRain int       `json:"chance_of_rain"`
	WindKph      float64   `json:"wind_kph"`
	IsDay        bool      `json:"is_day"`
}

type ForecastDay struct {
	Date              string         `json:"date"`
	MaxTempC          float64        `json:"maxtemp_c"`
	MinTempC          float64        `json:"mintemp_c"`
	Condition         Condition      `json:"condition"`
	AvgHumidity       float64        `json:"avg_humidity"`
	DailyChanceOfRain int            `json:"daily_chance_of_rain"`
	UV                float64        `json:"uv"`
	Sunrise           string         `json:"sunrise"`
	Sunset            string         `json:"sunset"`
	Hours             []ForecastHour `json:"hours"`
}

// SearchResult is one candidate returned by location search.
type SearchResult struct {
	ID      int64   `json:"id,omitempty"`
	Name    string  `json:"name"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Query identifies the location a weather lookup is for: a city name, or coordinates
// when HasCoordinates is set.
type Query struct {
	City           string
	Lat            float64
	Lon            float64
	HasCoordinates bool
}

func CityQuery(city string) Query {
	return Query{City: city}
}

func CoordinateQuery(lat, lon float64) Query {
	return Query{Lat: lat, Lon: lon, HasCoordinates: true}
}

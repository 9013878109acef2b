package weather

import "time"

// Observation is the subset of a stored record that summaries are computed over.
type Observation struct {
	Timestamp   time.Time
	Temperature float64
	Humidity    float64
	Pressure    float64
	Description string
}

// Summary condenses a set of observations.
type Summary struct {
	Count           int       `json:"count"`
	MeanTemperature float64   `json:"mean_temperature"`
	MinTemperature  float64   `json:"min_temperature"`
	MaxTemperature  float64   `json:"max_temperature"`
	MeanHumidity    float64   `json:"mean_humidity"`
	MeanPressure    float64   `json:"mean_pressure"`
	Description     string    `json:"most_common_description,omitempty"`
	First           time.Time `json:"first_observed,omitempty"`
	Last            time.Time `json:"last_observed,omitempty"`
}

// Summarize averages numeric fields and picks the most frequent description.
// Ties go to the description seen first.
func Summarize(obs []Observation) Summary {
	if len(obs) == 0 {
		return Summary{}
	}

	var (
		sumTemp     float64
		sumHumidity float64
		sumPressure float64
	)

	minTemp := obs[0].Temperature
	maxTemp := obs[0].Temperature
	first := obs[0].Timestamp
	last := obs[0].Timestamp

	descCounts := make(map[string]int)
	var descOrder []string

	for _, o := range obs {
		sumTemp += o.Temperature
		sumHumidity += o.Humidity
		sumPressure += o.Pressure

		if o.Temperature < minTemp {
			minTemp = o.Temperature
		}
		if o.Temperature > maxTemp {
			maxTemp = o.Temperature
		}
		if o.Timestamp.Before(first) {
			first = o.Timestamp
		}
		if o.Timestamp.After(last) {
			last = o.Timestamp
		}

		if o.Description != "" {
			if _, seen := descCounts[o.Description]; !seen {
				descOrder = append(descOrder, o.Description)
			}
			descCounts[o.Description]++
		}
	}

	n := float64(len(obs))

	bestDesc := ""
	bestCount := 0
	for _, d := range descOrder {
		if descCounts[d] > bestCount {
			bestCount = descCounts[d]
			bestDesc = d
		}
	}

	return Summary{
		Count:           len(obs),
		MeanTemperature: sumTemp / n,
		MinTemperature:  minTemp,
		MaxTemperature:  maxTemp,
		MeanHumidity:    sumHumidity / n,
		MeanPressure:    sumPressure / n,
		Description:     bestDesc,
		First:           first,
		Last:            last,
	}
}

// Package station defines radio stations and the registry that holds the device's station list.
package station

// Station is a named stream endpoint. Name is the identity used by every registry operation.
type Station struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`

	// Available is runtime state only; it is never persisted and starts out true.
	Available bool `json:"-" yaml:"-"`
}

// Record is the persisted form of a station.
type Record struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Record returns the persisted form of s.
func (s Station) Record() Record {
	return Record{Name: s.Name, URL: s.URL}
}

// FromRecords builds available stations from their persisted form.
func FromRecords(records []Record) []Station {
	stations := make([]Station, len(records))
	for i, r := range records {
		stations[i] = Station{Name: r.Name, URL: r.URL, Available: true}
	}
	return stations
}

// Records converts stations to their persisted form.
func Records(stations []Station) []Record {
	records := make([]Record, len(stations))
	for i, s := range stations {
		records[i] = s.Record()
	}
	return records
}

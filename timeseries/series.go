/*
Copyright © 2026 the Entrain authors.
This file is part of Entrain.

Entrain is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Entrain is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Entrain.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package timeseries handles the time-series side of an Entrain run:
// reading input series, aligning them onto a common time vector,
// deriving series from expressions, collecting per-time-step train
// results and exporting them.
package timeseries

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Series is one named time series. Times are ascending and unique;
// values hold left: between two samples the earlier value applies.
type Series struct {
	Name   string
	Time   []time.Time
	Values []float64
}

// NewSeries validates and sorts one series.
func NewSeries(name string, times []time.Time, values []float64) (Series, error) {
	if len(times) != len(values) {
		return Series{}, fmt.Errorf("timeseries: series %q has %d times but %d values", name, len(times), len(values))
	}
	if len(times) == 0 {
		return Series{}, fmt.Errorf("timeseries: series %q is empty", name)
	}
	type sample struct {
		t time.Time
		v float64
	}
	samples := make([]sample, len(times))
	for i := range times {
		samples[i] = sample{times[i], values[i]}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].t.Before(samples[j].t) })
	s := Series{Name: name, Time: make([]time.Time, 0, len(samples)), Values: make([]float64, 0, len(samples))}
	for i, sm := range samples {
		if i > 0 && sm.t.Equal(samples[i-1].t) {
			return Series{}, fmt.Errorf("timeseries: series %q has duplicate time %v", name, sm.t)
		}
		s.Time = append(s.Time, sm.t)
		s.Values = append(s.Values, sm.v)
	}
	return s, nil
}

// At returns the value holding at time t: the sample at or before t.
// Times before the first sample return NaN.
func (s Series) At(t time.Time) float64 {
	i := sort.Search(len(s.Time), func(i int) bool { return s.Time[i].After(t) })
	if i == 0 {
		return math.NaN()
	}
	return s.Values[i-1]
}

// Resample returns the series sampled-and-held onto a new time vector.
func (s Series) Resample(times []time.Time) Series {
	out := Series{Name: s.Name, Time: times, Values: make([]float64, len(times))}
	for i, t := range times {
		out.Values[i] = s.At(t)
	}
	return out
}

// Collection is a set of named series that may have different time
// vectors.
type Collection struct {
	series map[string]Series
	names  []string
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{series: make(map[string]Series)}
}

// Add inserts a series; names must be unique.
func (c *Collection) Add(s Series) error {
	if _, ok := c.series[s.Name]; ok {
		return fmt.Errorf("timeseries: duplicate series %q", s.Name)
	}
	c.series[s.Name] = s
	c.names = append(c.names, s.Name)
	return nil
}

// Get returns a series by name.
func (c *Collection) Get(name string) (Series, bool) {
	s, ok := c.series[name]
	return s, ok
}

// Names lists the series in insertion order.
func (c *Collection) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Times returns the sorted union of all sample times in the
// collection.
func (c *Collection) Times() []time.Time {
	seen := make(map[time.Time]bool)
	var times []time.Time
	for _, s := range c.series {
		for _, t := range s.Time {
			if !seen[t] {
				seen[t] = true
				times = append(times, t)
			}
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times
}

// timeLayouts are the accepted input time formats, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timeseries: cannot parse time %q", s)
}

// ReadCSV reads a collection from a CSV table whose first column is the
// time stamp and whose remaining columns are one series each, named by
// the header row. Empty cells are treated as NaN.
func ReadCSV(r io.Reader) (*Collection, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("timeseries: reading CSV: %v", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("timeseries: CSV needs a header row and at least one data row; got %d rows", len(rows))
	}
	header := rows[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("timeseries: CSV needs a time column and at least one value column")
	}
	times := make([]time.Time, 0, len(rows)-1)
	cols := make([][]float64, len(header)-1)
	for ri, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("timeseries: row %d has %d fields; header has %d", ri+2, len(row), len(header))
		}
		t, err := parseTime(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("timeseries: row %d: %v", ri+2, err)
		}
		times = append(times, t)
		for ci, cell := range row[1:] {
			cell = strings.TrimSpace(cell)
			v := math.NaN()
			if cell != "" {
				v, err = strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, fmt.Errorf("timeseries: row %d column %q: %v", ri+2, header[ci+1], err)
				}
			}
			cols[ci] = append(cols[ci], v)
		}
	}
	c := NewCollection()
	for ci, name := range header[1:] {
		s, err := NewSeries(strings.TrimSpace(name), times, cols[ci])
		if err != nil {
			return nil, err
		}
		if err := c.Add(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

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

package timeseries

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/tealeg/xlsx"
)

func (r *RunResult) header() []string {
	h := []string{"time", "power_W", "speed_rpm", "recirculation_loss_W",
		"suction_pressure_Pa", "discharge_pressure_Pa", "mass_rate_kg_h",
		"valid", "failure"}
	for j := 0; j < r.Stages; j++ {
		h = append(h,
			fmt.Sprintf("stage%d_power_W", j+1),
			fmt.Sprintf("stage%d_head_J_kg", j+1),
			fmt.Sprintf("stage%d_efficiency", j+1),
			fmt.Sprintf("stage%d_rate_m3_h", j+1),
			fmt.Sprintf("stage%d_recirculation_loss_W", j+1),
		)
	}
	return h
}

func (r *RunResult) row(i int) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	row := []string{
		r.Times[i].Format(time.RFC3339),
		f(r.Power[i]), f(r.Speed[i]), f(r.RecirculationLoss[i]),
		f(r.SuctionPressure[i]), f(r.DischargePressure[i]), f(r.MassRate[i]),
		strconv.FormatBool(r.Valid[i]), r.Failure[i].String(),
	}
	for j := 0; j < r.Stages; j++ {
		row = append(row,
			f(r.StagePower.Get(i, j)),
			f(r.StageHead.Get(i, j)),
			f(r.StageEfficiency.Get(i, j)),
			f(r.StageRate.Get(i, j)),
			f(r.StageRecircLoss.Get(i, j)),
		)
	}
	return row
}

// WriteCSV writes the run as a comma-separated table, one row per time
// step.
func (r *RunResult) WriteCSV(w io.Writer) error { return r.writeDelimited(w, ',') }

// WriteTSV writes the run as a tab-separated table.
func (r *RunResult) WriteTSV(w io.Writer) error { return r.writeDelimited(w, '\t') }

func (r *RunResult) writeDelimited(w io.Writer, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(r.header()); err != nil {
		return fmt.Errorf("timeseries: writing header: %v", err)
	}
	for i := range r.Times {
		if err := cw.Write(r.row(i)); err != nil {
			return fmt.Errorf("timeseries: writing row %d: %v", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonRun is the JSON export layout. NaN is not representable in JSON,
// so NaN values are encoded as null.
type jsonRun struct {
	Times   []time.Time           `json:"times"`
	Columns map[string][]*float64 `json:"columns"`
	Valid   []bool                `json:"valid"`
	Failure []string              `json:"failure"`
	Summary RunSummary            `json:"summary"`
}

func jsonFloats(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			v := v
			out[i] = &v
		}
	}
	return out
}

// WriteJSON writes the run and its summary as a JSON document.
func (r *RunResult) WriteJSON(w io.Writer) error {
	jr := jsonRun{
		Times: r.Times,
		Columns: map[string][]*float64{
			"power_W":               jsonFloats(r.Power),
			"speed_rpm":             jsonFloats(r.Speed),
			"recirculation_loss_W":  jsonFloats(r.RecirculationLoss),
			"suction_pressure_Pa":   jsonFloats(r.SuctionPressure),
			"discharge_pressure_Pa": jsonFloats(r.DischargePressure),
			"mass_rate_kg_h":        jsonFloats(r.MassRate),
		},
		Valid:   r.Valid,
		Failure: make([]string, len(r.Failure)),
		Summary: r.Summary(),
	}
	for j := 0; j < r.Stages; j++ {
		col := make([]float64, len(r.Times))
		for i := range r.Times {
			col[i] = r.StagePower.Get(i, j)
		}
		jr.Columns[fmt.Sprintf("stage%d_power_W", j+1)] = jsonFloats(col)
	}
	for i, f := range r.Failure {
		jr.Failure[i] = f.String()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jr); err != nil {
		return fmt.Errorf("timeseries: writing JSON: %v", err)
	}
	return nil
}

// WriteXLSX writes the run as a spreadsheet with a results sheet and a
// summary sheet.
func (r *RunResult) WriteXLSX(fileName string) error {
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Results")
	if err != nil {
		return fmt.Errorf("timeseries: creating results sheet: %v", err)
	}
	hrow := sh.AddRow()
	for _, h := range r.header() {
		hrow.AddCell().Value = h
	}
	for i := range r.Times {
		row := sh.AddRow()
		row.AddCell().Value = r.Times[i].Format(time.RFC3339)
		for _, v := range []float64{r.Power[i], r.Speed[i], r.RecirculationLoss[i],
			r.SuctionPressure[i], r.DischargePressure[i], r.MassRate[i]} {
			row.AddCell().SetFloat(v)
		}
		row.AddCell().Value = strconv.FormatBool(r.Valid[i])
		row.AddCell().Value = r.Failure[i].String()
		for j := 0; j < r.Stages; j++ {
			row.AddCell().SetFloat(r.StagePower.Get(i, j))
			row.AddCell().SetFloat(r.StageHead.Get(i, j))
			row.AddCell().SetFloat(r.StageEfficiency.Get(i, j))
			row.AddCell().SetFloat(r.StageRate.Get(i, j))
			row.AddCell().SetFloat(r.StageRecircLoss.Get(i, j))
		}
	}
	sum := r.Summary()
	ssh, err := f.AddSheet("Summary")
	if err != nil {
		return fmt.Errorf("timeseries: creating summary sheet: %v", err)
	}
	addSummary := func(name string, v float64) {
		row := ssh.AddRow()
		row.AddCell().Value = name
		row.AddCell().SetFloat(v)
	}
	addSummary("steps", float64(sum.Steps))
	addSummary("invalid_steps", float64(sum.InvalidSteps))
	addSummary("mean_power_W", sum.MeanPower)
	addSummary("max_power_W", sum.MaxPower)
	addSummary("stddev_power_W", sum.StdDevPower)
	addSummary("total_energy_J", sum.TotalEnergy)
	if err := f.Save(fileName); err != nil {
		return fmt.Errorf("timeseries: saving %s: %v", fileName, err)
	}
	return nil
}

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

package entrainutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/energymodel/entrain"
	"github.com/energymodel/entrain/model"
	"github.com/energymodel/entrain/timeseries"
)

// Run simulates the compressor train described in modelFile over its
// input time series and writes the results to outputFile, whose
// extension selects the format. nprocs time steps are evaluated in
// parallel; a Train carries no state between evaluations, so each
// worker gets its own instance.
func Run(modelFile, outputFile string, nprocs int, log logrus.FieldLogger, out io.Writer) error {
	start := time.Now()
	m, err := model.LoadFile(modelFile)
	if err != nil {
		return err
	}
	fl, err := m.BuildFluid()
	if err != nil {
		return err
	}
	series, err := m.BuildSeries()
	if err != nil {
		return err
	}
	times := series.Times()
	if len(times) == 0 {
		// All-constant boundary conditions: a single evaluation.
		times = []time.Time{time.Unix(0, 0).UTC()}
	}
	bcs, err := m.Boundaries(series, times)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"model":  m.Name,
		"steps":  len(times),
		"stages": len(m.Train.Stages),
		"nprocs": nprocs,
	}).Info("starting simulation")

	res := timeseries.NewRunResult(times, len(m.Train.Stages))
	if err := simulate(m, fl, bcs, res, nprocs, log); err != nil {
		return err
	}

	if err := export(res, outputFile); err != nil {
		return err
	}
	s := res.Summary()
	fmt.Fprintf(out, "Simulated %d time steps (%d infeasible) in %v.\n",
		s.Steps, s.InvalidSteps, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "Mean power %.3f MW, max %.3f MW, total energy %.3f GJ.\n",
		s.MeanPower/1e6, s.MaxPower/1e6, s.TotalEnergy/1e9)
	fmt.Fprintf(out, "Results written to %s.\n", outputFile)
	return nil
}

// simulate evaluates every time step, nprocs at a time. Workers write
// to disjoint rows of res, so no locking is needed around Record.
func simulate(m *model.Model, fl entrain.FluidService, bcs []entrain.BoundaryConditions,
	res *timeseries.RunResult, nprocs int, log logrus.FieldLogger) error {
	if nprocs < 1 {
		nprocs = 1
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error
	var failed atomic.Bool
	fail := func(err error) {
		failed.Store(true)
		once.Do(func() { firstErr = err })
	}
	for w := 0; w < nprocs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			train, err := m.BuildTrain(fl, log)
			if err != nil {
				fail(err)
			}
			// Keep draining jobs after a failure so the producer
			// doesn't block.
			for i := range jobs {
				if train == nil || failed.Load() {
					continue
				}
				tr, err := train.EvaluateSingleTimestep(bcs[i])
				if err != nil {
					fail(fmt.Errorf("entrain: time step %d (%v): %v", i, res.Times[i], err))
					continue
				}
				if !tr.Valid {
					log.WithFields(logrus.Fields{
						"step":    i,
						"time":    res.Times[i],
						"failure": tr.Failure,
					}).Warn("infeasible time step")
				}
				if err := res.Record(i, &tr); err != nil {
					fail(err)
				}
			}
		}()
	}
	for i := range bcs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return firstErr
}

func export(res *timeseries.RunResult, fileName string) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".xlsx" {
		return res.WriteXLSX(fileName)
	}
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("entrain: creating results file: %v", err)
	}
	switch ext {
	case ".csv":
		err = res.WriteCSV(f)
	case ".tsv":
		err = res.WriteTSV(f)
	case ".json":
		err = res.WriteJSON(f)
	default:
		err = fmt.Errorf("entrain: unsupported results format %q; use .csv, .tsv, .json or .xlsx", ext)
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Plot draws the compressor chart of one stage (counting from 1) of the
// model to an image file.
func Plot(modelFile, plotFile string, stage int) error {
	m, err := model.LoadFile(modelFile)
	if err != nil {
		return err
	}
	fl, err := m.BuildFluid()
	if err != nil {
		return err
	}
	train, err := m.BuildTrain(fl, nil)
	if err != nil {
		return err
	}
	if stage < 1 || stage > len(train.Stages) {
		return fmt.Errorf("entrain: stage %d outside train of %d stages", stage, len(train.Stages))
	}
	title := fmt.Sprintf("%s, stage %d", m.Name, stage)
	return entrain.SaveChartPlot(train.Stages[stage-1].Chart, nil, title, plotFile)
}

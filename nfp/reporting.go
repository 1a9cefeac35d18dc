package nfp

import (
	"sort"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/tongwu2020/mister-ed/pkg/errors"
	"github.com/tongwu2020/mister-ed/pkg/log"
)

// Reporter receives named scalar series during training.
type Reporter interface {
	Report(series string, step int, value float64)
}

// Checkpointer persists parameter snapshots. *model.CheckpointStore
// satisfies it.
type Checkpointer interface {
	Save(run, model string, epoch int, params [][]float64, retain int) error
}

// Series names emitted by the trainer.
const (
	SeriesVanillaLoss     = "vanilla_loss"
	SeriesFingerprintLoss = "fingerprint_loss"
	SeriesCombinedLoss    = "combined_loss"
	SeriesHeldOutAccuracy = "held_out_accuracy"
)

// TrainingLogger is the default Reporter: it records every series point in
// memory, mirrors it to the structured log at debug level, and can render
// the collected series to a PNG.
type TrainingLogger struct {
	mu     sync.Mutex
	logger log.Logger
	series map[string]plotter.XYs
}

// NewTrainingLogger creates a reporter backed by the process logger.
func NewTrainingLogger() *TrainingLogger {
	return &TrainingLogger{
		logger: log.GetLoggerWithName("training"),
		series: make(map[string]plotter.XYs),
	}
}

// Report implements Reporter.
func (tl *TrainingLogger) Report(series string, step int, value float64) {
	tl.mu.Lock()
	tl.series[series] = append(tl.series[series], plotter.XY{X: float64(step), Y: value})
	tl.mu.Unlock()
	tl.logger.Debug("series point", log.OperationKey, series, log.StepKey, step, "value", value)
}

// Series returns the recorded values of one series in report order.
func (tl *TrainingLogger) Series(name string) []float64 {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	pts := tl.series[name]
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Y
	}
	return out
}

// SavePlot renders all recorded series as lines against the training step
// and writes the image to path. The format follows the file extension.
func (tl *TrainingLogger) SavePlot(path, title string) error {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if len(tl.series) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "nfp: no series recorded")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "step"
	p.Y.Label.Text = "value"

	names := make([]string, 0, len(tl.series))
	for name := range tl.series {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]interface{}, 0, 2*len(names))
	for _, name := range names {
		args = append(args, name, tl.series[name])
	}
	if err := plotutil.AddLinePoints(p, args...); err != nil {
		return errors.Wrap(err, "nfp: adding series lines")
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrap(err, "nfp: saving training plot")
	}
	return nil
}

// nopReporter discards all points.
type nopReporter struct{}

func (nopReporter) Report(string, int, float64) {}

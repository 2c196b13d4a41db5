package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gather returns the collected families of r keyed by name.
func gather(t *testing.T, r *Recorder) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := r.Registry().Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

// counterValue returns the value of the counter in f labelled value.
func counterValue(f *dto.MetricFamily, value string) float64 {
	for _, m := range f.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.Step(ResultPass)
	r.Step(ResultPass)
	r.Step(ResultFail)
	r.Bytes(DirectionWrite, 512)
	r.Bytes(DirectionWrite, 1024)
	r.Truncation()
	r.Offset(3584)
	r.Command("write", 3*time.Millisecond)

	f := gather(t, r)
	assert.Equal(t, 2.0, counterValue(f["prpsweep_sweep_steps_total"], ResultPass))
	assert.Equal(t, 1.0, counterValue(f["prpsweep_sweep_steps_total"], ResultFail))
	assert.Equal(t, 1536.0, counterValue(f["prpsweep_sweep_bytes_total"], DirectionWrite))
	assert.Equal(t, 1.0, f["prpsweep_sweep_ceiling_truncations_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 3584.0, f["prpsweep_sweep_page_offset_bytes"].GetMetric()[0].GetGauge().GetValue())

	h := f["prpsweep_transport_command_seconds"].GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), h.GetSampleCount())
}

func TestRecorderNil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Step(ResultPass)
		r.Bytes(DirectionRead, 1)
		r.Truncation()
		r.Offset(4)
		r.Command("read", time.Second)
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	assert.NoError(t, r.Push("http://127.0.0.1:1", "job", ""))
}

func TestRecorderWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Step(ResultPass)

	path := filepath.Join(t.TempDir(), "sweep.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `prpsweep_sweep_steps_total{result="pass"} 1`)
}

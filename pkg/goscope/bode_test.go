package goscope

import (
	"math"
	"testing"
)

// synthTrace строит пару синусоид: вход единичной амплитуды и отклик
// с заданным отношением амплитуд и отставанием по фазе (в градусах).
func synthTrace(freq float64, ratio, lagDeg float64, samples int, dtUS float64) SweepTrace {
	in := make([]float64, samples)
	out := make([]float64, samples)
	for i := 0; i < samples; i++ {
		phase := 2*math.Pi*freq*float64(i)*dtUS*1e-6 + 0.3
		in[i] = math.Sin(phase)
		out[i] = ratio * math.Sin(phase-lagDeg*math.Pi/180)
	}
	return SweepTrace{Frequency: freq, Input: in, Output: out, SampleIntervalUS: dtUS}
}

// Отклик половинной амплитуды с отставанием 90 градусов: усиление
// -6.02 дБ, фаза +90 (переход отклика через ноль наступает позже).
func TestComputeBode_QuadratureLag(t *testing.T) {
	tr := synthTrace(1000, 0.5, 90, 220, 10)
	res := ComputeBode([]SweepTrace{tr})
	if len(res.Points) != 1 {
		t.Fatalf("Expected 1 point, got %d", len(res.Points))
	}
	p := res.Points[0]
	if !p.Valid {
		t.Fatal("Point with measurable amplitudes marked invalid")
	}
	if math.Abs(p.MagnitudeDB-(-6.0206)) > 0.1 {
		t.Errorf("Expected gain -6.02 dB, got %v", p.MagnitudeDB)
	}
	// Переходы через ноль квантованы шагом выборки: 3.6 градуса на
	// выборку при 100 выборках на период.
	if math.Abs(p.PhaseDeg-90) > 8 {
		t.Errorf("Expected phase near +90 deg, got %v", p.PhaseDeg)
	}
}

// Синфазный отклик равной амплитуды: 0 дБ, 0 градусов.
func TestComputeBode_Unity(t *testing.T) {
	tr := synthTrace(1000, 1.0, 0, 220, 10)
	p := ComputeBode([]SweepTrace{tr}).Points[0]
	if math.Abs(p.MagnitudeDB) > 0.1 {
		t.Errorf("Expected 0 dB, got %v", p.MagnitudeDB)
	}
	if math.Abs(p.PhaseDeg) > 8 {
		t.Errorf("Expected 0 deg, got %v", p.PhaseDeg)
	}
}

// Короткая осциллограмма и нулевой отклик дают непригодные точки.
func TestComputeBode_Invalid(t *testing.T) {
	short := SweepTrace{Frequency: 100, Input: make([]float64, 10), Output: make([]float64, 10), SampleIntervalUS: 10}
	res := ComputeBode([]SweepTrace{short})
	if res.Points[0].Valid {
		t.Error("Trace shorter than settle trim marked valid")
	}
	if res.Points[0].MagnitudeDB != 0 || res.Points[0].PhaseDeg != 0 {
		t.Error("Invalid point must carry zero gain and phase")
	}

	silent := synthTrace(1000, 0, 0, 220, 10)
	res = ComputeBode([]SweepTrace{silent})
	if res.Points[0].Valid {
		t.Error("Silent output marked valid")
	}
}

// Сглаживание не меняет длину рядов и края.
func TestComputeBode_Smoothing(t *testing.T) {
	traces := make([]SweepTrace, 9)
	for i := range traces {
		traces[i] = synthTrace(1000, 1.0, 0, 220, 10)
	}
	res := ComputeBode(traces)
	if len(res.SmoothedMagnitude) != 9 || len(res.SmoothedPhase) != 9 {
		t.Fatalf("Smoothed series length mismatch: %d, %d",
			len(res.SmoothedMagnitude), len(res.SmoothedPhase))
	}
	if res.SmoothedMagnitude[0] != res.Points[0].MagnitudeDB {
		t.Error("Smoothing must keep the first point untouched")
	}
	if res.SmoothedMagnitude[8] != res.Points[8].MagnitudeDB {
		t.Error("Smoothing must keep the last point untouched")
	}
}

func TestMovingAverage3(t *testing.T) {
	got := movingAverage3([]float64{0, 3, 0, 3, 0})
	want := []float64{0, 1, 2, 1, 0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

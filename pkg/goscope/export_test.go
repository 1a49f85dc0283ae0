package goscope

import (
	"math"
	"strings"
	"testing"
)

// Измерения на меандре с известным периодом.
func TestComputeMeasurements(t *testing.T) {
	trace := make([]float64, 100)
	for i := range trace {
		if (i/5)%2 == 0 {
			trace[i] = 1
		} else {
			trace[i] = -1
		}
	}
	m := ComputeMeasurements(trace, 1.0)
	if m.Min != -1 || m.Max != 1 {
		t.Errorf("Expected min/max -1/1, got %v/%v", m.Min, m.Max)
	}
	if m.PeakPeak != 2 || m.Amplitude != 1 {
		t.Errorf("Expected pk-pk 2 and amplitude 1, got %v and %v", m.PeakPeak, m.Amplitude)
	}
	if math.Abs(m.Mean) > 1e-12 {
		t.Errorf("Expected zero mean, got %v", m.Mean)
	}
	// Переходы через средний уровень каждые 5 выборок по 1 мкс.
	if math.Abs(m.Period-5e-6) > 1e-9 {
		t.Errorf("Expected period 5us, got %v", m.Period)
	}
	if math.Abs(m.Frequency-200000) > 1 {
		t.Errorf("Expected 200 kHz, got %v", m.Frequency)
	}
}

func TestComputeMeasurements_Empty(t *testing.T) {
	m := ComputeMeasurements(nil, 1.0)
	if m != (Measurements{}) {
		t.Fatalf("Expected zero measurements for empty trace, got %+v", m)
	}
}

// Прямое ДПФ локализует чистый тон в своем бине.
func TestDFTMagnitude(t *testing.T) {
	const n = 32
	input := make([]float64, n)
	for i := range input {
		input[i] = math.Cos(2 * math.Pi * 4 * float64(i) / n)
	}
	mags := DFTMagnitude(input)
	if len(mags) != n/2 {
		t.Fatalf("Expected %d bins, got %d", n/2, len(mags))
	}
	if math.Abs(mags[4]-0.5) > 1e-9 {
		t.Errorf("Expected 0.5 in bin 4, got %v", mags[4])
	}
	for k, m := range mags {
		if k != 4 && m > 1e-9 {
			t.Errorf("Leakage in bin %d: %v", k, m)
		}
	}
}

func TestCaptureResultToCSV(t *testing.T) {
	r := &CaptureResult{
		Mode:             ModeBoth,
		SampleIntervalUS: 5,
		Ch1:              []float64{0.1, 0.2, 0.3},
		Ch2:              []float64{-0.1, -0.2, -0.3},
	}
	csv := r.ToCSV(false)
	if !strings.HasPrefix(csv, "# Oscilloscope Data Export\n") {
		t.Error("Missing export header")
	}
	if !strings.Contains(csv, "Time(us),CH1(V),CH2(V)\n") {
		t.Error("Missing column header")
	}
	if !strings.Contains(csv, "5.000,0.200,-0.200\n") {
		t.Errorf("Missing data row, got:\n%s", csv)
	}
	if strings.Contains(csv, "FFT") {
		t.Error("Spectrum section present without request")
	}

	withFFT := r.ToCSV(true)
	if !strings.Contains(withFFT, "Frequency(Hz),CH1_FFT(dB),CH2_FFT(dB)\n") {
		t.Error("Missing spectrum section")
	}
}

func TestBodeResultToCSV(t *testing.T) {
	r := &BodeResult{
		Points: []BodePoint{
			{Frequency: 100, MagnitudeDB: -3, PhaseDeg: -45, Valid: true},
			{Frequency: 1000, MagnitudeDB: -20, PhaseDeg: -90, Valid: false},
		},
		SmoothedMagnitude: []float64{-3, -20},
		SmoothedPhase:     []float64{-45, -90},
	}
	csv := r.ToCSV()
	if !strings.Contains(csv, "Frequency(Hz),Magnitude(dB),Phase(deg),SmoothedMagnitude(dB),SmoothedPhase(deg),Valid\n") {
		t.Error("Missing column header")
	}
	if !strings.Contains(csv, "100.000,-3.000,-45.000,-3.000,-45.000,1\n") {
		t.Errorf("Missing valid row, got:\n%s", csv)
	}
	if !strings.Contains(csv, "1000.000,-20.000,-90.000,-20.000,-90.000,0\n") {
		t.Errorf("Missing invalid row, got:\n%s", csv)
	}
}

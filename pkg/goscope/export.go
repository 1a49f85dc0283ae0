package goscope

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Measurements — сводные измерения по одной осциллограмме.
type Measurements struct {
	Min       float64
	Max       float64
	PeakPeak  float64
	Mean      float64
	Amplitude float64
	Period    float64 // секунды; 0, если переходы не найдены
	Frequency float64 // герцы; 0, если переходы не найдены
}

// ComputeMeasurements считает сводку по осциллограмме с периодом
// выборки sampleIntervalUS микросекунд. Период сигнала оценивается по
// средним интервалам между пересечениями среднего уровня в обе
// стороны.
func ComputeMeasurements(trace []float64, sampleIntervalUS float64) Measurements {
	var m Measurements
	if len(trace) == 0 {
		return m
	}
	m.Min, m.Max = minMax(trace)
	m.PeakPeak = m.Max - m.Min
	m.Amplitude = m.PeakPeak / 2
	sum := 0.0
	for _, v := range trace {
		sum += v
	}
	m.Mean = sum / float64(len(trace))

	dt := sampleIntervalUS * 1e-6
	lastCross := -1
	crossings := 0
	periodSum := 0.0
	for i := 1; i < len(trace); i++ {
		rising := trace[i-1] < m.Mean && trace[i] >= m.Mean
		falling := trace[i-1] > m.Mean && trace[i] <= m.Mean
		if rising || falling {
			if lastCross >= 0 {
				periodSum += float64(i-lastCross) * dt
				crossings++
			}
			lastCross = i
		}
	}
	if crossings > 0 {
		m.Period = periodSum / float64(crossings)
		if m.Period > 0 {
			m.Frequency = 1 / m.Period
		}
	}
	return m
}

// DFTMagnitude считает амплитудный спектр прямым преобразованием
// Фурье. Возвращает len(input)/2 бинов, нормированных на длину ряда.
func DFTMagnitude(input []float64) []float64 {
	n := len(input)
	if n == 0 {
		return nil
	}
	out := make([]float64, n/2)
	for k := 0; k < n/2; k++ {
		var re, im float64
		for t := 0; t < n; t++ {
			angle := 2 * math.Pi * float64(t) * float64(k) / float64(n)
			re += input[t] * math.Cos(angle)
			im -= input[t] * math.Sin(angle)
		}
		out[k] = math.Hypot(re, im) / float64(n)
	}
	return out
}

// SpectrumDB переводит амплитудный спектр в децибелы относительно
// одного вольта. Нулевые бины прижимаются к -120 дБ.
func SpectrumDB(magnitudes []float64) []float64 {
	out := make([]float64, len(magnitudes))
	for i, m := range magnitudes {
		if m > 0 {
			out[i] = 20 * math.Log10(m)
		} else {
			out[i] = -120
		}
	}
	return out
}

// ToCSV сериализует осциллограмму в CSV. При withSpectrum к файлу
// дописывается секция спектра обоих каналов.
func (r *CaptureResult) ToCSV(withSpectrum bool) string {
	var sb strings.Builder
	n := len(r.Ch1)
	if len(r.Ch2) > n {
		n = len(r.Ch2)
	}
	sb.WriteString("# Oscilloscope Data Export\n")
	sb.WriteString("# Generated: " + time.Now().Format("2006-01-02 15:04:05") + "\n")
	sb.WriteString(fmt.Sprintf("# Data Points: %d\n", n))
	sb.WriteString("# Time Unit: microseconds\n")
	sb.WriteString("# Voltage Unit: Volts\n")
	sb.WriteString("\n")
	sb.WriteString("Time(us),CH1(V),CH2(V)\n")
	for i := 0; i < n; i++ {
		var ch1, ch2 float64
		if i < len(r.Ch1) {
			ch1 = r.Ch1[i]
		}
		if i < len(r.Ch2) {
			ch2 = r.Ch2[i]
		}
		sb.WriteString(fmt.Sprintf("%.3f,%.3f,%.3f\n", float64(i)*r.SampleIntervalUS, ch1, ch2))
	}
	if withSpectrum {
		ch1FFT := SpectrumDB(DFTMagnitude(r.Ch1))
		ch2FFT := SpectrumDB(DFTMagnitude(r.Ch2))
		bins := len(ch1FFT)
		if len(ch2FFT) > bins {
			bins = len(ch2FFT)
		}
		if bins > 0 {
			sampleRate := 1e6 / r.SampleIntervalUS
			sb.WriteString("\n")
			sb.WriteString("# FFT Data\n")
			sb.WriteString("# Frequency Unit: Hz\n")
			sb.WriteString("# Magnitude Unit: dB\n")
			sb.WriteString("\n")
			sb.WriteString("Frequency(Hz),CH1_FFT(dB),CH2_FFT(dB)\n")
			for i := 0; i < bins; i++ {
				var c1, c2 float64
				if i < len(ch1FFT) {
					c1 = ch1FFT[i]
				}
				if i < len(ch2FFT) {
					c2 = ch2FFT[i]
				}
				freq := float64(i) * sampleRate / float64(2*bins)
				sb.WriteString(fmt.Sprintf("%.1f,%.2f,%.2f\n", freq, c1, c2))
			}
		}
	}
	return sb.String()
}

// ToCSV сериализует частотную характеристику в CSV. Сглаженные ряды
// выгружаются рядом с исходными.
func (r *BodeResult) ToCSV() string {
	var sb strings.Builder
	sb.WriteString("# Bode Plot Export\n")
	sb.WriteString("# Generated: " + time.Now().Format("2006-01-02 15:04:05") + "\n")
	sb.WriteString(fmt.Sprintf("# Data Points: %d\n", len(r.Points)))
	sb.WriteString("\n")
	sb.WriteString("Frequency(Hz),Magnitude(dB),Phase(deg),SmoothedMagnitude(dB),SmoothedPhase(deg),Valid\n")
	for i, p := range r.Points {
		valid := 1
		if !p.Valid {
			valid = 0
		}
		sb.WriteString(fmt.Sprintf("%.3f,%.3f,%.3f,%.3f,%.3f,%d\n",
			p.Frequency, p.MagnitudeDB, p.PhaseDeg,
			r.SmoothedMagnitude[i], r.SmoothedPhase[i], valid))
	}
	return sb.String()
}

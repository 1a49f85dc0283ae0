package goscope

import "math"

// bodeSettleTrim — число начальных отсчетов, выбрасываемых перед
// анализом: в них еще присутствует переходный процесс входного тракта.
const bodeSettleTrim = 20

// ampEpsilon — порог, ниже которого амплитуда считается нулевой и
// точка непригодной для расчета усиления.
const ampEpsilon = 1e-9

// SweepTrace — пара осциллограмм одного шага свипа: вход (CH1) и
// отклик (CH2) на частоте Frequency при периоде выборки
// SampleIntervalUS микросекунд.
type SweepTrace struct {
	Frequency        float64
	Input            []float64
	Output           []float64
	SampleIntervalUS float64
}

// BodePoint — одна точка частотной характеристики.
type BodePoint struct {
	Frequency   float64
	MagnitudeDB float64
	PhaseDeg    float64 // в диапазоне [-180, 180]
	Valid       bool    // false, если амплитуда не поддалась измерению
}

// BodeResult — частотная характеристика по результатам свипа.
// Сглаженные ряды соответствуют Points поэлементно.
type BodeResult struct {
	Points            []BodePoint
	SmoothedMagnitude []float64
	SmoothedPhase     []float64
}

// ComputeBode строит АЧХ и ФЧХ по осциллограммам свипа. Усиление
// берется из отношения средних амплитуд локальных экстремумов, фаза —
// из сдвига первых восходящих переходов через ноль. Положительная
// фаза означает, что переход отклика наступил позже перехода входа.
func ComputeBode(traces []SweepTrace) *BodeResult {
	res := &BodeResult{Points: make([]BodePoint, 0, len(traces))}
	for _, tr := range traces {
		res.Points = append(res.Points, computeBodePoint(tr))
	}
	mags := make([]float64, len(res.Points))
	phases := make([]float64, len(res.Points))
	for i, p := range res.Points {
		mags[i] = p.MagnitudeDB
		phases[i] = p.PhaseDeg
	}
	// Тройной проход скользящего среднего сглаживает шум измерения,
	// не смещая общий ход кривой.
	for pass := 0; pass < 3; pass++ {
		mags = movingAverage3(mags)
		phases = movingAverage3(phases)
	}
	res.SmoothedMagnitude = mags
	res.SmoothedPhase = phases
	return res
}

func computeBodePoint(tr SweepTrace) BodePoint {
	pt := BodePoint{Frequency: tr.Frequency}
	n := len(tr.Input)
	if len(tr.Output) < n {
		n = len(tr.Output)
	}
	if n <= bodeSettleTrim {
		return pt
	}
	in := tr.Input[bodeSettleTrim:n]
	out := tr.Output[bodeSettleTrim:n]
	dt := tr.SampleIntervalUS * 1e-6

	inZero := firstRisingZeroCrossing(in)
	outZero := firstRisingZeroCrossing(out)
	avgPeriod := averageZeroCrossingPeriod(in, dt)

	inMax, inMin := averageLocalExtrema(in)
	outMax, outMin := averageLocalExtrema(out)
	inAmp := (inMax - inMin) / 2
	outAmp := (outMax - outMin) / 2

	if inAmp > ampEpsilon && outAmp > ampEpsilon {
		pt.MagnitudeDB = 20 * math.Log10(outAmp/inAmp)
	}
	if inZero >= 0 && outZero >= 0 && avgPeriod > 0 {
		phase := float64(outZero-inZero) * dt / avgPeriod * 360
		for phase > 180 {
			phase -= 360
		}
		for phase < -180 {
			phase += 360
		}
		pt.PhaseDeg = phase
	}
	pt.Valid = inAmp > ampEpsilon && outAmp > ampEpsilon
	return pt
}

// firstRisingZeroCrossing возвращает индекс первого отсчета, на котором
// сигнал пересек ноль снизу вверх, или -1.
func firstRisingZeroCrossing(data []float64) int {
	for i := 1; i < len(data); i++ {
		if data[i-1] < 0 && data[i] >= 0 {
			return i
		}
	}
	return -1
}

// averageZeroCrossingPeriod усредняет интервалы между восходящими
// переходами через ноль. Нужно не меньше двух переходов, иначе 0.
func averageZeroCrossingPeriod(data []float64, dt float64) float64 {
	prev := -1
	sum := 0.0
	count := 0
	for i := 1; i < len(data); i++ {
		if data[i-1] < 0 && data[i] >= 0 {
			if prev >= 0 {
				sum += float64(i-prev) * dt
				count++
			}
			prev = i
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// averageLocalExtrema усредняет строгие локальные максимумы и минимумы
// ряда. При отсутствии экстремумов соответствующее среднее равно нулю.
func averageLocalExtrema(data []float64) (avgMax, avgMin float64) {
	var sumMax, sumMin float64
	var nMax, nMin int
	for i := 1; i < len(data)-1; i++ {
		if data[i] > data[i-1] && data[i] > data[i+1] {
			sumMax += data[i]
			nMax++
		}
		if data[i] < data[i-1] && data[i] < data[i+1] {
			sumMin += data[i]
			nMin++
		}
	}
	if nMax > 0 {
		avgMax = sumMax / float64(nMax)
	}
	if nMin > 0 {
		avgMin = sumMin / float64(nMin)
	}
	return avgMax, avgMin
}

// movingAverage3 — скользящее среднее по трем точкам, края остаются
// без изменений.
func movingAverage3(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	for i := 1; i < len(data)-1; i++ {
		out[i] = (data[i-1] + data[i] + data[i+1]) / 3
	}
	return out
}

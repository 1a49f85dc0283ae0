package goscope

// Калибровочные константы пересчета АЦП в вольты. Значения подобраны
// по реальному железу - не упрощать арифметику.
const (
	scaleFactor     = 5.0 / 4.8
	fixedBaseline   = 4.00
	calibrationTrim = 3.78
	// offsetGainFactor сохранился из калибровки прежних ревизий платы;
	// в действующем тракте пересчета не участвует.
	offsetGainFactor = 1.1774
)

// ChannelCalibration - параметры пересчета одного канала.
type ChannelCalibration struct {
	Gain float64
	// OffsetCorrection (OC) прибавляется до и после масштабирования.
	OffsetCorrection float64
	// UIOffset - сырое значение регулятора смещения.
	UIOffset int
}

// ConvertSample переводит один байт АЦП (0..255) в вольты.
// Формула фиксирована калибровкой:
//
//	v = (((raw*10/128) - 10 + OC) * scaleFactor / gain) + OC + 4.00 + ui - 3.78
//
// где ui = (UIOffset/100)/2.
func ConvertSample(raw byte, cal ChannelCalibration) float64 {
	gain := cal.Gain
	if gain == 0 {
		gain = 1.0
	}
	ui := (float64(cal.UIOffset) / 100.0) / 2.0
	v := (((float64(raw)*10.0/128.0)-10.0+cal.OffsetCorrection)*scaleFactor/gain +
		cal.OffsetCorrection + fixedBaseline + ui) - calibrationTrim
	return v
}

// ConvertTrace пересчитывает буфер канала в осциллограмму напряжений.
func ConvertTrace(raw []byte, cal ChannelCalibration) []float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make([]float64, len(raw))
	for i, b := range raw {
		out[i] = ConvertSample(b, cal)
	}
	return out
}

// DoubleRate восстанавливает логическую длину буфера на максимальной
// частоте дискретизации (2 Мбит/с), когда устройство возвращает вдвое
// меньше выборок. Первая выборка сохраняется, нечетные позиции
// заполняются средним соседних выборок исходного темпа, четные - самой
// выборкой; у хвоста используется ближайшее значение. Политика
// интерполяции должна воспроизводиться бит-в-бит для совместимости с
// ранее сохраненными захватами.
func DoubleRate(in []float64, dataLength int) []float64 {
	if len(in) == 0 || dataLength <= 0 {
		return nil
	}
	out := make([]float64, dataLength)
	copy(out, in)
	out[0] = in[0]
	for i := 1; i < dataLength; i += 2 {
		if i/2+1 < len(in) {
			out[i] = (in[i/2] + in[i/2+1]) / 2.0
		} else {
			out[i] = in[i/2]
		}
		if i+1 < dataLength && i/2+1 < len(in) {
			out[i+1] = in[i/2+1]
		}
	}
	return out
}

// lowPassWarmup - число начальных выборок, отбрасываемых после фильтра.
const lowPassWarmup = 10

// LowPass применяет симметричное скользящее усреднение с окном 5 и
// отбрасывает область разгона фильтра.
func LowPass(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	const w = 5
	out := make([]float64, len(data))
	for i := range data {
		sum := 0.0
		count := 0
		for j := i - w/2; j <= i+w/2; j++ {
			if j >= 0 && j < len(data) {
				sum += data[j]
				count++
			}
		}
		out[i] = sum / float64(count)
	}
	if len(out) > lowPassWarmup {
		out = out[lowPassWarmup:]
	}
	return out
}

// ConvertCapture выполняет полный тракт пересчета захвата: вольты,
// восстановление темпа для 2 Мбит/с и опциональный фильтр.
func ConvertCapture(capture RawCapture, cfg InstrumentConfig) (ch1, ch2 []float64) {
	ch1 = ConvertTrace(capture.Ch1, ChannelCalibration{Gain: cfg.Ch1Gain, UIOffset: cfg.Ch1Offset})
	ch2 = ConvertTrace(capture.Ch2, ChannelCalibration{Gain: cfg.Ch2Gain, UIOffset: cfg.Ch2Offset})
	if cfg.SampleRateIndex == 0 {
		if len(ch1) > 0 {
			ch1 = DoubleRate(ch1, capture.DataLength)
		}
		if len(ch2) > 0 {
			ch2 = DoubleRate(ch2, capture.DataLength)
		}
	}
	if cfg.LowPass {
		ch1 = LowPass(ch1)
		ch2 = LowPass(ch2)
	}
	return ch1, ch2
}

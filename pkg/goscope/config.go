package goscope

// Mode задает набор каналов одного логического захвата.
type Mode int

const (
	ModeBoth Mode = iota // оба канала, по 200 выборок на канал
	ModeCh1              // только канал 1, 400 выборок
	ModeCh2              // только канал 2, 400 выборок
)

// wireMode возвращает значение режима для команды opSetMode.
func (m Mode) wireMode() byte {
	switch m {
	case ModeCh1:
		return 2
	case ModeCh2:
		return 3
	default:
		return 1
	}
}

// DataLength возвращает длину буфера канала для режима.
func (m Mode) DataLength() int {
	if m == ModeBoth {
		return DualChannelLength
	}
	return SingleChannelLength
}

func (m Mode) DualChannel() bool { return m == ModeBoth }

// TriggerSource выбирает канал аппаратного триггера.
type TriggerSource int

const (
	TriggerAuto TriggerSource = iota
	TriggerCh1
	TriggerCh2
	TriggerExt
)

// TriggerPolarity задает направление срабатывания.
type TriggerPolarity int

const (
	PolarityLowHigh TriggerPolarity = iota
	PolarityHighLow
)

// Длины буферов каналов, диктуемые прошивкой.
const (
	DualChannelLength   = 200
	SingleChannelLength = 400
)

// GainValues - допустимые усиления каналов. Индекс в этом срезе
// является индексом усиления в команде opSetGain.
// 0.5 соответствует шкале ±20В, 16.0 - шкале ±0.625В.
var GainValues = []float64{0.5, 1.0, 2.0, 4.0, 8.0, 16.0}

// SampleRates - частоты дискретизации устройства в Гц. Индекс с нуля;
// прошивка ожидает индекс с единицы (см. opSetSampleRate).
var SampleRates = []float64{
	2000000, 1000000, 500000, 200000, 100000,
	50000, 20000, 10000, 5000, 2000,
	1000, 500, 200, 100,
}

// sampleMultipliers - длительность одной выборки в микросекундах для
// каждой частоты дискретизации.
var sampleMultipliers = []float64{
	0.5, 1.0, 2.0, 5.0, 10.0,
	20.0, 50.0, 100.0, 200.0, 500.0,
	1000.0, 2000.0, 5000.0, 10000.0,
}

// SampleIntervalUS возвращает шаг времени между выборками в микросекундах
// для индекса частоты дискретизации (с нуля).
func SampleIntervalUS(rateIndex int) float64 {
	if rateIndex < 0 || rateIndex >= len(sampleMultipliers) {
		return 5.0
	}
	return sampleMultipliers[rateIndex]
}

// InstrumentConfig - единый объект настроек прибора, передаваемый в ядро.
// Заменяет разрозненные поля настроек, которыми владел UI.
type InstrumentConfig struct {
	Ch1Gain float64
	Ch2Gain float64

	// Смещения каналов в сырых единицах регулятора (делятся на 200
	// при пересчете в вольты).
	Ch1Offset int
	Ch2Offset int

	TrigLevel    int // 0..4095
	TrigSource   TriggerSource
	TrigPolarity TriggerPolarity

	// Индекс частоты дискретизации с нуля (0 = 2 Мбит/с).
	SampleRateIndex int

	// Включает скользящее усреднение после пересчета в вольты.
	LowPass bool
}

// DefaultConfig повторяет настройки прибора при включении.
func DefaultConfig() InstrumentConfig {
	return InstrumentConfig{
		Ch1Gain:         0.5,
		Ch2Gain:         0.5,
		TrigLevel:       2048,
		TrigSource:      TriggerAuto,
		TrigPolarity:    PolarityLowHigh,
		SampleRateIndex: 3,
	}
}

// AcquisitionRequest описывает один цикл захвата.
type AcquisitionRequest struct {
	Mode       Mode
	DataLength int
	Config     InstrumentConfig
}

// NewAcquisitionRequest заполняет длину буфера по режиму.
func NewAcquisitionRequest(mode Mode, cfg InstrumentConfig) AcquisitionRequest {
	return AcquisitionRequest{Mode: mode, DataLength: mode.DataLength(), Config: cfg}
}

package goscope

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Параметры тактирования DDS-генератора. Таймер микроконтроллера
// тактируется от 32 МГц, базовый делитель 32 дает событийную частоту
// выборки 1 МГц.
const (
	ddsTimerClock  = 32_000_000
	ddsBaseDivider = 32
	ddsEventClock  = ddsTimerClock / ddsBaseDivider

	ddsWaveformLen = 256
	ddsTableLen    = 512

	maxTimerPeriod = 65535
	maxDDSSamples  = 512

	// MinDDSFrequency и MaxDDSFrequency — допустимый диапазон частоты
	// генератора в герцах. Значения вне диапазона прижимаются к границе.
	MinDDSFrequency = 1
	MaxDDSFrequency = 50000

	// CycleStretchThreshold — частота, ниже которой планировщик
	// переходит в режим растяжения цикла: полная таблица формы
	// пересэмплируется в 512 точек, и период таймера задает частоту
	// напрямую. Выше порога работает фазовый аккумулятор.
	CycleStretchThreshold = 1000
)

// ddsCommandGap — пауза между кадрами при загрузке генератора. Прошивке
// нужно время на разбор кадра переменной длины.
const ddsCommandGap = 20 * time.Millisecond

// NextPowerOf2 возвращает наименьшую степень двойки, не меньшую n.
// Для n <= 1 возвращает 1.
func NextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// PhaseStep вычисляет шаг фазового аккумулятора для частоты frequency
// при событийной частоте fclock. Шаг округляется вверх до степени
// двойки, чтобы аккумулятор проходил таблицу без джиттера; нулевой шаг
// не возвращается никогда.
func PhaseStep(frequency, fclock int) int {
	raw := int(math.Floor(float64(frequency) * 65536.0 / float64(fclock)))
	step := NextPowerOf2(raw)
	if step < 1 {
		step = 1
	}
	return step
}

// DDSPlan — результат планирования генератора: таблица выборок и
// параметры таймера, готовые к отправке в прибор.
type DDSPlan struct {
	Frequency       int     // запрошенная частота, Гц
	OutputFrequency float64 // фактическая частота на выходе, Гц
	TimerPeriod     int     // период таймера выборки, тактов
	SampleCount     int     // число выборок таблицы, проигрываемых за цикл
	PhaseStep       int     // шаг фазового аккумулятора (0 в режиме растяжения)
	Table           []byte  // таблица выборок длиной ddsTableLen
}

// PlanDDS строит план воспроизведения формы waveform на частоте
// frequency. Частота за пределами диапазона прижимается к границе.
func PlanDDS(waveform Waveform, frequency int) *DDSPlan {
	return planDDS(waveform.Table(), frequency)
}

// ErrBadTable возвращается при произвольной таблице неверной длины.
var ErrBadTable = errors.New("таблица формы должна содержать 256 выборок")

// PlanDDSTable строит план для произвольной таблицы выборок. Таблица
// должна содержать ровно 256 значений.
func PlanDDSTable(table []byte, frequency int) (*DDSPlan, error) {
	if len(table) != ddsWaveformLen {
		return nil, fmt.Errorf("%w: получено %d", ErrBadTable, len(table))
	}
	wave := make([]byte, ddsWaveformLen)
	copy(wave, table)
	return planDDS(wave, frequency), nil
}

func planDDS(wave []byte, frequency int) *DDSPlan {
	if frequency < MinDDSFrequency {
		frequency = MinDDSFrequency
	}
	if frequency > MaxDDSFrequency {
		frequency = MaxDDSFrequency
	}
	plan := &DDSPlan{
		Frequency: frequency,
		Table:     make([]byte, ddsTableLen),
	}

	if frequency < CycleStretchThreshold {
		// Режим растяжения цикла: ровно один период формы на всю
		// таблицу, частоту задает период таймера.
		n := ddsTableLen
		for i := 0; i < n; i++ {
			idx := int(math.Round(float64(i) * float64(len(wave)-1) / float64(n-1)))
			plan.Table[i] = wave[idx]
		}
		plan.TimerPeriod = ddsTimerClock / (frequency * n)
		plan.SampleCount = n
		if plan.TimerPeriod > maxTimerPeriod {
			plan.TimerPeriod = maxTimerPeriod
		}
		plan.OutputFrequency = float64(ddsTimerClock) / (float64(plan.TimerPeriod) * float64(n))
		return plan
	}

	// Стандартный режим: фазовый аккумулятор со степенным шагом.
	step := PhaseStep(frequency, ddsEventClock)
	count := fillAccumulatorTable(plan.Table, wave, step)

	fout := float64(step) * float64(ddsEventClock) / 65536.0
	plan.SampleCount = int(float64(ddsEventClock) / fout)
	divider := int(math.Round(float64(ddsBaseDivider) * fout / float64(frequency)))
	if divider > maxTimerPeriod {
		divider = maxTimerPeriod
	}
	plan.TimerPeriod = divider
	plan.PhaseStep = step
	// Тактовая частота таймера делится нацело, как считает прошивка.
	plan.OutputFrequency = float64(step) * float64(ddsTimerClock/divider) / 65536.0

	// Хвост таблицы не должен заканчиваться нулем: прошивка трактует
	// его как обрыв формы.
	last := count - 1
	if last > 0 && plan.Table[last] == 0 {
		plan.Table[last] = plan.Table[last-1]
	}
	if plan.SampleCount > maxDDSSamples {
		plan.SampleCount = maxDDSSamples
	}
	return plan
}

// fillAccumulatorTable прогоняет фазовый аккумулятор по таблице формы,
// пока не будет пройден полный цикл (256 уникальных индексов) либо не
// кончится место. Остаток таблицы заполняется последним значением.
// Возвращает число записанных шагов аккумулятора.
func fillAccumulatorTable(table, wave []byte, step int) int {
	table[0] = wave[0]
	var seen [ddsWaveformLen]bool
	seen[0] = true
	unique := 1
	count := 1
	acc := 0
	last := 0
	for count < ddsTableLen && unique < ddsWaveformLen {
		acc += step
		idx := acc >> 8
		if idx >= ddsWaveformLen {
			idx = ddsWaveformLen - 1
		}
		table[count] = wave[idx]
		if !seen[idx] {
			seen[idx] = true
			unique++
		}
		last = idx
		count++
	}
	for i := count; i < ddsTableLen; i++ {
		table[i] = wave[last]
	}
	return count
}

// Frames возвращает последовательность кадров загрузки генератора:
// период таймера, число выборок, таблица и команда запуска. Кадры
// должны отправляться с паузой ddsCommandGap между ними.
func (p *DDSPlan) Frames() [][]byte {
	samples := p.SampleCount
	if samples > len(p.Table) {
		samples = len(p.Table)
	}
	return [][]byte{
		frameHiLo(opSetDDSPeriod, p.TimerPeriod),
		frameHiLo(opSetDDSSamples, samples),
		ddsTableFrame(p.Table, samples),
		runDDSFrame(),
	}
}

// DigitalFrequencyPlan — делитель и счетчик цифрового генератора
// частоты на выводе таймера.
type DigitalFrequencyPlan struct {
	Frequency    int
	Count        int // период счетчика
	DividerIndex int // индекс предделителя 0..6
}

// ErrDigitalFrequency возвращается при частоте вне рабочего диапазона
// цифрового генератора.
var ErrDigitalFrequency = fmt.Errorf("частота цифрового генератора вне диапазона")

// PlanDigitalFrequency подбирает каскад предделителей таймера так,
// чтобы счетчик периода уместился в 16 бит. Каскад фиксирован:
// 1, 2, 4, 8, 64, 256, 1024.
func PlanDigitalFrequency(frequency int) (*DigitalFrequencyPlan, error) {
	if frequency <= 0 {
		return nil, fmt.Errorf("%w: %d Гц", ErrDigitalFrequency, frequency)
	}
	count := ddsTimerClock / frequency
	index := 0
	if count > maxTimerPeriod {
		count /= 2
		index = 1
		if count > maxTimerPeriod {
			count /= 2
			index = 2
			if count > maxTimerPeriod {
				count /= 2
				index = 3
				if count > maxTimerPeriod {
					count /= 8
					index = 4
					if count > maxTimerPeriod {
						count /= 4
						index = 5
						if count > maxTimerPeriod {
							count /= 4
							index = 6
						}
					}
				}
			}
		}
	}
	if count > maxTimerPeriod {
		return nil, fmt.Errorf("%w: %d Гц", ErrDigitalFrequency, frequency)
	}
	return &DigitalFrequencyPlan{Frequency: frequency, Count: count, DividerIndex: index}, nil
}

// Frames возвращает кадры установки счетчика и индекса предделителя.
func (p *DigitalFrequencyPlan) Frames() [][]byte {
	return [][]byte{
		frameHiLo(opSetDigCount, p.Count),
		frame(opSetDigDivIndex, byte(p.DividerIndex), 0),
	}
}

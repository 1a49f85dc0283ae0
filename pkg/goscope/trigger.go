package goscope

import (
	"errors"
	"math"
)

// ErrTriggerOutOfRange: уровень триггера недостижим для наблюдаемого
// сигнала. Вызывающая сторона переводит источник триггера в Auto.
var ErrTriggerOutOfRange = errors.New("уровень триггера вне диапазона сигнала")

// triggerNoiseFloor - минимальный размах сигнала, считающийся полезным.
const triggerNoiseFloor = 0.1

// CheckTrigger решает, стоит ли показывать захваченный кадр: размах
// выбранного канала должен превышать уровень шума. Это эвристика
// активности, а не детектор пересечения уровня - аппаратный триггер
// настраивается отдельно командой opSetTrigLevel.
func CheckTrigger(ch1, ch2 []float64, source TriggerSource) bool {
	data := ch1
	if source == TriggerCh2 {
		data = ch2
	}
	if len(data) == 0 {
		return false
	}
	min, max := minMax(data)
	return max-min > triggerNoiseFloor
}

// TriggerLevelVolts переводит позицию регулятора (0..4095) в вольты с
// учетом усиления канала триггера; округление до сотых повторяет
// поведение прошлых версий прибора.
func TriggerLevelVolts(level int, gain float64) float64 {
	v := (float64(level)*10.0/2048.0 - 10.0) / gain
	return math.Round(v*100.0) / 100.0
}

// ValidateTriggerLevel проверяет достижимость уровня триггера для
// наблюдаемой осциллограммы.
func ValidateTriggerLevel(trace []float64, level int, gain float64) error {
	if len(trace) == 0 {
		return nil
	}
	line := TriggerLevelVolts(level, gain)
	min, max := minMax(trace)
	if line > max || line < min {
		return ErrTriggerOutOfRange
	}
	return nil
}

// triggerLevelFrame кодирует уровень для 12-битного ЦАП устройства.
// Значение сперва корректируется по усилению канала триггера
// (Trig_For_Up = 2048 + ((level-2048)/gain)/(4/3)), затем разбивается
// на msb=val/16 и lsb=(val%16)*16.
func triggerLevelFrame(cfg InstrumentConfig) []byte {
	gain := 1.0
	switch cfg.TrigSource {
	case TriggerCh1:
		gain = cfg.Ch1Gain
	case TriggerCh2:
		gain = cfg.Ch2Gain
	}
	corrected := 2048 + int((float64(cfg.TrigLevel-2048)/gain)/(4.0/3.0))
	if corrected < 0 {
		corrected = 0
	}
	if corrected > 4095 {
		corrected = 4095
	}
	msb := corrected / 16
	lsb := (corrected % 16) * 16
	return []byte{opSetTrigLevel, byte(msb), byte(lsb)}
}

func minMax(data []float64) (min, max float64) {
	min, max = data[0], data[0]
	for _, v := range data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

package goscope

import "time"

// Clock абстрагирует отложенные продолжения конечного автомата.
// Протокол устройства требует пауз между командами; вместо блокирующих
// задержек автомат планирует следующий шаг через Clock, что позволяет
// в тестах использовать фиктивные часы и прогонять протокол без железа.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer - отменяемый отложенный вызов.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// NewRealClock возвращает часы на основе time.AfterFunc.
func NewRealClock() Clock { return realClock{} }

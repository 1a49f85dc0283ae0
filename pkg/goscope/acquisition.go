package goscope

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Ошибки протокола захвата.
var (
	// ErrAcquisitionBusy: новый запрос пришел до завершения текущего.
	// Запрос отклоняется, а не ставится в очередь - наложение команд
	// рассинхронизирует протокол прошивки.
	ErrAcquisitionBusy = errors.New("захват уже выполняется")
	// ErrTimeout: состояние ожидания не получило данные в срок.
	ErrTimeout = errors.New("тайм-аут ожидания данных")
)

// AcquisitionState - состояние конечного автомата захвата.
type AcquisitionState int

const (
	StateIdle AcquisitionState = iota
	StateSettingUp
	StateWaitingForAck
	StateWaitingForCh1
	StateWaitingForCh2
	StateComplete
)

func (s AcquisitionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSettingUp:
		return "SettingUp"
	case StateWaitingForAck:
		return "WaitingForAck"
	case StateWaitingForCh1:
		return "WaitingForCh1"
	case StateWaitingForCh2:
		return "WaitingForCh2"
	case StateComplete:
		return "Complete"
	}
	return "Unknown"
}

// Тайминги протокола: прошивке нужна пауза между командами настройки,
// а каждое состояние ожидания ограничено общим тайм-аутом.
const (
	setupStepDelay = 50 * time.Millisecond
	stateTimeout   = 5000 * time.Millisecond
)

// RawCapture - результат одного захвата: сырые байты АЦП обоих каналов.
type RawCapture struct {
	Ch1         []byte
	Ch2         []byte
	DataLength  int
	DualChannel bool
}

// Acquirer ведет фиксированную последовательность команд захвата и
// демультиплексирует байтовый поток в буферы каналов. Автомат
// продвигается только по колбэкам готовности транспорта и таймерам.
type Acquirer struct {
	mu    sync.Mutex
	tr    Transport
	clock Clock

	state       AcquisitionState
	req         AcquisitionRequest
	bytesNeeded int
	ch1Raw      []byte
	ch2Raw      []byte
	inProgress  bool
	setupStep   int
	gen         uint64 // защита от срабатывания устаревших таймеров

	setupTimer   Timer
	timeoutTimer Timer

	onCapture  func(RawCapture)
	onError    func(error)
	onStatus   func(string)
	onIdleData func([]byte)
}

// NewAcquirer подключает автомат к транспорту.
func NewAcquirer(tr Transport, clock Clock) *Acquirer {
	a := &Acquirer{tr: tr, clock: clock, state: StateIdle}
	tr.SetOnReadable(a.handleReadable)
	return a
}

func (a *Acquirer) OnCapture(fn func(RawCapture)) { a.mu.Lock(); a.onCapture = fn; a.mu.Unlock() }
func (a *Acquirer) OnError(fn func(error))        { a.mu.Lock(); a.onError = fn; a.mu.Unlock() }
func (a *Acquirer) OnStatus(fn func(string))      { a.mu.Lock(); a.onStatus = fn; a.mu.Unlock() }

// OnIdleData получает байты, пришедшие вне цикла захвата: ответы на
// одиночные запросы вроде сигнатуры или состояния цифровых входов.
// Без обработчика такие байты сбрасываются.
func (a *Acquirer) OnIdleData(fn func([]byte)) { a.mu.Lock(); a.onIdleData = fn; a.mu.Unlock() }

// State возвращает текущее состояние автомата.
func (a *Acquirer) State() AcquisitionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// InProgress сообщает, выполняется ли захват.
func (a *Acquirer) InProgress() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inProgress
}

// Start начинает цикл захвата. Если захват уже идет, возвращает
// ErrAcquisitionBusy, не трогая текущую сессию.
func (a *Acquirer) Start(req AcquisitionRequest) error {
	a.mu.Lock()
	if a.inProgress {
		a.mu.Unlock()
		return ErrAcquisitionBusy
	}
	a.resetLocked()
	a.req = req
	if a.req.DataLength == 0 {
		a.req.DataLength = req.Mode.DataLength()
	}
	a.inProgress = true
	a.state = StateSettingUp
	a.setupStep = 0
	gen := a.gen
	a.mu.Unlock()

	a.runSetupStep(gen)
	return nil
}

// Abort принудительно возвращает автомат в Idle и шлет устройству
// команду прерывания. Ошибка записи уходит в onError: автомат при
// этом все равно сбрасывается.
func (a *Acquirer) Abort() {
	a.mu.Lock()
	if err := a.tr.Write(abortFrame()); err != nil {
		a.failLocked(fmt.Errorf("ошибка отправки команды прерывания: %w", err))
		return
	}
	a.tr.DiscardInput()
	a.resetLocked()
	a.mu.Unlock()
}

// setupFrames - кадры настройки, отправляемые с паузой setupStepDelay
// перед командой захвата.
func (a *Acquirer) setupFrameLocked(step int) []byte {
	cfg := a.req.Config
	switch step {
	case 0:
		return frame16(opSetCh1Offset, cfg.Ch1Offset)
	case 1:
		return frame16(opSetCh2Offset, cfg.Ch2Offset)
	case 2:
		return frame(opSetTrigSource, byte(cfg.TrigSource), 0)
	case 3:
		return frame(opSetTrigPolar, byte(cfg.TrigPolarity), 0)
	case 4:
		return triggerLevelFrame(cfg)
	case 5:
		return frame(opSetMode, a.req.Mode.wireMode(), 0)
	case 6:
		return frame(opSetSampleRate, byte(cfg.SampleRateIndex+1), 0)
	}
	return nil
}

func (a *Acquirer) runSetupStep(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.state != StateSettingUp {
		a.mu.Unlock()
		return
	}
	if a.setupStep >= 7 {
		// Настройка завершена: команда захвата и ожидание подтверждения.
		if err := a.tr.Write(captureFrame()); err != nil {
			a.failLocked(err)
			return
		}
		a.state = StateWaitingForAck
		a.bytesNeeded = 1
		a.armTimeoutLocked()
		a.mu.Unlock()
		return
	}
	cmd := a.setupFrameLocked(a.setupStep)
	if err := a.tr.Write(cmd); err != nil {
		a.failLocked(err)
		return
	}
	a.setupStep++
	a.setupTimer = a.clock.AfterFunc(setupStepDelay, func() { a.runSetupStep(gen) })
	a.mu.Unlock()
}

// handleReadable - единственная точка приема данных. Состояния ожидания
// не потребляют ни байта, пока не накопится весь логический кадр: это
// исключает расщепление кадра частичными чтениями.
func (a *Acquirer) handleReadable() {
	for {
		a.mu.Lock()
		if a.tr.BytesAvailable() == 0 {
			a.mu.Unlock()
			return
		}
		switch a.state {
		case StateWaitingForAck:
			if a.tr.BytesAvailable() < a.bytesNeeded {
				a.mu.Unlock()
				return
			}
			if _, err := a.tr.Read(a.bytesNeeded); err != nil {
				a.failLocked(err)
				return
			}
			// Содержимое подтверждения не проверяется; остатки в буфере
			// сбрасываются перед запросом данных.
			a.tr.DiscardInput()
			var sel byte
			switch {
			case a.req.Mode.DualChannel():
				sel = readDualCh1
				a.bytesNeeded = DualChannelLength
				a.state = StateWaitingForCh1
			case a.req.Mode == ModeCh1:
				sel = readCh1Only
				a.bytesNeeded = SingleChannelLength
				a.state = StateWaitingForCh1
			default:
				sel = readCh2Only
				a.bytesNeeded = SingleChannelLength
				a.state = StateWaitingForCh2
			}
			if err := a.tr.Write(readDataFrame(sel)); err != nil {
				a.failLocked(err)
				return
			}
			a.armTimeoutLocked()
			a.mu.Unlock()

		case StateWaitingForCh1:
			if a.tr.BytesAvailable() < a.bytesNeeded {
				a.mu.Unlock()
				return
			}
			data, err := a.tr.Read(a.bytesNeeded)
			if err != nil {
				a.failLocked(err)
				return
			}
			a.ch1Raw = data
			if a.req.Mode.DualChannel() {
				if err := a.tr.Write(readDataFrame(readDualCh2)); err != nil {
					a.failLocked(err)
					return
				}
				a.bytesNeeded = DualChannelLength
				a.state = StateWaitingForCh2
				a.armTimeoutLocked()
				a.mu.Unlock()
			} else {
				a.completeLocked()
			}

		case StateWaitingForCh2:
			if a.tr.BytesAvailable() < a.bytesNeeded {
				a.mu.Unlock()
				return
			}
			data, err := a.tr.Read(a.bytesNeeded)
			if err != nil {
				a.failLocked(err)
				return
			}
			a.ch2Raw = data
			a.completeLocked()

		default:
			if fn := a.onIdleData; fn != nil {
				data, err := a.tr.Read(a.tr.BytesAvailable())
				a.mu.Unlock()
				if err != nil {
					return
				}
				fn(data)
				continue
			}
			// Незапрошенные байты в Idle или во время настройки:
			// сбрасываем буфер, чтобы не рассинхронизировать протокол.
			a.tr.DiscardInput()
			a.mu.Unlock()
			return
		}
	}
}

func (a *Acquirer) armTimeoutLocked() {
	if a.timeoutTimer != nil {
		a.timeoutTimer.Stop()
	}
	gen := a.gen
	state := a.state
	a.timeoutTimer = a.clock.AfterFunc(stateTimeout, func() { a.handleTimeout(gen, state) })
}

func (a *Acquirer) handleTimeout(gen uint64, state AcquisitionState) {
	a.mu.Lock()
	if gen != a.gen || a.state != state {
		a.mu.Unlock()
		return
	}
	a.tr.DiscardInput()
	onError := a.onError
	a.resetLocked()
	a.mu.Unlock()
	if onError != nil {
		onError(fmt.Errorf("%w (состояние %s)", ErrTimeout, state))
	}
}

// completeLocked освобождает mu.
func (a *Acquirer) completeLocked() {
	a.state = StateComplete
	capture := RawCapture{
		Ch1:         a.ch1Raw,
		Ch2:         a.ch2Raw,
		DataLength:  a.req.DataLength,
		DualChannel: a.req.Mode.DualChannel(),
	}
	onCapture := a.onCapture
	onStatus := a.onStatus
	a.resetLocked()
	a.mu.Unlock()
	if onStatus != nil {
		onStatus("захват завершен")
	}
	if onCapture != nil {
		onCapture(capture)
	}
}

// failLocked освобождает mu.
func (a *Acquirer) failLocked(err error) {
	onError := a.onError
	a.tr.DiscardInput()
	a.resetLocked()
	a.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

func (a *Acquirer) resetLocked() {
	a.state = StateIdle
	a.bytesNeeded = 0
	a.ch1Raw = nil
	a.ch2Raw = nil
	a.inProgress = false
	a.setupStep = 0
	a.gen++
	if a.setupTimer != nil {
		a.setupTimer.Stop()
		a.setupTimer = nil
	}
	if a.timeoutTimer != nil {
		a.timeoutTimer.Stop()
		a.timeoutTimer = nil
	}
}

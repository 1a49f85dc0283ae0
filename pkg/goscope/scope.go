package goscope

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/momentics/goscope/internal/util"
)

var (
	// ErrBadGainIndex возвращается при индексе усиления вне таблицы
	// GainValues.
	ErrBadGainIndex = errors.New("недопустимый индекс усиления")
	// ErrBadChannel возвращается при номере канала, отличном от 1 и 2.
	ErrBadChannel = errors.New("недопустимый номер канала")
	// ErrNoReply возвращается, когда устройство не ответило на
	// одиночный запрос.
	ErrNoReply = errors.New("устройство не ответило")
)

// idleReplyTimeout — предельное ожидание однобайтового ответа на
// одиночный запрос (сигнатура, цифровые входы).
const idleReplyTimeout = time.Second

// digitalCommandGap — пауза между кадрами настройки цифрового
// генератора частоты.
const digitalCommandGap = 30 * time.Millisecond

// CaptureResult — осциллограмма с примененной калибровкой и
// постобработкой.
type CaptureResult struct {
	Mode             Mode
	SampleRateIndex  int
	SampleIntervalUS float64
	Ch1              []float64 // пусто в режиме ModeCh2
	Ch2              []float64 // пусто в режиме ModeCh1
	Raw              RawCapture
}

// Scope — фасад прибора: объединяет транспорт, машину захвата и
// свип-движок, хранит текущую конфигурацию каналов.
type Scope struct {
	tr    Transport
	clock Clock
	acq   *Acquirer
	sweep *Sweeper

	mu  sync.RWMutex
	cfg InstrumentConfig

	// opMu закрепляет автомат захвата за одной блокирующей операцией
	// фасада. Вторая операция отклоняется, не трогая обработчики идущей.
	opMu sync.Mutex
}

// NewScope собирает фасад поверх открытого транспорта.
func NewScope(tr Transport, clock Clock) *Scope {
	acq := NewAcquirer(tr, clock)
	return &Scope{
		tr:    tr,
		clock: clock,
		acq:   acq,
		sweep: NewSweeper(tr, acq, clock),
		cfg:   DefaultConfig(),
	}
}

// Acquirer открывает доступ к машине захвата для событийной работы.
func (s *Scope) Acquirer() *Acquirer { return s.acq }

// Sweeper открывает доступ к свип-движку для событийной работы.
func (s *Scope) Sweeper() *Sweeper { return s.sweep }

// Config возвращает текущую конфигурацию каналов.
func (s *Scope) Config() InstrumentConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig замещает конфигурацию каналов целиком. В работу она идет
// при следующем захвате.
func (s *Scope) SetConfig(cfg InstrumentConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// SetGain устанавливает усиление канала по индексу таблицы GainValues
// и немедленно шлет команду устройству.
func (s *Scope) SetGain(channel, gainIndex int) error {
	if gainIndex < 0 || gainIndex >= len(GainValues) {
		return fmt.Errorf("%w: %d", ErrBadGainIndex, gainIndex)
	}
	if channel != 1 && channel != 2 {
		return fmt.Errorf("%w: %d", ErrBadChannel, channel)
	}
	if err := s.tr.Write(gainFrame(channel-1, gainIndex)); err != nil {
		return err
	}
	s.mu.Lock()
	if channel == 1 {
		s.cfg.Ch1Gain = GainValues[gainIndex]
	} else {
		s.cfg.Ch2Gain = GainValues[gainIndex]
	}
	s.mu.Unlock()
	return nil
}

// SetOffset устанавливает смещение канала и шлет команду устройству.
func (s *Scope) SetOffset(channel, offset int) error {
	var op byte
	switch channel {
	case 1:
		op = opSetCh1Offset
	case 2:
		op = opSetCh2Offset
	default:
		return fmt.Errorf("%w: %d", ErrBadChannel, channel)
	}
	if err := s.tr.Write(frame16(op, offset)); err != nil {
		return err
	}
	s.mu.Lock()
	if channel == 1 {
		s.cfg.Ch1Offset = offset
	} else {
		s.cfg.Ch2Offset = offset
	}
	s.mu.Unlock()
	return nil
}

// SetTriggerLevel запоминает уровень триггера; устройству он уходит в
// последовательности настройки следующего захвата.
func (s *Scope) SetTriggerLevel(level int) {
	s.mu.Lock()
	s.cfg.TrigLevel = level
	s.mu.Unlock()
}

// ApplyTriggerLevel проверяет достижимость уровня на последней
// осциллограмме trace и запоминает его. При недостижимом уровне
// источник триггера сбрасывается в Auto, а уровень не меняется.
func (s *Scope) ApplyTriggerLevel(trace []float64, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ValidateTriggerLevel(trace, level, s.cfg.Ch1Gain); err != nil {
		s.cfg.TrigSource = TriggerAuto
		return err
	}
	s.cfg.TrigLevel = level
	return nil
}

// CaptureOnce выполняет один цикл захвата и блокируется до его
// завершения либо отмены контекста. Отмена контекста прерывает сеанс
// командой устройству. Во время свипа захват отклоняется, не трогая
// обработчики идущей сессии.
func (s *Scope) CaptureOnce(ctx context.Context, mode Mode) (*CaptureResult, error) {
	if !s.opMu.TryLock() {
		return nil, fmt.Errorf("%w: автомат занят другой операцией", ErrAcquisitionBusy)
	}
	defer s.opMu.Unlock()
	if s.sweep.Running() {
		return nil, fmt.Errorf("%w: идет свип", ErrAcquisitionBusy)
	}
	cfg := s.Config()
	req := NewAcquisitionRequest(mode, cfg)

	type outcome struct {
		capture RawCapture
		err     error
	}
	done := make(chan outcome, 1)
	s.acq.OnCapture(func(c RawCapture) { done <- outcome{capture: c} })
	s.acq.OnError(func(err error) { done <- outcome{err: err} })

	if err := s.acq.Start(req); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		s.acq.Abort()
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		ch1, ch2 := ConvertCapture(out.capture, cfg)
		return &CaptureResult{
			Mode:             mode,
			SampleRateIndex:  cfg.SampleRateIndex,
			SampleIntervalUS: SampleIntervalUS(cfg.SampleRateIndex),
			Ch1:              ch1,
			Ch2:              ch2,
			Raw:              out.capture,
		}, nil
	}
}

// BodeSweep выполняет свип целиком и блокируется до готовности
// частотной характеристики.
func (s *Scope) BodeSweep(ctx context.Context, cfg SweepConfig) (*BodeResult, error) {
	if cfg.Config == (InstrumentConfig{}) {
		cfg.Config = s.Config()
	}
	if !s.opMu.TryLock() {
		return nil, fmt.Errorf("%w: автомат занят другой операцией", ErrSweepBusy)
	}
	defer s.opMu.Unlock()

	type outcome struct {
		result *BodeResult
		err    error
	}
	done := make(chan outcome, 1)
	s.sweep.OnComplete(func(r *BodeResult) { done <- outcome{result: r} })
	s.sweep.OnError(func(err error) { done <- outcome{err: err} })

	if err := s.sweep.Start(cfg); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		s.sweep.Stop()
		return nil, ctx.Err()
	case out := <-done:
		return out.result, out.err
	}
}

// RunDDS программирует генератор и запускает воспроизведение формы.
// Возвращает план с фактической выходной частотой.
func (s *Scope) RunDDS(ctx context.Context, waveform Waveform, frequency int) (*DDSPlan, error) {
	plan := PlanDDS(waveform, frequency)
	frames := plan.Frames()
	for i, f := range frames {
		if err := s.tr.Write(f); err != nil {
			return nil, err
		}
		if i < len(frames)-1 {
			if err := s.sleep(ctx, ddsCommandGap); err != nil {
				return nil, err
			}
		}
	}
	return plan, nil
}

// SetDigitalFrequency программирует цифровой генератор частоты.
func (s *Scope) SetDigitalFrequency(ctx context.Context, frequency int) error {
	plan, err := PlanDigitalFrequency(frequency)
	if err != nil {
		return err
	}
	frames := plan.Frames()
	if err := s.tr.Write(frames[0]); err != nil {
		return err
	}
	if err := s.sleep(ctx, digitalCommandGap); err != nil {
		return err
	}
	return s.tr.Write(frames[1])
}

// DigitalWrite выставляет битовую маску цифровых выходов.
func (s *Scope) DigitalWrite(mask byte) error {
	return s.tr.Write(digitalOutFrame(mask))
}

// DigitalRead запрашивает состояние цифровых входов.
func (s *Scope) DigitalRead(ctx context.Context) (byte, error) {
	return s.request1(ctx, digitalInFrame())
}

// ReadSignature запрашивает байт сигнатуры прошивки.
func (s *Scope) ReadSignature(ctx context.Context) (byte, error) {
	return s.request1(ctx, signatureFrame())
}

// BlinkLED мигает светодиодом платы для визуальной идентификации.
func (s *Scope) BlinkLED() error {
	return s.tr.Write(blinkLEDFrame())
}

// Abort прерывает текущий захват.
func (s *Scope) Abort() { s.acq.Abort() }

// Close останавливает работу и закрывает транспорт.
func (s *Scope) Close() error {
	s.sweep.Stop()
	s.acq.Abort()
	return s.tr.Close()
}

// request1 шлет однобайтовый запрос и ждет один байт ответа.
func (s *Scope) request1(ctx context.Context, req []byte) (byte, error) {
	reply := make(chan byte, 1)
	s.acq.OnIdleData(func(data []byte) {
		if len(data) > 0 {
			select {
			case reply <- data[0]:
			default:
			}
		}
	})
	defer s.acq.OnIdleData(nil)

	s.tr.DiscardInput()
	if err := s.tr.Write(req); err != nil {
		return 0, err
	}
	timeout := make(chan struct{})
	timer := s.clock.AfterFunc(idleReplyTimeout, func() { close(timeout) })
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timeout:
		return 0, ErrNoReply
	case b := <-reply:
		return b, nil
	}
}

// sleep ждет d через часы фасада, уважая отмену контекста.
func (s *Scope) sleep(ctx context.Context, d time.Duration) error {
	done := make(chan struct{})
	timer := s.clock.AfterFunc(d, func() { close(done) })
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// ScopePool управляет пулом приборов для многопоточного доступа.
type ScopePool struct {
	devices map[string]*Scope
	mu      sync.RWMutex
}

func NewScopePool() *ScopePool { return &ScopePool{devices: make(map[string]*Scope)} }

// Get возвращает прибор на указанном порту, открывая его при первом
// обращении. Пустой путь включает автопоиск платы по VID/PID.
func (p *ScopePool) Get(portPath string) (*Scope, error) {
	p.mu.RLock()
	if sc, exists := p.devices[portPath]; exists {
		p.mu.RUnlock()
		return sc, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if sc, exists := p.devices[portPath]; exists {
		return sc, nil
	}

	path := portPath
	if path == "" {
		found, err := util.FindInstrumentPort()
		if err != nil {
			return nil, fmt.Errorf("автопоиск платы: %w", err)
		}
		path = found
	}

	tr := NewSerialTransport()
	if err := tr.Open(path); err != nil {
		return nil, fmt.Errorf("ошибка открытия порта %s: %w", path, err)
	}

	sc := NewScope(tr, NewRealClock())
	p.devices[portPath] = sc
	return sc, nil
}

// CloseAll закрывает все открытые приборы.
func (p *ScopePool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sc := range p.devices {
		sc.Close()
	}
}

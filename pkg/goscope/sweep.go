package goscope

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	// ErrSweepBusy возвращается при попытке запустить свип поверх
	// уже идущего.
	ErrSweepBusy = errors.New("свип уже выполняется")
	// ErrSweepConfig возвращается при некорректных параметрах свипа.
	ErrSweepConfig = errors.New("некорректные параметры свипа")
)

// minSettleDelay — нижняя граница паузы на установление сигнала после
// смены частоты генератора.
const minSettleDelay = 50 * time.Millisecond

// SweepFrequencies строит логарифмически равномерную сетку из points
// частот от start до stop включительно.
func SweepFrequencies(start, stop float64, points int) []float64 {
	if points < 2 || start <= 0 || stop <= start {
		return nil
	}
	logStart := math.Log10(start)
	step := (math.Log10(stop) - logStart) / float64(points-1)
	freqs := make([]float64, points)
	for i := range freqs {
		freqs[i] = math.Pow(10, logStart+float64(i)*step)
	}
	return freqs
}

// FindSampleRateIndex подбирает самую медленную частоту выборки, все
// еще превышающую частоту сигнала более чем в девять раз. Если такой
// нет, берется самая быстрая.
func FindSampleRateIndex(freq float64) int {
	for i := len(SampleRates) - 1; i >= 0; i-- {
		if SampleRates[i] > 9*freq {
			return i
		}
	}
	return 0
}

// settleDelay возвращает паузу на установление: не меньше трех периодов
// сигнала и не меньше minSettleDelay.
func settleDelay(freq float64) time.Duration {
	d := time.Duration(3 * float64(time.Second) / freq)
	if d < minSettleDelay {
		d = minSettleDelay
	}
	return d
}

// SweepConfig — параметры свипа для снятия частотной характеристики.
// Вход исследуемой цепи подключается к CH1, выход к CH2.
type SweepConfig struct {
	StartFreq float64
	StopFreq  float64
	Points    int
	Waveform  Waveform // форма тестового сигнала, по умолчанию синус
	Config    InstrumentConfig
}

// Sweeper прогоняет генератор по сетке частот, снимая на каждом шаге
// осциллограмму обоих каналов. По завершении строит частотную
// характеристику.
//
// Sweeper на время свипа забирает себе обработчики Acquirer.
type Sweeper struct {
	mu    sync.Mutex
	tr    Transport
	acq   *Acquirer
	clock Clock

	running bool
	gen     uint64
	idx     int
	freqs   []float64
	traces  []SweepTrace
	cfg     SweepConfig

	onComplete func(*BodeResult)
	onProgress func(step, total int, freq float64)
	onError    func(error)
}

// NewSweeper создает свип-движок поверх готового транспорта и машины
// захвата.
func NewSweeper(tr Transport, acq *Acquirer, clock Clock) *Sweeper {
	return &Sweeper{tr: tr, acq: acq, clock: clock}
}

func (s *Sweeper) OnComplete(fn func(*BodeResult)) {
	s.mu.Lock()
	s.onComplete = fn
	s.mu.Unlock()
}

func (s *Sweeper) OnProgress(fn func(step, total int, freq float64)) {
	s.mu.Lock()
	s.onProgress = fn
	s.mu.Unlock()
}

func (s *Sweeper) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// Running сообщает, идет ли свип.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start запускает свип. Параллельный свип не допускается; текущая
// сессия при отказе не затрагивается.
func (s *Sweeper) Start(cfg SweepConfig) error {
	freqs := SweepFrequencies(cfg.StartFreq, cfg.StopFreq, cfg.Points)
	if freqs == nil {
		return fmt.Errorf("%w: %g..%g Гц, %d точек", ErrSweepConfig, cfg.StartFreq, cfg.StopFreq, cfg.Points)
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSweepBusy
	}
	if s.acq.InProgress() {
		s.mu.Unlock()
		return ErrAcquisitionBusy
	}
	s.running = true
	s.gen++
	gen := s.gen
	s.idx = 0
	s.freqs = freqs
	s.traces = s.traces[:0]
	s.cfg = cfg
	s.acq.OnCapture(func(c RawCapture) { s.handleCapture(gen, c) })
	s.acq.OnError(func(err error) { s.fail(gen, err) })
	s.mu.Unlock()

	s.runStep(gen)
	return nil
}

// Stop прерывает свип. Уже запланированные продолжения гасятся по
// номеру поколения.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	s.mu.Unlock()
	s.acq.Abort()
}

// runStep выполняет один шаг свипа: программирует генератор, выжидает
// установление и запускает захват.
func (s *Sweeper) runStep(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	if s.idx >= len(s.freqs) {
		s.mu.Unlock()
		s.finish(gen)
		return
	}
	freq := s.freqs[s.idx]
	waveform := s.cfg.Waveform
	if onProgress := s.onProgress; onProgress != nil {
		step, total := s.idx+1, len(s.freqs)
		defer onProgress(step, total, freq)
	}
	s.mu.Unlock()

	plan := PlanDDS(waveform, int(math.Round(freq)))
	s.sendFrames(gen, plan.Frames(), func() {
		s.clock.AfterFunc(settleDelay(freq), func() { s.startCapture(gen, freq) })
	})
}

// sendFrames отправляет кадры по одному с паузой ddsCommandGap и по
// завершении вызывает done.
func (s *Sweeper) sendFrames(gen uint64, frames [][]byte, done func()) {
	if len(frames) == 0 {
		done()
		return
	}
	if !s.alive(gen) {
		return
	}
	if err := s.tr.Write(frames[0]); err != nil {
		s.fail(gen, err)
		return
	}
	s.clock.AfterFunc(ddsCommandGap, func() { s.sendFrames(gen, frames[1:], done) })
}

func (s *Sweeper) startCapture(gen uint64, freq float64) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	cfg := s.cfg.Config
	cfg.SampleRateIndex = FindSampleRateIndex(freq)
	req := NewAcquisitionRequest(ModeBoth, cfg)
	s.mu.Unlock()

	if err := s.acq.Start(req); err != nil {
		s.fail(gen, err)
	}
}

func (s *Sweeper) handleCapture(gen uint64, c RawCapture) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	freq := s.freqs[s.idx]
	cfg := s.cfg.Config
	cfg.SampleRateIndex = FindSampleRateIndex(freq)
	ch1, ch2 := ConvertCapture(c, cfg)
	s.traces = append(s.traces, SweepTrace{
		Frequency:        freq,
		Input:            ch1,
		Output:           ch2,
		SampleIntervalUS: SampleIntervalUS(cfg.SampleRateIndex),
	})
	s.idx++
	s.mu.Unlock()

	s.runStep(gen)
}

func (s *Sweeper) finish(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	traces := make([]SweepTrace, len(s.traces))
	copy(traces, s.traces)
	onComplete := s.onComplete
	s.mu.Unlock()

	result := ComputeBode(traces)
	if onComplete != nil {
		onComplete(result)
	}
}

func (s *Sweeper) fail(gen uint64, err error) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	onError := s.onError
	s.mu.Unlock()

	if onError != nil {
		onError(fmt.Errorf("свип прерван: %w", err))
	}
}

func (s *Sweeper) alive(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && gen == s.gen
}

package goscope

import (
	"bytes"
	"fmt"
	"sync"
	"time"
)

// fakeTransport - транспорт для симуляции ответов устройства.
// Метод feed кладет байты во входной буфер и дергает обработчик
// готовности, как это делает поток чтения реального порта.
type fakeTransport struct {
	mu         sync.Mutex
	rx         bytes.Buffer
	writes     [][]byte
	onReadable func()
	onWrite    func(frame []byte)
	writeErr   error
}

func newFakeTransport() *fakeTransport { return &fakeTransport{} }

func (t *fakeTransport) Open(name string) error { return nil }
func (t *fakeTransport) Close() error           { return nil }

func (t *fakeTransport) Write(p []byte) error {
	t.mu.Lock()
	if t.writeErr != nil {
		err := t.writeErr
		t.mu.Unlock()
		return err
	}
	frame := append([]byte(nil), p...)
	t.writes = append(t.writes, frame)
	onWrite := t.onWrite
	t.mu.Unlock()
	if onWrite != nil {
		onWrite(frame)
	}
	return nil
}

func (t *fakeTransport) BytesAvailable() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rx.Len()
}

func (t *fakeTransport) Read(n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > t.rx.Len() {
		return nil, fmt.Errorf("запрошено %d байт при доступных %d", n, t.rx.Len())
	}
	out := make([]byte, n)
	t.rx.Read(out)
	return out, nil
}

func (t *fakeTransport) DiscardInput() {
	t.mu.Lock()
	t.rx.Reset()
	t.mu.Unlock()
}

func (t *fakeTransport) SetOnReadable(fn func()) {
	t.mu.Lock()
	t.onReadable = fn
	t.mu.Unlock()
}

func (t *fakeTransport) SetOnError(fn func(err error)) {}

func (t *fakeTransport) feed(data []byte) {
	t.mu.Lock()
	t.rx.Write(data)
	fn := t.onReadable
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// written возвращает копию журнала отправленных кадров.
func (t *fakeTransport) written() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.writes))
	copy(out, t.writes)
	return out
}

// lastWrite возвращает последний отправленный кадр или nil.
func (t *fakeTransport) lastWrite() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.writes) == 0 {
		return nil
	}
	return t.writes[len(t.writes)-1]
}

// countOpcode считает кадры с заданным опкодом.
func (t *fakeTransport) countOpcode(op byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, w := range t.writes {
		if len(w) > 0 && w[0] == op {
			n++
		}
	}
	return n
}

// fakeClock - детерминированные часы для тестов. Advance продвигает
// время и синхронно выполняет все созревшие таймеры в порядке
// срабатывания, включая таймеры, созданные по ходу выполнения.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Duration
	fn      func()
	fired   bool
	stopped bool
}

func newFakeClock() *fakeClock { return &fakeClock{} }

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.fired && !t.stopped
	t.stopped = true
	return active
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.when > target {
				continue
			}
			if next == nil || t.when < next.when {
				next = t
			}
		}
		if next == nil {
			break
		}
		if next.when > c.now {
			c.now = next.when
		}
		next.fired = true
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// scriptedDevice имитирует прошивку: отвечает подтверждением на команду
// захвата и буферами каналов на запросы данных. Ответы приходят с
// миллисекундной задержкой, как у реального моста USB-CDC.
type scriptedDevice struct {
	tr    *fakeTransport
	clock *fakeClock
}

func attachScriptedDevice(tr *fakeTransport, clock *fakeClock) *scriptedDevice {
	d := &scriptedDevice{tr: tr, clock: clock}
	tr.mu.Lock()
	tr.onWrite = d.handleWrite
	tr.mu.Unlock()
	return d
}

func (d *scriptedDevice) handleWrite(frame []byte) {
	if len(frame) == 0 {
		return
	}
	switch frame[0] {
	case opCapture:
		d.clock.AfterFunc(time.Millisecond, func() { d.tr.feed([]byte{0x06}) })
	case opReadData:
		n := DualChannelLength
		if frame[1] == readCh1Only || frame[1] == readCh2Only {
			n = SingleChannelLength
		}
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i % 256)
		}
		d.clock.AfterFunc(time.Millisecond, func() { d.tr.feed(data) })
	}
}

package goscope

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/momentics/goscope/internal/util"
)

// ErrPortClosed возвращается при операциях над закрытым транспортом.
var ErrPortClosed = errors.New("последовательный порт закрыт")

// Transport - асинхронный байтовый поток к прибору. Все чтения
// инициируются колбэком onReadable: ядро никогда не рассчитывает на
// синхронный ответ устройства.
type Transport interface {
	Open(name string) error
	Close() error
	Write(p []byte) error
	BytesAvailable() int
	Read(n int) ([]byte, error)
	DiscardInput()
	SetOnReadable(fn func())
	SetOnError(fn func(err error))
}

// SerialTransport реализует Transport поверх последовательного порта 115200 8N1.
type SerialTransport struct {
	mu         sync.Mutex
	port       util.SerialPortInterface
	rx         bytes.Buffer
	closed     bool
	done       chan struct{}
	onReadable func()
	onError    func(error)
}

// NewSerialTransport создает транспорт без открытого порта.
func NewSerialTransport() *SerialTransport {
	return &SerialTransport{}
}

// Open открывает порт и запускает горутину чтения. Повторный вызов
// закрывает предыдущий порт.
func (t *SerialTransport) Open(name string) error {
	t.mu.Lock()
	if t.port != nil {
		t.closeLocked()
	}
	mode := &serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	port, err := util.OpenPort(name, mode)
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("ошибка открытия порта %s: %w", name, err)
	}
	t.port = port
	t.closed = false
	t.rx.Reset()
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.readLoop(port, t.done)
	return nil
}

func (t *SerialTransport) readLoop(port util.SerialPortInterface, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 512)
	for {
		n, err := port.Read(buf)
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		if n > 0 {
			t.rx.Write(buf[:n])
		}
		readable := t.onReadable
		onErr := t.onError
		t.mu.Unlock()

		if n > 0 && readable != nil {
			readable()
		}
		if err != nil {
			if onErr != nil {
				onErr(fmt.Errorf("ошибка чтения порта: %w", err))
			}
			return
		}
	}
}

// Close останавливает чтение и закрывает порт.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *SerialTransport) closeLocked() error {
	if t.port == nil || t.closed {
		return nil
	}
	t.closed = true
	err := t.port.Close()
	t.port = nil
	return err
}

// Write отправляет кадр целиком.
func (t *SerialTransport) Write(p []byte) error {
	t.mu.Lock()
	port := t.port
	closed := t.closed
	t.mu.Unlock()
	if port == nil || closed {
		return ErrPortClosed
	}
	n, err := port.Write(p)
	if err != nil {
		return fmt.Errorf("ошибка записи в порт: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("записано %d байт из %d", n, len(p))
	}
	return nil
}

// BytesAvailable возвращает число накопленных непрочитанных байт.
func (t *SerialTransport) BytesAvailable() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rx.Len()
}

// Read извлекает ровно n байт; возвращает ошибку, если накоплено меньше.
func (t *SerialTransport) Read(n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > t.rx.Len() {
		return nil, fmt.Errorf("запрошено %d байт, доступно %d", n, t.rx.Len())
	}
	out := make([]byte, n)
	copy(out, t.rx.Next(n))
	return out, nil
}

// DiscardInput сбрасывает накопленный буфер приема.
func (t *SerialTransport) DiscardInput() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rx.Reset()
	if t.port != nil && !t.closed {
		t.port.ResetInputBuffer()
	}
}

func (t *SerialTransport) SetOnReadable(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReadable = fn
}

func (t *SerialTransport) SetOnError(fn func(err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

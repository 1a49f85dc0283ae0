// Package util содержит вспомогательные утилиты, не являющиеся частью публичного API.
package util

import (
	"errors"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Идентификаторы USB-моста осциллографа (Atmel CDC).
const (
	InstrumentVID = "03EB"
	InstrumentPID = "2404"
)

// SerialPortInterface определяет интерфейс для работы с последовательным портом.
// Это позволяет нам использовать реальный порт в production и мок-объект в тестах.
type SerialPortInterface interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// realPort - это обертка над реальной реализацией последовательного порта.
type realPort struct {
	port serial.Port
}

func (r *realPort) Read(p []byte) (n int, err error)     { return r.port.Read(p) }
func (r *realPort) Write(p []byte) (n int, err error)    { return r.port.Write(p) }
func (r *realPort) Close() error                         { return r.port.Close() }
func (r *realPort) SetReadTimeout(t time.Duration) error { return r.port.SetReadTimeout(t) }
func (r *realPort) ResetInputBuffer() error              { return r.port.ResetInputBuffer() }

// OpenPort открывает реальный последовательный порт.
func OpenPort(path string, mode *serial.Mode) (SerialPortInterface, error) {
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return &realPort{port: p}, nil
}

// PortInfo описывает обнаруженный последовательный порт.
type PortInfo struct {
	Name string
	VID  string
	PID  string
}

// ListPorts возвращает все доступные последовательные порты с их
// USB-идентификаторами, если порт является USB-устройством.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	infos := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		infos = append(infos, PortInfo{Name: p.Name, VID: p.VID, PID: p.PID})
	}
	return infos, nil
}

// FindInstrumentPort ищет порт осциллографа по VID/PID USB-моста.
func FindInstrumentPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if strings.EqualFold(p.VID, InstrumentVID) && strings.EqualFold(p.PID, InstrumentPID) {
			return p.Name, nil
		}
	}
	return "", errors.New("устройство не найдено среди доступных портов")
}

// Package main - HTTP-сервер для работы с осциллографом goscope.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/ini.v1"

	"github.com/momentics/goscope/internal/util"
	"github.com/momentics/goscope/pkg/goscope"
)

var (
	captureDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "goscope_capture_duration_seconds",
			Help: "Duration of oscilloscope capture operations",
		},
		[]string{"port"},
	)
	protocolTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "goscope_protocol_timeouts_total",
			Help: "Total number of instrument protocol timeouts",
		},
	)
)

func init() {
	prometheus.MustRegister(captureDuration, protocolTimeouts)
}

// serverConfig — параметры сервера из ini-файла и флагов.
type serverConfig struct {
	Listen      string
	DefaultPort string
	SweepStart  float64
	SweepStop   float64
	SweepPoints int
}

func loadConfig(path string) serverConfig {
	cfg := serverConfig{
		Listen:      ":8080",
		SweepStart:  100,
		SweepStop:   10000,
		SweepPoints: 20,
	}
	if path == "" {
		return cfg
	}
	file, err := ini.Load(path)
	if err != nil {
		log.Printf("Конфигурация %s не загружена: %v", path, err)
		return cfg
	}
	srv := file.Section("server")
	cfg.Listen = srv.Key("listen").MustString(cfg.Listen)
	instr := file.Section("instrument")
	cfg.DefaultPort = instr.Key("port").MustString(cfg.DefaultPort)
	sweep := file.Section("sweep")
	cfg.SweepStart = sweep.Key("start").MustFloat64(cfg.SweepStart)
	cfg.SweepStop = sweep.Key("stop").MustFloat64(cfg.SweepStop)
	cfg.SweepPoints = sweep.Key("points").MustInt(cfg.SweepPoints)
	return cfg
}

func main() {
	configPath := flag.String("config", "", "путь к ini-файлу конфигурации")
	listen := flag.String("listen", "", "адрес прослушивания, перекрывает конфигурацию")
	port := flag.String("port", "", "последовательный порт прибора, перекрывает конфигурацию")
	flag.Parse()

	cfg := loadConfig(*configPath)
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *port != "" {
		cfg.DefaultPort = *port
	}

	pool := goscope.NewScopePool()
	defer pool.CloseAll()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/capture", captureHandler(pool, cfg))
	mux.HandleFunc("/api/v1/bode", bodeHandler(pool, cfg))
	mux.HandleFunc("/api/v1/dds", ddsHandler(pool, cfg))
	mux.HandleFunc("/api/v1/stream", streamHandler(pool, cfg))
	mux.HandleFunc("/api/v1/ports", portsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Listen, Handler: mux}

	go func() {
		log.Printf("Сервер запущен на %s", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка HTTP сервера: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Сервер останавливается...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Ошибка при корректном завершении сервера: %v", err)
	}
	log.Println("Сервер успешно остановлен.")
}

// resolvePort выбирает порт из запроса либо из конфигурации. Пустое
// значение включает автопоиск платы.
func resolvePort(r *http.Request, cfg serverConfig) string {
	if p := r.URL.Query().Get("port"); p != "" {
		return p
	}
	return cfg.DefaultPort
}

func parseMode(s string) (goscope.Mode, error) {
	switch strings.ToLower(s) {
	case "", "both":
		return goscope.ModeBoth, nil
	case "ch1":
		return goscope.ModeCh1, nil
	case "ch2":
		return goscope.ModeCh2, nil
	}
	return 0, fmt.Errorf("неизвестный режим %q", s)
}

func observeCaptureErr(err error) {
	if errors.Is(err, goscope.ErrTimeout) {
		protocolTimeouts.Inc()
	}
}

func captureHandler(pool *goscope.ScopePool, cfg serverConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		port := resolvePort(r, cfg)
		mode, err := parseMode(r.URL.Query().Get("mode"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sc, err := pool.Get(port)
		if err != nil {
			http.Error(w, fmt.Sprintf("Ошибка устройства: %v", err), http.StatusInternalServerError)
			return
		}

		start := time.Now()
		result, err := sc.CaptureOnce(r.Context(), mode)
		if err != nil {
			observeCaptureErr(err)
			http.Error(w, fmt.Sprintf("Ошибка захвата: %v", err), http.StatusInternalServerError)
			return
		}
		captureDuration.WithLabelValues(port).Observe(time.Since(start).Seconds())

		withSpectrum := r.URL.Query().Get("fft") == "1"
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Write([]byte(result.ToCSV(withSpectrum)))
	}
}

func bodeHandler(pool *goscope.ScopePool, cfg serverConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		port := resolvePort(r, cfg)
		sc, err := pool.Get(port)
		if err != nil {
			http.Error(w, fmt.Sprintf("Ошибка устройства: %v", err), http.StatusInternalServerError)
			return
		}

		sweepCfg := goscope.SweepConfig{
			StartFreq: queryFloat(r, "start", cfg.SweepStart),
			StopFreq:  queryFloat(r, "stop", cfg.SweepStop),
			Points:    queryInt(r, "points", cfg.SweepPoints),
		}
		result, err := sc.BodeSweep(r.Context(), sweepCfg)
		if err != nil {
			observeCaptureErr(err)
			http.Error(w, fmt.Sprintf("Ошибка свипа: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Write([]byte(result.ToCSV()))
	}
}

func ddsHandler(pool *goscope.ScopePool, cfg serverConfig) http.HandlerFunc {
	waveforms := map[string]goscope.Waveform{
		"sine":     goscope.WaveformSine,
		"square":   goscope.WaveformSquare,
		"triangle": goscope.WaveformTriangle,
		"rampup":   goscope.WaveformRampUp,
		"rampdown": goscope.WaveformRampDown,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		port := resolvePort(r, cfg)
		sc, err := pool.Get(port)
		if err != nil {
			http.Error(w, fmt.Sprintf("Ошибка устройства: %v", err), http.StatusInternalServerError)
			return
		}
		waveform, ok := waveforms[strings.ToLower(r.URL.Query().Get("wave"))]
		if !ok {
			waveform = goscope.WaveformSine
		}
		freq := queryInt(r, "freq", 1000)
		plan, err := sc.RunDDS(r.Context(), waveform, freq)
		if err != nil {
			http.Error(w, fmt.Sprintf("Ошибка генератора: %v", err), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "frequency=%d output=%.3f period=%d samples=%d\n",
			plan.Frequency, plan.OutputFrequency, plan.TimerPeriod, plan.SampleCount)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamFrame — кадр потоковой выдачи осциллограмм по WebSocket.
type streamFrame struct {
	Ch1              []float64 `json:"ch1"`
	Ch2              []float64 `json:"ch2"`
	SampleIntervalUS float64   `json:"sample_interval_us"`
}

func streamHandler(pool *goscope.ScopePool, cfg serverConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		port := resolvePort(r, cfg)
		mode, err := parseMode(r.URL.Query().Get("mode"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sc, err := pool.Get(port)
		if err != nil {
			http.Error(w, fmt.Sprintf("Ошибка устройства: %v", err), http.StatusInternalServerError)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Ошибка обновления соединения: %v", err)
			return
		}
		defer conn.Close()

		for {
			start := time.Now()
			result, err := sc.CaptureOnce(r.Context(), mode)
			if err != nil {
				observeCaptureErr(err)
				log.Printf("Поток %s остановлен: %v", port, err)
				return
			}
			captureDuration.WithLabelValues(port).Observe(time.Since(start).Seconds())
			frame := streamFrame{
				Ch1:              result.Ch1,
				Ch2:              result.Ch2,
				SampleIntervalUS: result.SampleIntervalUS,
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

func portsHandler(w http.ResponseWriter, r *http.Request) {
	ports, err := util.ListPorts()
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка перечисления портов: %v", err), http.StatusInternalServerError)
		return
	}
	for _, p := range ports {
		fmt.Fprintf(w, "%s VID=%s PID=%s\n", p.Name, p.VID, p.PID)
	}
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	if s := r.URL.Query().Get(key); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return def
}

func queryInt(r *http.Request, key string, def int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return def
}

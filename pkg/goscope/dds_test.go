package goscope

import (
	"errors"
	"testing"
)

func TestNextPowerOf2(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {4, 4}, {5, 8},
		{65, 128}, {128, 128}, {65535, 65536}, {65536, 65536},
	}
	for _, c := range cases {
		if got := NextPowerOf2(c.in); got != c.want {
			t.Errorf("NextPowerOf2(%d): expected %d, got %d", c.in, c.want, got)
		}
	}
}

// Шаг аккумулятора никогда не равен нулю и всегда является степенью
// двойки.
func TestPhaseStep(t *testing.T) {
	for freq := 1; freq <= 50000; freq += 13 {
		step := PhaseStep(freq, ddsEventClock)
		if step < 1 {
			t.Fatalf("PhaseStep(%d) returned %d", freq, step)
		}
		if step&(step-1) != 0 {
			t.Fatalf("PhaseStep(%d) = %d is not a power of two", freq, step)
		}
	}
	if got := PhaseStep(1000, ddsEventClock); got != 128 {
		t.Errorf("PhaseStep(1000): expected 128, got %d", got)
	}
}

// Режим растяжения цикла: вся таблица занята одним периодом формы,
// частоту задает период таймера.
func TestPlanDDS_CycleStretch(t *testing.T) {
	plan := PlanDDS(WaveformRampUp, 100)
	if plan.SampleCount != ddsTableLen {
		t.Fatalf("Expected %d samples, got %d", ddsTableLen, plan.SampleCount)
	}
	if plan.PhaseStep != 0 {
		t.Fatalf("Cycle stretch must not use phase accumulator, got step %d", plan.PhaseStep)
	}
	want := ddsTimerClock / (100 * ddsTableLen)
	if plan.TimerPeriod != want {
		t.Fatalf("Expected timer period %d, got %d", want, plan.TimerPeriod)
	}
	// Нарастающая пила остается монотонной после пересэмплирования.
	for i := 1; i < ddsTableLen; i++ {
		if plan.Table[i] < plan.Table[i-1] {
			t.Fatalf("Ramp table not monotonic at %d: %d < %d", i, plan.Table[i], plan.Table[i-1])
		}
	}
}

// Стандартный режим: аккумулятор проходит полный цикл формы, таблица
// заполняется целиком.
func TestPlanDDS_Standard(t *testing.T) {
	plan := PlanDDS(WaveformSine, 2000)
	if plan.PhaseStep != 256 {
		t.Fatalf("Expected phase step 256, got %d", plan.PhaseStep)
	}
	if plan.SampleCount != 256 {
		t.Fatalf("Expected 256 samples, got %d", plan.SampleCount)
	}
	if plan.TimerPeriod != 63 {
		t.Fatalf("Expected corrected divider 63, got %d", plan.TimerPeriod)
	}
	// fout = 256 * 1e6 / 65536 = 3906.25, итоговая частота после
	// коррекции делителя близка к запрошенной.
	if plan.OutputFrequency < 1900 || plan.OutputFrequency > 2100 {
		t.Fatalf("Output frequency %v too far from 2000 Hz", plan.OutputFrequency)
	}
	// Таблица начинается с первого отсчета формы и не содержит
	// незаполненного хвоста.
	sine := WaveformSine.Table()
	if plan.Table[0] != sine[0] {
		t.Errorf("Table must start with waveform[0]")
	}
	if plan.Table[plan.SampleCount-1] == 0 && plan.Table[plan.SampleCount-2] != 0 {
		t.Errorf("Table tail left unfilled")
	}
}

// Частота прижимается к рабочему диапазону генератора.
func TestPlanDDS_Clamp(t *testing.T) {
	if plan := PlanDDS(WaveformSine, 0); plan.Frequency != MinDDSFrequency {
		t.Errorf("Expected clamp to %d, got %d", MinDDSFrequency, plan.Frequency)
	}
	if plan := PlanDDS(WaveformSine, 100000); plan.Frequency != MaxDDSFrequency {
		t.Errorf("Expected clamp to %d, got %d", MaxDDSFrequency, plan.Frequency)
	}
}

// Кадры загрузки: период, число выборок, таблица и запуск.
func TestDDSPlan_Frames(t *testing.T) {
	plan := PlanDDS(WaveformSine, 2000)
	frames := plan.Frames()
	if len(frames) != 4 {
		t.Fatalf("Expected 4 frames, got %d", len(frames))
	}
	if frames[0][0] != opSetDDSPeriod || int(frames[0][1])*256+int(frames[0][2]) != plan.TimerPeriod {
		t.Errorf("Period frame mismatch: % x", frames[0])
	}
	if frames[1][0] != opSetDDSSamples || int(frames[1][1])*256+int(frames[1][2]) != plan.SampleCount {
		t.Errorf("Samples frame mismatch: % x", frames[1])
	}
	if frames[2][0] != opSendDDSTable || len(frames[2]) != plan.SampleCount+3 {
		t.Errorf("Table frame mismatch: opcode %#x, length %d", frames[2][0], len(frames[2]))
	}
	if frames[3][0] != opRunDDS {
		t.Errorf("Run frame mismatch: % x", frames[3])
	}
}

// Каскад предделителей цифрового генератора.
func TestPlanDigitalFrequency(t *testing.T) {
	cases := []struct {
		freq, count, index int
	}{
		{1000, 32000, 0},
		{400, 40000, 1},
		{1, 31250, 6},
	}
	for _, c := range cases {
		plan, err := PlanDigitalFrequency(c.freq)
		if err != nil {
			t.Fatalf("PlanDigitalFrequency(%d) failed: %v", c.freq, err)
		}
		if plan.Count != c.count || plan.DividerIndex != c.index {
			t.Errorf("Freq %d: expected count=%d index=%d, got count=%d index=%d",
				c.freq, c.count, c.index, plan.Count, plan.DividerIndex)
		}
	}
	if _, err := PlanDigitalFrequency(0); !errors.Is(err, ErrDigitalFrequency) {
		t.Fatalf("Expected ErrDigitalFrequency for 0 Hz, got %v", err)
	}
}

func TestDigitalFrequencyPlan_Frames(t *testing.T) {
	plan, err := PlanDigitalFrequency(1000)
	if err != nil {
		t.Fatal(err)
	}
	frames := plan.Frames()
	if frames[0][0] != opSetDigCount || int(frames[0][1])*256+int(frames[0][2]) != 32000 {
		t.Errorf("Count frame mismatch: % x", frames[0])
	}
	if frames[1][0] != opSetDigDivIndex || frames[1][1] != 0 {
		t.Errorf("Index frame mismatch: % x", frames[1])
	}
}

// Все пять таблиц формы дают 256 отсчетов после выравнивания.
func TestWaveformTables(t *testing.T) {
	for _, w := range []Waveform{WaveformSine, WaveformSquare, WaveformTriangle, WaveformRampUp, WaveformRampDown} {
		if got := len(w.Table()); got != ddsWaveformLen {
			t.Errorf("Waveform %d: expected %d samples, got %d", w, ddsWaveformLen, got)
		}
	}
}

// Произвольная таблица планируется так же, как встроенная того же содержимого.
func TestPlanDDSTable(t *testing.T) {
	if _, err := PlanDDSTable(make([]byte, 100), 1000); !errors.Is(err, ErrBadTable) {
		t.Fatalf("Expected ErrBadTable for short table, got %v", err)
	}
	custom, err := PlanDDSTable(WaveformSine.Table(), 2000)
	if err != nil {
		t.Fatal(err)
	}
	builtin := PlanDDS(WaveformSine, 2000)
	if custom.PhaseStep != builtin.PhaseStep || custom.TimerPeriod != builtin.TimerPeriod {
		t.Errorf("Custom plan diverged: step %d/%d, period %d/%d",
			custom.PhaseStep, builtin.PhaseStep, custom.TimerPeriod, builtin.TimerPeriod)
	}
}

// Выходная частота считается с целочисленным делением тактов таймера.
func TestPlanDDS_OutputFrequencyTruncation(t *testing.T) {
	plan := PlanDDS(WaveformSine, 2000)
	// 32 МГц / 63 = 507936 (остаток отбрасывается), 507936/256 = 1984.125.
	if plan.TimerPeriod != 63 {
		t.Fatalf("Expected divider 63, got %d", plan.TimerPeriod)
	}
	if plan.OutputFrequency != 1984.125 {
		t.Fatalf("Expected 1984.125 Hz, got %v", plan.OutputFrequency)
	}
}

package goscope

// Опкоды протокола устройства. Каждая команда, если не указано иное,
// передается фиксированным кадром из трех байт: [опкод][параметр][параметр].
const (
	opSetGain        byte = 0x47 // 'G' [канал 0/1][индекс усиления]
	opSetCh1Offset   byte = 0x4F // 'O' [hi][lo]
	opSetCh2Offset   byte = 0x6F // 'o' [hi][lo]
	opSetTrigLevel   byte = 0x4C // 'L' [msb][lsb], 12-битный ЦАП
	opSetTrigSource  byte = 0x54 // 'T' [0=Auto,1=Ch1,2=Ch2,3=Ext][0]
	opSetTrigPolar   byte = 0x50 // 'P' [0=L->H,1=H->L][0]
	opSetMode        byte = 0x46 // 'F' [режим][0]
	opSetSampleRate  byte = 0x53 // 'S' [индекс с единицы][0]
	opCapture        byte = 0x43 // 'C' [0][0]
	opReadData       byte = 0x44 // 'D' [1..4][0]
	opSetDDSPeriod   byte = 0x70 // 'p' [hi][lo]
	opSetDDSSamples  byte = 0x4E // 'N' [hi][lo]
	opSendDDSTable   byte = 0x72 // 'r' заголовок + до 512 байт таблицы
	opRunDDS         byte = 0x66 // 'f' [0][0]
	opSetDigitalOut  byte = 0x68 // 'h' [битовая маска]
	opReadDigitalIn  byte = 0x69 // 'i'
	opReadSignature  byte = 0x65 // 'e'
	opBlinkLED       byte = 0x74 // 't' [0][0]
	opAbort          byte = 0x41 // 'A'
	opSetDigCount    byte = 0x63 // 'c' [hi][lo]
	opSetDigDivIndex byte = 0x64 // 'd' [индекс]
)

// Параметры команды чтения данных opReadData.
const (
	readDualCh1 byte = 1
	readDualCh2 byte = 2
	readCh1Only byte = 3
	readCh2Only byte = 4
)

func frame(op, hi, lo byte) []byte {
	return []byte{op, hi, lo}
}

func frame16(op byte, value int) []byte {
	return []byte{op, byte(value >> 8), byte(value & 0xFF)}
}

// frameHiLo кодирует значение как старший/младший байт по основанию 256,
// как это делает прошивка для периода и числа выборок DDS.
func frameHiLo(op byte, value int) []byte {
	return []byte{op, byte(value / 256), byte(value % 256)}
}

func gainFrame(channel, gainIndex int) []byte {
	return []byte{opSetGain, byte(channel), byte(gainIndex)}
}

func captureFrame() []byte   { return frame(opCapture, 0, 0) }
func runDDSFrame() []byte    { return frame(opRunDDS, 0, 0) }
func blinkLEDFrame() []byte  { return frame(opBlinkLED, 0, 0) }
func abortFrame() []byte     { return []byte{opAbort} }
func signatureFrame() []byte { return []byte{opReadSignature} }
func digitalInFrame() []byte { return []byte{opReadDigitalIn} }

func digitalOutFrame(mask byte) []byte {
	return []byte{opSetDigitalOut, mask}
}

func readDataFrame(sel byte) []byte {
	return frame(opReadData, sel, 0)
}

// ddsTableFrame строит команду переменной длины: 'r', два нулевых байта
// заголовка и первые samples значений таблицы.
func ddsTableFrame(table []byte, samples int) []byte {
	if samples > len(table) {
		samples = len(table)
	}
	out := make([]byte, 0, samples+3)
	out = append(out, opSendDDSTable, 0, 0)
	out = append(out, table[:samples]...)
	return out
}

package goscope

// Таблицы формы сигнала DDS на 256 отсчетов (0..255), снятые с
// эталонного прибора. Значения не пересчитывать: прошивка и
// аналоговый тракт откалиброваны под них.

// sineTable: синус.
var sineTable = []byte{
	122, 124, 127, 130, 133, 136, 139, 142, 144, 147, 150, 153, 155, 158, 161, 164,
	166, 169, 172, 174, 177, 179, 182, 184, 187, 189, 191, 193, 196, 198, 200, 202,
	204, 206, 208, 210, 212, 214, 215, 217, 219, 220, 222, 223, 225, 226, 227, 228,
	230, 231, 232, 233, 233, 234, 235, 236, 236, 237, 237, 238, 238, 238, 238, 238,
	239, 238, 238, 238, 238, 238, 237, 237, 236, 236, 235, 234, 233, 233, 232, 231,
	230, 228, 227, 226, 225, 223, 222, 220, 219, 217, 215, 214, 212, 210, 208, 206,
	204, 202, 200, 198, 196, 193, 191, 189, 187, 184, 182, 179, 177, 174, 172, 169,
	166, 164, 161, 158, 155, 153, 150, 147, 144, 142, 139, 136, 133, 130, 127, 124,
	122, 120, 117, 114, 111, 108, 105, 102, 100, 97, 94, 91, 89, 86, 83, 80,
	78, 75, 72, 70, 67, 65, 62, 60, 57, 55, 53, 51, 48, 46, 44, 42,
	40, 38, 36, 34, 32, 30, 29, 27, 25, 24, 22, 21, 19, 18, 17, 16,
	14, 13, 12, 11, 11, 10, 9, 8, 8, 7, 7, 6, 6, 6, 6, 6,
	5, 6, 6, 6, 6, 6, 7, 7, 8, 8, 9, 10, 11, 11, 12, 13,
	14, 16, 17, 18, 19, 21, 22, 24, 25, 27, 29, 30, 32, 34, 36, 38,
	40, 42, 44, 46, 48, 51, 53, 55, 57, 60, 62, 65, 67, 70, 72, 75,
	78, 80, 83, 86, 89, 91, 94, 97, 100, 102, 105, 108, 111, 114, 117, 120,
}

// rampUpTable: нарастающая пила.
var rampUpTable = []byte{
	5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 16, 17, 18, 19,
	20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32, 33, 34, 35,
	36, 37, 38, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50,
	51, 52, 53, 54, 55, 56, 57, 58, 59, 60, 61, 61, 62, 63, 64, 65,
	66, 67, 68, 69, 70, 71, 72, 73, 74, 75, 76, 77, 78, 79, 80, 81,
	82, 83, 83, 84, 85, 86, 87, 88, 89, 90, 91, 92, 93, 94, 95, 96,
	97, 98, 99, 100, 101, 102, 103, 104, 105, 105, 106, 107, 108, 109, 110, 111,
	112, 113, 114, 115, 116, 117, 118, 119, 120, 121, 122, 123, 124, 125, 126, 127,
	128, 128, 129, 130, 131, 132, 133, 134, 135, 136, 137, 138, 139, 140, 141, 142,
	143, 144, 145, 146, 147, 148, 149, 150, 150, 151, 152, 153, 154, 155, 156, 157,
	158, 159, 160, 161, 162, 163, 164, 165, 166, 167, 168, 169, 170, 171, 172, 172,
	173, 174, 175, 176, 177, 178, 179, 180, 181, 182, 183, 184, 185, 186, 187, 188,
	189, 190, 191, 192, 193, 194, 194, 195, 196, 197, 198, 199, 200, 201, 202, 203,
	204, 205, 206, 207, 208, 209, 210, 211, 212, 213, 214, 215, 216, 217, 217, 218,
	219, 220, 221, 222, 223, 224, 225, 226, 227, 228, 229, 230, 231, 232, 233, 234,
	235, 236, 237, 238, 239, 239, 240, 241, 242, 243, 244, 245, 246, 247, 248, 249,
}

// rampDownTable: спадающая пила.
var rampDownTable = []byte{
	254, 253, 252, 251, 250, 249, 248, 247, 246, 245, 244, 243, 242, 241, 240, 239,
	238, 237, 236, 235, 234, 234, 233, 232, 231, 230, 229, 228, 227, 226, 225, 224,
	223, 222, 221, 220, 219, 218, 217, 216, 215, 214, 213, 212, 211, 210, 209, 208,
	207, 206, 205, 204, 203, 202, 201, 200, 199, 198, 197, 196, 195, 194, 193, 193,
	192, 191, 190, 189, 188, 187, 186, 185, 184, 183, 182, 181, 180, 179, 178, 177,
	176, 175, 174, 173, 172, 171, 170, 169, 168, 167, 166, 165, 164, 163, 162, 161,
	160, 159, 158, 157, 156, 155, 154, 153, 152, 151, 151, 150, 149, 148, 147, 146,
	145, 144, 143, 142, 141, 140, 139, 138, 137, 136, 135, 134, 133, 132, 131, 130,
	129, 128, 127, 126, 125, 124, 123, 122, 121, 120, 119, 118, 117, 116, 115, 114,
	113, 112, 111, 110, 109, 109, 108, 107, 106, 105, 104, 103, 102, 101, 100, 99,
	98, 97, 96, 95, 94, 93, 92, 91, 90, 89, 88, 87, 86, 85, 84, 83,
	82, 81, 80, 79, 78, 77, 76, 75, 74, 73, 72, 71, 70, 69, 68, 68,
	67, 66, 65, 64, 63, 62, 61, 60, 59, 58, 57, 56, 55, 54, 53, 52,
	51, 50, 49, 48, 47, 46, 45, 44, 43, 42, 41, 40, 39, 38, 37, 36,
	35, 34, 33, 32, 31, 30, 29, 28, 27, 26, 26, 25, 24, 23, 22, 21,
	20, 19, 18, 17, 16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5,
}

// triangleTable: треугольник.
var triangleTable = []byte{
	5, 7, 9, 11, 13, 15, 16, 18, 20, 22, 24, 26, 28, 30, 32, 34,
	36, 38, 39, 41, 43, 45, 47, 49, 51, 53, 55, 57, 59, 61, 62, 64,
	66, 68, 70, 72, 74, 76, 78, 80, 82, 83, 85, 87, 89, 91, 93, 95,
	97, 99, 101, 103, 105, 106, 108, 110, 112, 114, 116, 118, 120, 122, 124, 126,
	128, 129, 131, 133, 135, 137, 139, 141, 143, 145, 147, 149, 150, 152, 154, 156,
	158, 160, 162, 164, 166, 168, 170, 172, 173, 175, 177, 179, 181, 183, 185, 187,
	189, 191, 193, 196, 198, 200, 202, 204, 206, 208, 210, 212, 214, 216, 217, 219,
	221, 223, 225, 227, 229, 231, 233, 235, 237, 239, 240, 242, 244, 246, 248, 250,
	248, 246, 244, 242, 240, 239, 237, 235, 233, 231, 229, 227, 225, 223, 221, 219,
	217, 216, 214, 212, 210, 208, 206, 204, 202, 200, 198, 196, 194, 193, 191, 189,
	187, 185, 183, 181, 179, 177, 175, 173, 172, 170, 168, 166, 164, 162, 160, 158,
	156, 154, 152, 150, 149, 147, 145, 143, 141, 139, 137, 135, 133, 131, 129, 128,
	126, 124, 122, 120, 118, 116, 114, 112, 110, 108, 106, 105, 103, 101, 99, 97,
	95, 93, 91, 89, 87, 85, 83, 82, 80, 78, 76, 74, 72, 70, 68, 66,
	64, 62, 61, 59, 57, 55, 53, 51, 49, 47, 45, 43, 41, 39, 38, 36,
	34, 32, 30, 28, 26, 24, 22, 20, 18, 16, 15, 13, 11, 9, 7, 5,
}

// squareTable: меандр.
var squareTable = []byte{
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250,
	250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250,
	250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250,
	250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250,
	250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250,
	250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250, 250,
	250, 250, 250, 250, 250, 250,
}

// Waveform выбирает таблицу формы сигнала по имени.
type Waveform int

const (
	WaveformSine Waveform = iota
	WaveformSquare
	WaveformTriangle
	WaveformRampUp
	WaveformRampDown
)

// Table возвращает копию таблицы формы, дополненную нулями до 256
// отсчетов.
func (w Waveform) Table() []byte {
	var src []byte
	switch w {
	case WaveformSquare:
		src = squareTable
	case WaveformTriangle:
		src = triangleTable
	case WaveformRampUp:
		src = rampUpTable
	case WaveformRampDown:
		src = rampDownTable
	default:
		src = sineTable
	}
	out := make([]byte, ddsWaveformLen)
	copy(out, src)
	return out
}

package pdfgen

import (
	"bytes"
	"encoding/binary"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// DefaultDPI is assumed when an image carries no density metadata.
const DefaultDPI = 300.0

const metrePerInch = 0.0254

// Dimensions reads the pixel size and best-effort DPI of a png or jpeg.
func Dimensions(data []byte) (width, height int, dpi float64, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, 0, err
	}
	return cfg.Width, cfg.Height, readDPI(data), nil
}

func readDPI(data []byte) float64 {
	if dpi, ok := pngDPI(data); ok {
		return dpi
	}
	if dpi, ok := jpegDPI(data); ok {
		return dpi
	}
	return DefaultDPI
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// pngDPI walks the chunk list looking for pHYs (pixels per metre).
func pngDPI(data []byte) (float64, bool) {
	if len(data) < 8 || !bytes.Equal(data[:8], pngSignature) {
		return 0, false
	}

	offset := 8
	for offset+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		chunkType := string(data[offset+4 : offset+8])
		dataStart := offset + 8
		if dataStart+length > len(data) {
			return 0, false
		}

		if chunkType == "pHYs" && length >= 9 {
			ppuX := binary.BigEndian.Uint32(data[dataStart : dataStart+4])
			unit := data[dataStart+8]
			if unit == 1 && ppuX > 0 {
				return float64(ppuX) * metrePerInch, true
			}
			return 0, false
		}
		if chunkType == "IDAT" || chunkType == "IEND" {
			return 0, false
		}

		offset = dataStart + length + 4 // skip data and CRC
	}
	return 0, false
}

// jpegDPI reads the JFIF APP0 density fields.
func jpegDPI(data []byte) (float64, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, false
	}

	offset := 2
	for offset+4 <= len(data) {
		if data[offset] != 0xFF {
			return 0, false
		}
		marker := data[offset+1]
		if marker == 0xD9 || marker == 0xDA { // EOI / start of scan
			return 0, false
		}

		segLen := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		segStart := offset + 4
		if segLen < 2 || segStart+segLen-2 > len(data) {
			return 0, false
		}

		if marker == 0xE0 && segLen >= 14 && bytes.Equal(data[segStart:segStart+5], []byte("JFIF\x00")) {
			units := data[segStart+7]
			density := binary.BigEndian.Uint16(data[segStart+8 : segStart+10])
			if density == 0 {
				return 0, false
			}
			switch units {
			case 1: // dots per inch
				return float64(density), true
			case 2: // dots per centimetre
				return float64(density) * 2.54, true
			}
			return 0, false
		}

		offset = segStart + segLen - 2
	}
	return 0, false
}

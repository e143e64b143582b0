package media

// isAnnexBStartCode reports whether data begins with an H.264/H.265
// Annex-B start code (3- or 4-byte form).
func isAnnexBStartCode(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 1 {
		return true
	}
	if data[0] == 0 && data[1] == 0 && data[2] == 1 {
		return true
	}
	return false
}

// nalUnitType extracts the NAL unit type following an Annex-B start code.
func nalUnitType(data []byte) byte {
	if len(data) < 4 {
		return 0
	}
	offset := 3
	if data[2] == 0 {
		offset = 4
	}
	if len(data) <= offset {
		return 0
	}
	return data[offset] & 0x1F
}

// isParameterSetNAL reports whether nalType is SPS (7) or PPS (8).
func isParameterSetNAL(nalType byte) bool {
	return nalType == 7 || nalType == 8
}

// annexBStartCode is the 4-byte start code prefix required by the wire
// envelope ahead of codec configuration data in a keyframe payload.
var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

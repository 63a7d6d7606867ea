package crsf

import "github.com/sigurn/crc8"

// CRCPoly is the CRC-8/DVB-S2 polynomial.
const CRCPoly byte = 0xD5

var crcTable = crc8.MakeTable(crc8.CRC8_DVB_S2)

// CRC8 computes CRC-8/DVB-S2 over data using the lookup table. seed is
// the crc of preceding data, 0 to start.
func CRC8(data []byte, seed byte) byte {
	return crc8.Update(seed, data, crcTable)
}

// CRC8Bitwise computes the same value as CRC8 one bit at a time.
func CRC8Bitwise(data []byte, seed byte) byte {
	crc := seed
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ CRCPoly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

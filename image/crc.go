package image

import (
	"encoding/binary"

	"github.com/snksoft/crc"
)

var crcTable *crc.Table

/* Same algorithm as the CRC unit of the microcontroller in its reset
 * configuration: CRC-32 polynomial, no reflection, no final xor */
func init() {
	params := crc.CRC32
	params.ReflectIn = false
	params.ReflectOut = false
	params.FinalXor = 0
	crcTable = crc.NewTable(params)
}

// CRC32 computes the checksum the hardware CRC unit produces when data is
// fed to it one little-endian 32-bit word at a time. The length of data must
// be a multiple of 4; CRC32 panics otherwise.
func CRC32(data []byte) uint32 {
	if len(data)%4 > 0 {
		panic("block size needs to be a multiple of 4")
	}

	h := crc.NewHashWithTable(crcTable)

	var buf [4]byte
	for i := 0; i < len(data); i += 4 {
		buf[0] = data[i+3]
		buf[1] = data[i+2]
		buf[2] = data[i+1]
		buf[3] = data[i+0]
		h.Update(buf[:])
	}

	return h.CRC32()
}

func crcWriteCheck(slice []byte, value uint32, doWrite bool) bool {
	if len(slice) < 4 {
		panic("slice length invalid")
	}

	orig := binary.LittleEndian.Uint32(slice)
	if doWrite {
		binary.LittleEndian.PutUint32(slice, value)
	}
	return orig == value
}

/* The last word of block holds the checksum of the words before it */
func crcCalculateAndWriteCheck(block []byte, doWrite bool) bool {
	crc := CRC32(block[:len(block)-4])

	return crcWriteCheck(block[len(block)-4:], crc, doWrite)
}
